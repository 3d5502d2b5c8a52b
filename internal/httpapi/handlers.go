package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/cleanup"
	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/httpapi/middleware"
	"github.com/pulsewatch/pulsewatch/internal/repo"
)

// handleCheckRun is the scheduler callback: run one check cycle. The org query
// parameter narrows the cycle to one tenant; without it every tenant's active
// services are checked.
func (s *Server) handleCheckRun(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("org")
	if org != "" {
		if _, err := s.Tenants.GetBySlug(r.Context(), org); err != nil {
			respondError(w, http.StatusNotFound, "unknown organization")
			return
		}
	}

	summaries, err := s.Runner.RunCycle(r.Context(), org)
	if err != nil {
		s.Log.Error("check_cycle_failed", zap.String("org", org), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "check cycle failed")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success":   true,
		"timestamp": domain.NowMillis(),
		"summary":   summaries,
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Sweeper.Run(r.Context())
	if err != nil {
		s.Log.Error("cleanup_failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"success":   true,
		"timestamp": domain.NowMillis(),
		"deleted":   sum,
	})
}

// ---- tenant-facing service CRUD ----

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())
	services, err := s.Services.List(r.Context(), t.Slug)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list failed")
		return
	}
	respond(w, http.StatusOK, services)
}

type createServicePayload struct {
	Name                 string                       `json:"name"`
	URL                  string                       `json:"url"`
	Type                 domain.ServiceType           `json:"type"`
	NotificationSettings *domain.NotificationSettings `json:"notificationSettings"`
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())

	var p createServicePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "bad payload")
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || !validURL(p.URL) {
		respondError(w, http.StatusBadRequest, "name and a valid http(s) url are required")
		return
	}
	if p.Type == "" {
		p.Type = domain.TypeBackend
	}

	svc := &domain.Service{
		TenantID:             t.Slug,
		Name:                 p.Name,
		URL:                  p.URL,
		Type:                 p.Type,
		IsActive:             true,
		CurrentStatus:        domain.StatusUp,
		NotificationSettings: p.NotificationSettings,
	}
	if err := s.Services.Create(r.Context(), svc); err != nil {
		respondError(w, http.StatusInternalServerError, "could not create service")
		return
	}

	s.Log.Info("service_created",
		zap.String("service_id", string(svc.ID)),
		zap.String("tenant", t.Slug),
		zap.String("url", svc.URL),
	)
	respond(w, http.StatusCreated, svc)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())
	svc, err := s.Services.Get(r.Context(), t.Slug, domain.ServiceID(chi.URLParam(r, "id")))
	if err != nil {
		notFoundOr500(w, err)
		return
	}
	respond(w, http.StatusOK, svc)
}

type patchServicePayload struct {
	NotificationSettings *domain.NotificationSettings `json:"notificationSettings"`
}

// handlePatchService updates a service's notification settings. Other fields
// are immutable after creation; delete and re-create to change the URL.
func (s *Server) handlePatchService(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())
	id := domain.ServiceID(chi.URLParam(r, "id"))

	var p patchServicePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.Services.UpdateNotificationSettings(r.Context(), t.Slug, id, p.NotificationSettings); err != nil {
		notFoundOr500(w, err)
		return
	}
	svc, err := s.Services.Get(r.Context(), t.Slug, id)
	if err != nil {
		notFoundOr500(w, err)
		return
	}
	respond(w, http.StatusOK, svc)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())
	id := domain.ServiceID(chi.URLParam(r, "id"))
	if err := s.Services.Delete(r.Context(), t.Slug, id); err != nil {
		notFoundOr500(w, err)
		return
	}
	s.Log.Info("service_deleted",
		zap.String("service_id", string(id)),
		zap.String("tenant", t.Slug),
	)
	respond(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleServiceEvents(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	evs, err := s.Events.EventsByService(r.Context(), t.Slug, domain.ServiceID(chi.URLParam(r, "id")), limit)
	if err != nil {
		notFoundOr500(w, err)
		return
	}
	respond(w, http.StatusOK, evs)
}

func (s *Server) handleServiceResults(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())

	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if since <= 0 {
		since = domain.NowMillis() - cleanup.RetentionWindow.Milliseconds()
	}

	rs, err := s.Results.ResultsByService(r.Context(), t.Slug, domain.ServiceID(chi.URLParam(r, "id")), since)
	if err != nil {
		notFoundOr500(w, err)
		return
	}
	respond(w, http.StatusOK, rs)
}

// handleStatusSummary returns the tenant's dashboard view: every service with
// its current status, the worst status overall, and the latest transitions.
func (s *Server) handleStatusSummary(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())

	services, err := s.Services.List(r.Context(), t.Slug)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list failed")
		return
	}
	events, err := s.Events.RecentEvents(r.Context(), t.Slug, 10)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "events lookup failed")
		return
	}

	overall := domain.StatusUp
	for _, svc := range services {
		if !svc.IsActive {
			continue
		}
		overall = worseStatus(overall, svc.CurrentStatus)
	}

	respond(w, http.StatusOK, map[string]any{
		"overallStatus": overall,
		"services":      services,
		"recentEvents":  events,
	})
}

// ---- cron registration settings ----

func (s *Server) handleCronStatus(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())
	st, err := s.Cron.Status(r.Context(), t.Slug)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cron status failed")
		return
	}
	respond(w, http.StatusOK, st)
}

type cronConfigurePayload struct {
	APIKey   string `json:"apiKey"`
	Interval int    `json:"interval"`
}

func (s *Server) handleCronConfigure(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())

	var p cronConfigurePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "bad payload")
		return
	}

	jobID, err := s.Cron.Configure(r.Context(), t.Slug, p.APIKey, p.Interval)
	if err != nil {
		s.Log.Warn("cron_configure_failed", zap.String("tenant", t.Slug), zap.Error(err))
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]any{"success": true, "jobId": jobID})
}

func (s *Server) handleCronDisconnect(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFrom(r.Context())
	if err := s.Cron.Disconnect(r.Context(), t.Slug); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]any{"success": true})
}

// ---- helpers ----

func notFoundOr500(w http.ResponseWriter, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondError(w, http.StatusInternalServerError, "internal error")
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func worseStatus(a, b domain.ServiceStatus) domain.ServiceStatus {
	rank := func(s domain.ServiceStatus) int {
		switch s {
		case domain.StatusDown:
			return 2
		case domain.StatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
