package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/check"
	"github.com/pulsewatch/pulsewatch/internal/cleanup"
	"github.com/pulsewatch/pulsewatch/internal/cronsync"
	"github.com/pulsewatch/pulsewatch/internal/httpapi/middleware"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/repo"
)

type Server struct {
	Log      *zap.Logger
	Services repo.ServiceStore
	Results  repo.ResultStore
	Events   repo.EventStore
	Tenants  repo.TenantStore

	Runner  *check.Runner
	Sweeper *cleanup.Sweeper
	Cron    *cronsync.Manager
	Metrics *metrics.Bundle

	// CronSecret authenticates the external scheduler's trigger callbacks.
	CronSecret     string
	AllowedOrigins []string
	RPM            int
	Burst          int
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	c := cors.AllowAll()
	if len(s.AllowedOrigins) > 0 {
		c = cors.New(cors.Options{
			AllowedOrigins:   s.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Key"},
			AllowCredentials: true,
		})
	}
	r.Use(c.Handler)
	r.Use(middleware.RateLimit(s.RPM, s.Burst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	// Scheduler-triggered endpoints, shared-secret auth.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCronSecret(s.CronSecret))
		r.Post("/api/check/run", s.handleCheckRun)
		r.Post("/api/check/cleanup", s.handleCleanup)
		r.Get("/api/check/cleanup", s.handleCleanup)
	})

	// Tenant-facing API, bearer-token auth.
	r.Group(func(r chi.Router) {
		r.Use(middleware.TenantAuth(s.Tenants))

		r.Get("/api/services", s.handleListServices)
		r.Post("/api/services", s.handleCreateService)
		r.Get("/api/services/{id}", s.handleGetService)
		r.Patch("/api/services/{id}", s.handlePatchService)
		r.Delete("/api/services/{id}", s.handleDeleteService)
		r.Get("/api/services/{id}/events", s.handleServiceEvents)
		r.Get("/api/services/{id}/results", s.handleServiceResults)

		r.Get("/api/status/summary", s.handleStatusSummary)

		r.Get("/api/settings/cron", s.handleCronStatus)
		r.Post("/api/settings/cron", s.handleCronConfigure)
		r.Delete("/api/settings/cron", s.handleCronDisconnect)
	})

	return r
}

func respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respond(w, code, map[string]string{"error": msg})
}
