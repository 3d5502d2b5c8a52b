package check

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/probe"
	"github.com/pulsewatch/pulsewatch/internal/repo"
)

// Notifier dispatches a transition notification. Implementations never return
// an error to the pipeline; failures are their own concern.
type Notifier interface {
	Notify(ctx context.Context, svc *domain.Service, previous, next domain.ServiceStatus)
}

// Summary is one service's outcome within a check cycle.
type Summary struct {
	ServiceID domain.ServiceID     `json:"serviceId"`
	Status    domain.ServiceStatus `json:"status"`
	Error     string               `json:"error,omitempty"`
}

// Runner drives the probe → evaluate → persist → notify pipeline for all
// active services of a tenant (or of every tenant).
//
// Services are checked concurrently; each service's own pipeline is strictly
// sequential. There is no per-service concurrency guard: if two cycles overlap
// for the same service, the status write is last-wins. The external
// scheduler's interval is expected to prevent overlap.
type Runner struct {
	Log         *zap.Logger
	Services    repo.ServiceStore
	Results     repo.ResultStore
	Events      repo.EventStore
	Prober      probe.Prober
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Concurrency int
}

// RunCycle checks every active service. tenantID narrows the cycle to one
// tenant; empty means all tenants. One service's failure never aborts the
// batch — it is reported in its summary entry and the rest continue.
func (r *Runner) RunCycle(ctx context.Context, tenantID string) ([]Summary, error) {
	services, err := r.Services.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active services: %w", err)
	}
	if len(services) == 0 {
		return []Summary{}, nil
	}

	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}

	out := make([]Summary, len(services))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, svc := range services {
		i, svc := i, svc
		g.Go(func() error {
			status, err := r.processCheck(gctx, svc)
			out[i] = Summary{ServiceID: svc.ID, Status: status}
			if err != nil {
				out[i].Error = err.Error()
				r.Log.Warn("check_failed",
					zap.String("service_id", string(svc.ID)),
					zap.String("tenant", svc.TenantID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// processCheck runs one service's pipeline. Persistence and notification are
// independent side effects: a failed write never suppresses the dispatch, and
// a failed dispatch is invisible here by contract.
func (r *Runner) processCheck(ctx context.Context, svc domain.Service) (domain.ServiceStatus, error) {
	start := time.Now()
	results := r.Prober.Probe(ctx, svc.URL)
	newStatus := Evaluate(results)

	var errs []error

	if len(results) > 0 {
		batch := make([]domain.ProbeResult, 0, len(results))
		for _, res := range results {
			batch = append(batch, domain.ProbeResult{
				ServiceID:    svc.ID,
				Region:       res.Region,
				StatusCode:   res.StatusCode,
				ResponseTime: res.ResponseTime,
				StartedAt:    res.StartedAt,
				Success:      res.Success,
			})
		}
		if err := r.Results.InsertBatch(ctx, batch); err != nil {
			errs = append(errs, fmt.Errorf("insert probe results: %w", err))
		}
	}

	now := domain.NowMillis()

	if newStatus != svc.CurrentStatus {
		if r.Notifier != nil {
			r.Notifier.Notify(ctx, &svc, svc.CurrentStatus, newStatus)
		}
		if err := r.Events.Insert(ctx, &domain.StatusEvent{
			ServiceID:       svc.ID,
			TenantID:        svc.TenantID,
			PreviousStatus:  svc.CurrentStatus,
			NewStatus:       newStatus,
			Timestamp:       now,
			AffectedRegions: AffectedRegions(results),
		}); err != nil {
			errs = append(errs, fmt.Errorf("insert status event: %w", err))
		}
		if err := r.Services.UpdateStatus(ctx, svc.ID, newStatus, now); err != nil {
			errs = append(errs, fmt.Errorf("update service status: %w", err))
		}
		r.Log.Info("status_transition",
			zap.String("service_id", string(svc.ID)),
			zap.String("tenant", svc.TenantID),
			zap.String("previous", string(svc.CurrentStatus)),
			zap.String("new", string(newStatus)),
		)
	} else {
		if err := r.Services.Touch(ctx, svc.ID, now); err != nil {
			errs = append(errs, fmt.Errorf("touch service: %w", err))
		}
	}

	if r.Metrics != nil {
		r.Metrics.ChecksTotal.WithLabelValues(string(newStatus)).Inc()
		r.Metrics.CheckDurationSeconds.Observe(time.Since(start).Seconds())
		r.Metrics.ServiceStatus.WithLabelValues(string(svc.ID), svc.TenantID).Set(metrics.StatusValue(newStatus))
	}

	return newStatus, errors.Join(errs...)
}
