package cronsync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/repo"
)

// API is the slice of the scheduler client the manager needs; faked in tests.
type API interface {
	GetJob(ctx context.Context, apiKey string, jobID int64, lowPriority bool) (*Job, error)
	CreateJob(ctx context.Context, apiKey, title, callbackURL string, intervalMinutes int) (int64, error)
	DeleteJob(ctx context.Context, apiKey string, jobID int64) error
}

// Status reports a tenant's cron registration after lazy reconciliation.
type Status struct {
	Configured    bool   `json:"hasKey"`
	MaskedKey     string `json:"apiKey,omitempty"`
	Interval      int    `json:"interval"`
	WasAutoHealed bool   `json:"wasAutoHealed"`
}

// Manager reconciles the local "a job should exist" claim against the
// external scheduler. It only mutates local state on a definitive "job
// absent" signal; ambiguous results (rate limits, transient errors) leave the
// claim untouched.
type Manager struct {
	Tenants       repo.TenantStore
	API           API
	Log           *zap.Logger
	PublicBaseURL string
}

// Status verifies the claim on read. Verification runs low-priority: a 429 is
// skipped rather than retried, and the claim is assumed still valid.
func (m *Manager) Status(ctx context.Context, slug string) (Status, error) {
	t, err := m.Tenants.GetBySlug(ctx, slug)
	if err != nil {
		return Status{}, err
	}

	st := Status{Configured: t.CronConfigured(), Interval: t.CronInterval}
	if st.Interval == 0 {
		st.Interval = 5
	}

	if st.Configured {
		_, err := m.API.GetJob(ctx, t.CronAPIKey, t.CronJobID, true)
		switch {
		case errors.Is(err, ErrJobNotFound):
			// Confirmed absent externally: self-heal the stale claim.
			if clearErr := m.Tenants.ClearCronConfig(ctx, slug); clearErr != nil {
				return Status{}, fmt.Errorf("clear stale cron config: %w", clearErr)
			}
			st.Configured = false
			st.WasAutoHealed = true
			m.Log.Info("cron_claim_auto_healed", zap.String("tenant", slug))
		case err != nil:
			// Couldn't confirm (429, transient): keep the claim as-is.
			m.Log.Warn("cron_verify_inconclusive", zap.String("tenant", slug), zap.Error(err))
		}
	}

	if st.Configured && len(t.CronAPIKey) >= 4 {
		st.MaskedKey = "****" + t.CronAPIKey[len(t.CronAPIKey)-4:]
	}
	return st, nil
}

// Configure registers a new external job for the tenant. Any prior job is
// deleted best-effort first; a failed delete of a stale job is not fatal.
func (m *Manager) Configure(ctx context.Context, slug, apiKey string, intervalMinutes int) (int64, error) {
	if err := ValidateAPIKey(apiKey); err != nil {
		return 0, err
	}
	if intervalMinutes < 1 || intervalMinutes > 60 {
		intervalMinutes = 5
	}

	t, err := m.Tenants.GetBySlug(ctx, slug)
	if err != nil {
		return 0, err
	}

	if t.CronConfigured() {
		if err := m.API.DeleteJob(ctx, t.CronAPIKey, t.CronJobID); err != nil {
			m.Log.Warn("delete_old_cron_job_failed",
				zap.String("tenant", slug),
				zap.Int64("job_id", t.CronJobID),
				zap.Error(err),
			)
		}
	}

	callbackURL := fmt.Sprintf("%s/api/check/run?org=%s", m.PublicBaseURL, slug)
	title := "PulseWatch - " + t.Name

	jobID, err := m.API.CreateJob(ctx, apiKey, title, callbackURL, intervalMinutes)
	if err != nil {
		return 0, fmt.Errorf("create cron job: %w", err)
	}

	if err := m.Tenants.SetCronConfig(ctx, slug, apiKey, jobID, intervalMinutes); err != nil {
		return 0, fmt.Errorf("store cron config: %w", err)
	}
	return jobID, nil
}

// Disconnect deletes the external job and clears the local claim. A job
// already gone externally still clears locally.
func (m *Manager) Disconnect(ctx context.Context, slug string) error {
	t, err := m.Tenants.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if !t.CronConfigured() {
		return errors.New("no active cron job found")
	}

	if err := m.API.DeleteJob(ctx, t.CronAPIKey, t.CronJobID); err != nil && !errors.Is(err, ErrJobNotFound) {
		return err
	}
	return m.Tenants.ClearCronConfig(ctx, slug)
}
