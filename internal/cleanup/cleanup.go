package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/repo"
)

// RetentionWindow is the fixed history horizon: probe results and status
// events older than this are removed.
const RetentionWindow = 5 * 24 * time.Hour

type Summary struct {
	ProbeResultsDeleted int64  `json:"probeResultsDeleted"`
	StatusEventsDeleted int64  `json:"statusEventsDeleted"`
	CutoffDate          string `json:"cutoffDate"`
}

// Sweeper deletes aged probe results and status events. Safe to run
// repeatedly; the two deletions are independent.
type Sweeper struct {
	Results repo.ResultStore
	Events  repo.EventStore
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time // defaults to time.Now
}

func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	cutoff := now().Add(-RetentionWindow)
	cutoffMillis := cutoff.UnixMilli()

	s.Log.Info("cleanup_started", zap.String("cutoff", cutoff.UTC().Format(time.RFC3339)))

	var errs []error
	sum := Summary{CutoffDate: cutoff.UTC().Format(time.RFC3339)}

	n, err := s.Results.DeleteResultsBefore(ctx, cutoffMillis)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete probe results: %w", err))
	}
	sum.ProbeResultsDeleted = n

	m, err := s.Events.DeleteEventsBefore(ctx, cutoffMillis)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete status events: %w", err))
	}
	sum.StatusEventsDeleted = m

	if s.Metrics != nil {
		s.Metrics.RetentionDeletedTotal.WithLabelValues("probe_results").Add(float64(n))
		s.Metrics.RetentionDeletedTotal.WithLabelValues("status_events").Add(float64(m))
	}

	s.Log.Info("cleanup_finished",
		zap.Int64("probe_results_deleted", n),
		zap.Int64("status_events_deleted", m),
	)
	return sum, errors.Join(errs...)
}
