package probe

import (
	"context"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// RegionResult is one region's outcome for a single check cycle.
//
// StatusCode is 0 for transport/DNS errors. Success mirrors the 2xx/3xx rule
// in domain.ProbeSuccess.
type RegionResult struct {
	Region       domain.Region
	StatusCode   int
	ResponseTime int64 // ms
	StartedAt    int64 // epoch ms
	Success      bool
}

// Prober performs one check for a service URL. Implementations must always
// return at least one result: external-backend failures degrade to a local
// fallback probe instead of surfacing an error to the evaluator.
type Prober interface {
	Probe(ctx context.Context, target string) []RegionResult
}
