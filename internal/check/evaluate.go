package check

import (
	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/probe"
)

// Evaluate maps one cycle's per-region results to an aggregate status.
//
// An empty set evaluates to up: no data is not treated as an outage.
func Evaluate(results []probe.RegionResult) domain.ServiceStatus {
	total := len(results)
	if total == 0 {
		return domain.StatusUp
	}

	failures := 0
	for _, r := range results {
		if !r.Success {
			failures++
		}
	}
	failureRate := float64(failures) / float64(total)

	switch {
	case failureRate >= 0.5:
		return domain.StatusDown
	case failureRate > 0:
		return domain.StatusDegraded
	default:
		return domain.StatusUp
	}
}

// AffectedRegions lists the regions that failed in this cycle.
func AffectedRegions(results []probe.RegionResult) []string {
	var out []string
	for _, r := range results {
		if !r.Success {
			out = append(out, string(r.Region))
		}
	}
	return out
}
