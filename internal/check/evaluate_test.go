package check

import (
	"testing"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/probe"
)

func results(succ, fail int) []probe.RegionResult {
	var out []probe.RegionResult
	regions := domain.Regions()
	for i := 0; i < succ; i++ {
		out = append(out, probe.RegionResult{Region: regions[i%len(regions)], StatusCode: 200, Success: true})
	}
	for i := 0; i < fail; i++ {
		out = append(out, probe.RegionResult{Region: regions[i%len(regions)], StatusCode: 503, Success: false})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name       string
		succ, fail int
		want       domain.ServiceStatus
	}{
		{"empty is up", 0, 0, domain.StatusUp},
		{"all success", 5, 0, domain.StatusUp},
		{"single success", 1, 0, domain.StatusUp},
		{"3 up 2 down is degraded", 3, 2, domain.StatusDegraded},
		{"4 up 1 down is degraded", 4, 1, domain.StatusDegraded},
		{"half failing is down", 1, 1, domain.StatusDown},
		{"majority failing is down", 1, 4, domain.StatusDown},
		{"all failing is down", 0, 5, domain.StatusDown},
		{"single failure is down", 0, 1, domain.StatusDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(results(tc.succ, tc.fail)); got != tc.want {
				t.Fatalf("Evaluate(%d up, %d down) = %q, want %q", tc.succ, tc.fail, got, tc.want)
			}
		})
	}
}

func TestAffectedRegions(t *testing.T) {
	rs := []probe.RegionResult{
		{Region: domain.RegionUSEast1, Success: true},
		{Region: domain.RegionEUCentral1, Success: false},
		{Region: domain.RegionAPSouth1, Success: false},
	}
	got := AffectedRegions(rs)
	if len(got) != 2 || got[0] != "eu-central-1" || got[1] != "ap-south-1" {
		t.Fatalf("unexpected affected regions: %v", got)
	}
}
