package probe

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// LocalProber issues a single direct HTTP probe from this process, tagged with
// the default region. It is the fallback when the multi-region backend fails.
type LocalProber struct {
	Client *http.Client
	Log    *zap.Logger
}

func NewLocalProber(timeout time.Duration, log *zap.Logger) *LocalProber {
	return &LocalProber{
		Client: &http.Client{Timeout: timeout},
		Log:    log,
	}
}

func (p *LocalProber) Probe(ctx context.Context, target string) []RegionResult {
	return []RegionResult{p.check(ctx, target)}
}

func (p *LocalProber) check(ctx context.Context, target string) RegionResult {
	startedAt := domain.NowMillis()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return RegionResult{
			Region:       domain.DefaultRegion,
			StatusCode:   0,
			ResponseTime: time.Since(start).Milliseconds(),
			StartedAt:    startedAt,
			Success:      false,
		}
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := p.Client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		// Transport failure: classify DNS so operators can tell an expired
		// domain from a down origin.
		if host := extractHost(target); host != "" {
			dns := ClassifyDNS(host)
			p.Log.Warn("local_probe_transport_error",
				zap.String("url", target),
				zap.String("dns_class", dns.Class),
				zap.Error(err),
			)
		}
		return RegionResult{
			Region:       domain.DefaultRegion,
			StatusCode:   0,
			ResponseTime: elapsed,
			StartedAt:    startedAt,
			Success:      false,
		}
	}
	defer resp.Body.Close()

	return RegionResult{
		Region:       domain.DefaultRegion,
		StatusCode:   resp.StatusCode,
		ResponseTime: elapsed,
		StartedAt:    startedAt,
		Success:      domain.ProbeSuccess(resp.StatusCode),
	}
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
