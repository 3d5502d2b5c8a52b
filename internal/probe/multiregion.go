package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// MultiRegionProber submits the target URL to an external probing backend,
// polls for per-region results within a bounded budget (default 10 × 3s), and
// degrades to a single local probe when the backend errors, times out, or
// returns nothing. It never propagates a hard failure to the evaluator.
type MultiRegionProber struct {
	BaseURL      string
	Client       *http.Client
	Log          *zap.Logger
	PollAttempts int
	PollInterval time.Duration
	Fallback     Prober

	// OnFallback is invoked once per check that had to use the fallback.
	OnFallback func()
}

func NewMultiRegionProber(baseURL string, log *zap.Logger, fallback Prober) *MultiRegionProber {
	return &MultiRegionProber{
		BaseURL:      baseURL,
		Client:       &http.Client{Timeout: 15 * time.Second},
		Log:          log,
		PollAttempts: 10,
		PollInterval: 3 * time.Second,
		Fallback:     fallback,
	}
}

func (p *MultiRegionProber) Probe(ctx context.Context, target string) []RegionResult {
	results, err := p.checkRemote(ctx, target)
	if err != nil {
		p.Log.Warn("multiregion_check_failed",
			zap.String("url", target),
			zap.Error(err),
		)
		if p.OnFallback != nil {
			p.OnFallback()
		}
		return p.Fallback.Probe(ctx, target)
	}
	return results
}

type submitResponse struct {
	RequestID string `json:"requestId"`
}

type wireResult struct {
	Region       string `json:"region"`
	StatusCode   int    `json:"statusCode"`
	ResponseTime int64  `json:"responseTime"`
	StartedAt    int64  `json:"startedAt"`
}

type resultsResponse struct {
	Result []wireResult `json:"result"`
}

func (p *MultiRegionProber) checkRemote(ctx context.Context, target string) ([]RegionResult, error) {
	body, _ := json.Marshal(map[string]string{"url": target})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/check-v2", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("submit check: status %s", resp.Status)
	}

	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	if sub.RequestID == "" {
		return nil, fmt.Errorf("submit check: empty request id")
	}

	attempts := p.PollAttempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err := sleepCtx(ctx, p.PollInterval); err != nil {
			return nil, err
		}
		results, err := p.fetchResults(ctx, sub.RequestID)
		if err != nil {
			p.Log.Debug("poll_results_error",
				zap.String("request_id", sub.RequestID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			continue
		}
		if len(results) > 0 {
			return results, nil
		}
	}
	return nil, fmt.Errorf("no results within %d attempts", attempts)
}

func (p *MultiRegionProber) fetchResults(ctx context.Context, requestID string) ([]RegionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/results/"+requestID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("results: status %s", resp.Status)
	}

	var rr resultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	out := make([]RegionResult, 0, len(rr.Result))
	for _, r := range rr.Result {
		startedAt := r.StartedAt
		if startedAt == 0 {
			startedAt = domain.NowMillis()
		}
		out = append(out, RegionResult{
			Region:       domain.Region(r.Region),
			StatusCode:   r.StatusCode,
			ResponseTime: r.ResponseTime,
			StartedAt:    startedAt,
			Success:      domain.ProbeSuccess(r.StatusCode),
		})
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
