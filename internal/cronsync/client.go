package cronsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	// ErrJobNotFound is the definitive "job absent on the external side"
	// signal. Only this error justifies clearing the local claim.
	ErrJobNotFound = errors.New("cron job not found")
	// ErrRateLimited means the API answered 429 and the bounded retry budget
	// was exhausted (or skipped). An ambiguous signal — never self-heal on it.
	ErrRateLimited = errors.New("cron api rate limited")
)

// Job mirrors the external scheduler's job record.
type Job struct {
	JobID   int64  `json:"jobId"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// Client talks to a cron-job.org-compatible scheduler API with bearer-key
// auth. Transient failures and 429s are retried with exponential backoff up
// to MaxRetries; low-priority reads may skip the 429 retries entirely.
type Client struct {
	BaseURL        string
	HTTP           *http.Client
	Log            *zap.Logger
	MaxRetries     uint64
	InitialBackoff time.Duration

	// CallbackSecret is embedded as a bearer header in created jobs so the
	// scheduler can authenticate against our trigger endpoint.
	CallbackSecret string
}

func NewClient(baseURL, callbackSecret string, log *zap.Logger) *Client {
	return &Client{
		BaseURL:        baseURL,
		HTTP:           &http.Client{Timeout: 10 * time.Second},
		Log:            log,
		MaxRetries:     3,
		InitialBackoff: time.Second,
		CallbackSecret: callbackSecret,
	}
}

// ValidateAPIKey guards against a pasted JSON blob instead of a raw key.
func ValidateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key is required")
	}
	if strings.HasPrefix(key, "{") || strings.HasPrefix(key, "[") || strings.Contains(key, "\"") {
		return errors.New("API key looks like a JSON blob — paste the raw key value, not an API response")
	}
	return nil
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	return backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx)
}

// GetJob fetches a job by id. lowPriority skips retrying on 429: the caller
// gets ErrRateLimited immediately and is expected to treat it as "unknown,
// assume still configured" rather than a cleanup trigger. A definitive 404
// maps to ErrJobNotFound.
func (c *Client) GetJob(ctx context.Context, apiKey string, jobID int64, lowPriority bool) (*Job, error) {
	op := func() (*Job, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/jobs/%d", c.BaseURL, jobID), nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return nil, err // transport error, retryable
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if lowPriority {
				return nil, backoff.Permanent(ErrRateLimited)
			}
			c.Log.Warn("cron_api_rate_limited", zap.Int64("job_id", jobID))
			return nil, ErrRateLimited
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(ErrJobNotFound)
		case resp.StatusCode/100 == 4:
			return nil, backoff.Permanent(apiError(resp, body))
		case resp.StatusCode/100 != 2:
			return nil, apiError(resp, body) // 5xx, retryable
		}

		var out struct {
			JobDetails *Job `json:"jobDetails"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("invalid JSON from cron api: %w", err))
		}
		if out.JobDetails == nil {
			return nil, backoff.Permanent(ErrJobNotFound)
		}
		return out.JobDetails, nil
	}
	return backoff.RetryWithData(op, c.newBackoff(ctx))
}

type createJobRequest struct {
	Job struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		Enabled       bool   `json:"enabled"`
		SaveResponses bool   `json:"saveResponses"`
		RequestMethod int    `json:"requestMethod"`
		ExtendedData  struct {
			Headers map[string]string `json:"headers"`
		} `json:"extendedData"`
		Schedule struct {
			Timezone string `json:"timezone"`
			Hours    []int  `json:"hours"`
			MDays    []int  `json:"mdays"`
			Minutes  []int  `json:"minutes"`
			Months   []int  `json:"months"`
			WDays    []int  `json:"wdays"`
		} `json:"schedule"`
	} `json:"job"`
}

// CreateJob registers a job calling back to callbackURL every intervalMinutes.
func (c *Client) CreateJob(ctx context.Context, apiKey, title, callbackURL string, intervalMinutes int) (int64, error) {
	var payload createJobRequest
	payload.Job.Title = title
	payload.Job.URL = callbackURL
	payload.Job.Enabled = true
	payload.Job.SaveResponses = true
	payload.Job.RequestMethod = 1 // POST
	payload.Job.ExtendedData.Headers = map[string]string{
		"Authorization": "Bearer " + c.CallbackSecret,
	}
	payload.Job.Schedule.Timezone = "UTC"
	payload.Job.Schedule.Hours = []int{-1}
	payload.Job.Schedule.MDays = []int{-1}
	payload.Job.Schedule.Minutes = minutesForInterval(intervalMinutes)
	payload.Job.Schedule.Months = []int{-1}
	payload.Job.Schedule.WDays = []int{-1}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("create cron job: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		return 0, fmt.Errorf("create cron job: %w", apiError(resp, respBody))
	}
	if len(respBody) == 0 {
		return 0, errors.New("cron job created but no confirmation id returned")
	}

	var out struct {
		JobID int64 `json:"jobId"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return 0, fmt.Errorf("invalid JSON when creating cron job: %w", err)
	}
	if out.JobID == 0 {
		return 0, errors.New("cron job created but no confirmation id returned")
	}
	return out.JobID, nil
}

func (c *Client) DeleteJob(ctx context.Context, apiKey string, jobID int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/jobs/%d", c.BaseURL, jobID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("delete cron job: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return ErrJobNotFound
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("delete cron job: %w", apiError(resp, body))
	}
	return nil
}

// minutesForInterval expands an every-N-minutes interval into the scheduler's
// explicit minute list.
func minutesForInterval(interval int) []int {
	if interval < 1 {
		interval = 5
	}
	var minutes []int
	for i := 0; i < 60; i += interval {
		minutes = append(minutes, i)
	}
	return minutes
}

func apiError(resp *http.Response, body []byte) error {
	var parsed struct {
		Error string `json:"error"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
			return errors.New(parsed.Error)
		}
	}
	return fmt.Errorf("server error: %s", resp.Status)
}
