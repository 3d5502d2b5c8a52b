package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/check"
	"github.com/pulsewatch/pulsewatch/internal/cleanup"
	"github.com/pulsewatch/pulsewatch/internal/cronsync"
	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/probe"
	"github.com/pulsewatch/pulsewatch/internal/repo/memory"
)

type stubProber struct {
	code int
}

func (p *stubProber) Probe(ctx context.Context, target string) []probe.RegionResult {
	return []probe.RegionResult{{
		Region:     domain.DefaultRegion,
		StatusCode: p.code,
		StartedAt:  domain.NowMillis(),
		Success:    domain.ProbeSuccess(p.code),
	}}
}

type stubCronAPI struct {
	created int64
	getErr  error
}

func (a *stubCronAPI) GetJob(ctx context.Context, apiKey string, jobID int64, lowPriority bool) (*cronsync.Job, error) {
	if a.getErr != nil {
		return nil, a.getErr
	}
	return &cronsync.Job{JobID: jobID, Enabled: true}, nil
}

func (a *stubCronAPI) CreateJob(ctx context.Context, apiKey, title, callbackURL string, intervalMinutes int) (int64, error) {
	return a.created, nil
}

func (a *stubCronAPI) DeleteJob(ctx context.Context, apiKey string, jobID int64) error {
	return nil
}

type testEnv struct {
	store  *memory.Store
	server *Server
	ts     *httptest.Server
	prober *stubProber
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	log := zap.NewNop()
	prober := &stubProber{code: 200}

	for _, tn := range []*domain.Tenant{
		{Slug: "acme", Name: "Acme", APIToken: "tok-acme"},
		{Slug: "globex", Name: "Globex", APIToken: "tok-globex"},
	} {
		if err := store.CreateTenant(context.Background(), tn); err != nil {
			t.Fatal(err)
		}
	}

	srv := &Server{
		Log:      log,
		Services: store,
		Results:  store,
		Events:   store,
		Tenants:  store,
		Runner: &check.Runner{
			Log:         log,
			Services:    store,
			Results:     store,
			Events:      store,
			Prober:      prober,
			Concurrency: 4,
		},
		Sweeper: &cleanup.Sweeper{Results: store, Events: store, Log: log},
		Cron: &cronsync.Manager{
			Tenants:       store,
			API:           &stubCronAPI{created: 11},
			Log:           log,
			PublicBaseURL: "https://app.example",
		},
		CronSecret: "sekrit",
	}

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{store: store, server: srv, ts: ts, prober: prober}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func seedService(t *testing.T, e *testEnv, tenant, name string) *domain.Service {
	t.Helper()
	svc := &domain.Service{
		TenantID:      tenant,
		Name:          name,
		URL:           "https://" + name + ".example.com",
		Type:          domain.TypeBackend,
		IsActive:      true,
		CurrentStatus: domain.StatusUp,
	}
	if err := e.store.Create(context.Background(), svc); err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestCheckRun_RequiresSecret(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/check/run", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("trigger without secret must be 401, got %d", resp.StatusCode)
	}
}

func TestCheckRun_ReportsPerServiceSummary(t *testing.T) {
	e := newTestEnv(t)
	svc := seedService(t, e, "acme", "api")
	e.prober.code = 503

	resp, body := e.do(t, http.MethodPost, "/api/check/run?org=acme", "sekrit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("run: %d %s", resp.StatusCode, body)
	}

	var out struct {
		Success bool            `json:"success"`
		Summary []check.Summary `json:"summary"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || len(out.Summary) != 1 {
		t.Fatalf("unexpected response: %s", body)
	}
	if out.Summary[0].ServiceID != svc.ID || out.Summary[0].Status != domain.StatusDown {
		t.Fatalf("summary must carry the new status: %+v", out.Summary[0])
	}

	got, err := e.store.Get(context.Background(), "acme", svc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentStatus != domain.StatusDown {
		t.Fatalf("status must be persisted, got %s", got.CurrentStatus)
	}
}

func TestCheckRun_UnknownOrg(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/api/check/run?org=nope", "sekrit", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown org must be 404, got %d", resp.StatusCode)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	e := newTestEnv(t)
	svc := seedService(t, e, "acme", "api")

	old := domain.NowMillis() - (6 * 24 * time.Hour).Milliseconds()
	if err := e.store.InsertBatch(context.Background(), []domain.ProbeResult{
		{ServiceID: svc.ID, StartedAt: old},
		{ServiceID: svc.ID, StartedAt: domain.NowMillis()},
	}); err != nil {
		t.Fatal(err)
	}

	resp, body := e.do(t, http.MethodPost, "/api/check/cleanup", "sekrit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cleanup: %d %s", resp.StatusCode, body)
	}

	var out struct {
		Deleted cleanup.Summary `json:"deleted"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Deleted.ProbeResultsDeleted != 1 {
		t.Fatalf("want exactly the aged row deleted, got %+v", out.Deleted)
	}
}

func TestServiceCRUD(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/services", "tok-acme", map[string]any{
		"name": "checkout",
		"url":  "https://checkout.example.com",
		"type": "backend",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	var created domain.Service
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.CurrentStatus != domain.StatusUp || !created.IsActive {
		t.Fatalf("unexpected created service: %+v", created)
	}

	resp, body = e.do(t, http.MethodGet, "/api/services/"+string(created.ID), "tok-acme", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: %d %s", resp.StatusCode, body)
	}

	resp, body = e.do(t, http.MethodPatch, "/api/services/"+string(created.ID), "tok-acme", map[string]any{
		"notificationSettings": map[string]any{
			"slackWebhook": "https://hooks.slack.example/x",
			"notifyOnDown": true,
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: %d %s", resp.StatusCode, body)
	}
	var patched domain.Service
	if err := json.Unmarshal(body, &patched); err != nil {
		t.Fatal(err)
	}
	if patched.NotificationSettings == nil || !patched.NotificationSettings.NotifyOnDown {
		t.Fatalf("settings must stick: %+v", patched.NotificationSettings)
	}

	resp, _ = e.do(t, http.MethodDelete, "/api/services/"+string(created.ID), "tok-acme", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodGet, "/api/services/"+string(created.ID), "tok-acme", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted service must be gone, got %d", resp.StatusCode)
	}
}

func TestServiceCreate_RejectsBadURL(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/api/services", "tok-acme", map[string]any{
		"name": "x",
		"url":  "ftp://nope.example.com",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-http url must be rejected, got %d", resp.StatusCode)
	}
}

func TestCrossTenantIsolation(t *testing.T) {
	e := newTestEnv(t)
	svc := seedService(t, e, "acme", "api")

	resp, _ := e.do(t, http.MethodGet, "/api/services/"+string(svc.ID), "tok-globex", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-tenant read must be 404, got %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodDelete, "/api/services/"+string(svc.ID), "tok-globex", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-tenant delete must be 404, got %d", resp.StatusCode)
	}
	if _, err := e.store.Get(context.Background(), "acme", svc.ID); err != nil {
		t.Fatalf("cross-tenant delete must not mutate: %v", err)
	}
}

func TestStatusSummary_WorstOf(t *testing.T) {
	e := newTestEnv(t)
	seedService(t, e, "acme", "a")
	degraded := seedService(t, e, "acme", "b")
	if err := e.store.UpdateStatus(context.Background(), degraded.ID, domain.StatusDegraded, domain.NowMillis()); err != nil {
		t.Fatal(err)
	}

	resp, body := e.do(t, http.MethodGet, "/api/status/summary", "tok-acme", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: %d %s", resp.StatusCode, body)
	}
	var out struct {
		OverallStatus domain.ServiceStatus `json:"overallStatus"`
		Services      []domain.Service     `json:"services"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.OverallStatus != domain.StatusDegraded || len(out.Services) != 2 {
		t.Fatalf("want worst-of degraded over 2 services, got %+v", out)
	}
}

func TestCronSettingsRoutes(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.do(t, http.MethodGet, "/api/settings/cron", "tok-acme", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", resp.StatusCode, body)
	}
	var st cronsync.Status
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatal(err)
	}
	if st.Configured {
		t.Fatalf("fresh tenant must be unconfigured: %+v", st)
	}

	resp, body = e.do(t, http.MethodPost, "/api/settings/cron", "tok-acme", map[string]any{
		"apiKey":   "raw-api-key-1234",
		"interval": 10,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("configure: %d %s", resp.StatusCode, body)
	}

	resp, body = e.do(t, http.MethodGet, "/api/settings/cron", "tok-acme", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status after configure: %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatal(err)
	}
	if !st.Configured || st.MaskedKey != "****1234" || st.Interval != 10 {
		t.Fatalf("unexpected status after configure: %+v", st)
	}

	resp, _ = e.do(t, http.MethodDelete, "/api/settings/cron", "tok-acme", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disconnect: %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodDelete, "/api/settings/cron", "tok-acme", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("second disconnect must fail, got %d", resp.StatusCode)
	}
}

func TestCronConfigure_RejectsJSONBlob(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/api/settings/cron", "tok-acme", map[string]any{
		"apiKey": `{"apiKey":"x"}`,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("JSON blob key must be 400, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, body)
	}
}
