package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/repo"
)

var (
	_ repo.ServiceStore = (*Store)(nil)
	_ repo.ResultStore  = (*Store)(nil)
	_ repo.EventStore   = (*Store)(nil)
	_ repo.TenantStore  = (*Store)(nil)
)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables and the indexes the pipeline queries rely
// on. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tenants (
    slug          TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    api_token     TEXT NOT NULL DEFAULT '',
    cron_api_key  TEXT NOT NULL DEFAULT '',
    cron_job_id   BIGINT NOT NULL DEFAULT 0,
    cron_interval INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS services (
    id                    TEXT PRIMARY KEY,
    tenant_id             TEXT NOT NULL REFERENCES tenants(slug),
    name                  TEXT NOT NULL,
    url                   TEXT NOT NULL,
    type                  TEXT NOT NULL,
    is_active             BOOLEAN NOT NULL DEFAULT TRUE,
    current_status        TEXT NOT NULL DEFAULT 'up',
    last_checked_at       BIGINT NOT NULL DEFAULT 0,
    notification_settings JSONB
);
CREATE INDEX IF NOT EXISTS idx_services_tenant ON services (tenant_id);

CREATE TABLE IF NOT EXISTS probe_results (
    id            BIGSERIAL PRIMARY KEY,
    service_id    TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
    region        TEXT NOT NULL,
    status_code   INT NOT NULL,
    response_time BIGINT NOT NULL,
    started_at    BIGINT NOT NULL,
    success       BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_probe_results_service_started ON probe_results (service_id, started_at);
CREATE INDEX IF NOT EXISTS idx_probe_results_started ON probe_results (started_at);

CREATE TABLE IF NOT EXISTS status_events (
    id               BIGSERIAL PRIMARY KEY,
    service_id       TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
    tenant_id        TEXT NOT NULL,
    previous_status  TEXT NOT NULL,
    new_status       TEXT NOT NULL,
    ts               BIGINT NOT NULL,
    affected_regions TEXT[]
);
CREATE INDEX IF NOT EXISTS idx_status_events_service_ts ON status_events (service_id, ts);
CREATE INDEX IF NOT EXISTS idx_status_events_tenant_ts ON status_events (tenant_id, ts);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ---- ServiceStore ----

func (s *Store) Create(ctx context.Context, svc *domain.Service) error {
	if svc.ID == "" {
		svc.ID = domain.ServiceID(uuid.NewString())
	}
	if svc.CurrentStatus == "" {
		svc.CurrentStatus = domain.StatusUp
	}
	ns, err := marshalSettings(svc.NotificationSettings)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO services
		   (id, tenant_id, name, url, type, is_active, current_status, last_checked_at, notification_settings)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		string(svc.ID), svc.TenantID, svc.Name, svc.URL, string(svc.Type),
		svc.IsActive, string(svc.CurrentStatus), svc.LastCheckedAt, ns,
	)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

const serviceCols = `id, tenant_id, name, url, type, is_active, current_status, last_checked_at, notification_settings`

func (s *Store) Get(ctx context.Context, tenantID string, id domain.ServiceID) (*domain.Service, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+serviceCols+` FROM services WHERE id=$1 AND tenant_id=$2`,
		string(id), tenantID)
	svc, err := scanService(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func (s *Store) List(ctx context.Context, tenantID string) ([]domain.Service, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+serviceCols+` FROM services WHERE tenant_id=$1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return collectServices(rows)
}

func (s *Store) ListActive(ctx context.Context, tenantID string) ([]domain.Service, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if tenantID == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+serviceCols+` FROM services WHERE is_active ORDER BY id`)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+serviceCols+` FROM services WHERE is_active AND tenant_id=$1 ORDER BY id`, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("list active services: %w", err)
	}
	return collectServices(rows)
}

func (s *Store) UpdateStatus(ctx context.Context, id domain.ServiceID, status domain.ServiceStatus, checkedAt int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE services SET current_status=$2, last_checked_at=$3 WHERE id=$1`,
		string(id), string(status), checkedAt)
	if err != nil {
		return fmt.Errorf("update service status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Touch(ctx context.Context, id domain.ServiceID, checkedAt int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE services SET last_checked_at=$2 WHERE id=$1`,
		string(id), checkedAt)
	if err != nil {
		return fmt.Errorf("touch service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateNotificationSettings(ctx context.Context, tenantID string, id domain.ServiceID, ns *domain.NotificationSettings) error {
	raw, err := marshalSettings(ns)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE services SET notification_settings=$3 WHERE id=$1 AND tenant_id=$2`,
		string(id), tenantID, raw)
	if err != nil {
		return fmt.Errorf("update notification settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, tenantID string, id domain.ServiceID) error {
	// probe_results and status_events cascade via FK
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM services WHERE id=$1 AND tenant_id=$2`,
		string(id), tenantID)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- ResultStore ----

func (s *Store) InsertBatch(ctx context.Context, rs []domain.ProbeResult) error {
	if len(rs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rs {
		batch.Queue(
			`INSERT INTO probe_results (service_id, region, status_code, response_time, started_at, success)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			string(r.ServiceID), string(r.Region), r.StatusCode, r.ResponseTime, r.StartedAt, r.Success)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert probe results: %w", err)
		}
	}
	return nil
}

func (s *Store) ResultsByService(ctx context.Context, tenantID string, id domain.ServiceID, sinceMillis int64) ([]domain.ProbeResult, error) {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT service_id, region, status_code, response_time, started_at, success
		   FROM probe_results
		  WHERE service_id=$1 AND started_at >= $2
		  ORDER BY started_at`,
		string(id), sinceMillis)
	if err != nil {
		return nil, fmt.Errorf("results by service: %w", err)
	}
	defer rows.Close()

	var out []domain.ProbeResult
	for rows.Next() {
		var (
			r      domain.ProbeResult
			sid    string
			region string
		)
		if err := rows.Scan(&sid, &region, &r.StatusCode, &r.ResponseTime, &r.StartedAt, &r.Success); err != nil {
			return nil, fmt.Errorf("scan probe result: %w", err)
		}
		r.ServiceID = domain.ServiceID(sid)
		r.Region = domain.Region(region)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteResultsBefore(ctx context.Context, cutoffMillis int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM probe_results WHERE started_at < $1`, cutoffMillis)
	if err != nil {
		return 0, fmt.Errorf("delete aged probe results: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---- EventStore ----

func (s *Store) Insert(ctx context.Context, e *domain.StatusEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO status_events (service_id, tenant_id, previous_status, new_status, ts, affected_regions)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		string(e.ServiceID), e.TenantID, string(e.PreviousStatus), string(e.NewStatus), e.Timestamp, e.AffectedRegions)
	if err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}
	return nil
}

func (s *Store) EventsByService(ctx context.Context, tenantID string, id domain.ServiceID, limit int) ([]domain.StatusEvent, error) {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT service_id, tenant_id, previous_status, new_status, ts, affected_regions
		   FROM status_events
		  WHERE service_id=$1
		  ORDER BY ts DESC
		  LIMIT $2`,
		string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("events by service: %w", err)
	}
	return collectEvents(rows)
}

func (s *Store) RecentEvents(ctx context.Context, tenantID string, limit int) ([]domain.StatusEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT service_id, tenant_id, previous_status, new_status, ts, affected_regions
		   FROM status_events
		  WHERE tenant_id=$1
		  ORDER BY ts DESC
		  LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return collectEvents(rows)
}

func (s *Store) DeleteEventsBefore(ctx context.Context, cutoffMillis int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM status_events WHERE ts < $1`, cutoffMillis)
	if err != nil {
		return 0, fmt.Errorf("delete aged status events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---- TenantStore ----

func (s *Store) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (slug, name, api_token, cron_api_key, cron_job_id, cron_interval)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (slug) DO NOTHING`,
		t.Slug, t.Name, t.APIToken, t.CronAPIKey, t.CronJobID, t.CronInterval)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT slug, name, api_token, cron_api_key, cron_job_id, cron_interval
		   FROM tenants WHERE slug=$1`, slug)
	return scanTenant(row)
}

func (s *Store) GetByToken(ctx context.Context, token string) (*domain.Tenant, error) {
	if token == "" {
		return nil, repo.ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT slug, name, api_token, cron_api_key, cron_job_id, cron_interval
		   FROM tenants WHERE api_token=$1`, token)
	return scanTenant(row)
}

func (s *Store) SetCronConfig(ctx context.Context, slug, apiKey string, jobID int64, intervalMinutes int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET cron_api_key=$2, cron_job_id=$3, cron_interval=$4 WHERE slug=$1`,
		slug, apiKey, jobID, intervalMinutes)
	if err != nil {
		return fmt.Errorf("set cron config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) ClearCronConfig(ctx context.Context, slug string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET cron_api_key='', cron_job_id=0, cron_interval=0 WHERE slug=$1`,
		slug)
	if err != nil {
		return fmt.Errorf("clear cron config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- helpers ----

func marshalSettings(ns *domain.NotificationSettings) ([]byte, error) {
	if ns == nil {
		return nil, nil
	}
	raw, err := json.Marshal(ns)
	if err != nil {
		return nil, fmt.Errorf("marshal notification settings: %w", err)
	}
	return raw, nil
}

func scanService(row pgx.Row) (*domain.Service, error) {
	var (
		svc    domain.Service
		id     string
		typ    string
		status string
		raw    []byte
	)
	if err := row.Scan(&id, &svc.TenantID, &svc.Name, &svc.URL, &typ,
		&svc.IsActive, &status, &svc.LastCheckedAt, &raw); err != nil {
		return nil, err
	}
	svc.ID = domain.ServiceID(id)
	svc.Type = domain.ServiceType(typ)
	svc.CurrentStatus = domain.ServiceStatus(status)
	if len(raw) > 0 {
		var ns domain.NotificationSettings
		if err := json.Unmarshal(raw, &ns); err != nil {
			return nil, fmt.Errorf("unmarshal notification settings: %w", err)
		}
		svc.NotificationSettings = &ns
	}
	return &svc, nil
}

func collectServices(rows pgx.Rows) ([]domain.Service, error) {
	defer rows.Close()
	var out []domain.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, *svc)
	}
	return out, rows.Err()
}

func collectEvents(rows pgx.Rows) ([]domain.StatusEvent, error) {
	defer rows.Close()
	var out []domain.StatusEvent
	for rows.Next() {
		var (
			e      domain.StatusEvent
			sid    string
			prev   string
			next   string
			regs   []string
		)
		if err := rows.Scan(&sid, &e.TenantID, &prev, &next, &e.Timestamp, &regs); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		e.ServiceID = domain.ServiceID(sid)
		e.PreviousStatus = domain.ServiceStatus(prev)
		e.NewStatus = domain.ServiceStatus(next)
		e.AffectedRegions = regs
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := row.Scan(&t.Slug, &t.Name, &t.APIToken, &t.CronAPIKey, &t.CronJobID, &t.CronInterval); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}
