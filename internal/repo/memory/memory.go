package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/repo"
)

var (
	_ repo.ServiceStore = (*Store)(nil)
	_ repo.ResultStore  = (*Store)(nil)
	_ repo.EventStore   = (*Store)(nil)
	_ repo.TenantStore  = (*Store)(nil)
)

// Store is the in-memory adapter used for dev and tests.
type Store struct {
	mu       sync.RWMutex
	services map[domain.ServiceID]*domain.Service
	results  []domain.ProbeResult
	events   []domain.StatusEvent
	tenants  map[string]*domain.Tenant // by slug
}

func New() *Store {
	return &Store{
		services: make(map[domain.ServiceID]*domain.Service),
		results:  make([]domain.ProbeResult, 0, 128),
		events:   make([]domain.StatusEvent, 0, 32),
		tenants:  make(map[string]*domain.Tenant),
	}
}

// ---- ServiceStore ----

func (m *Store) Create(ctx context.Context, s *domain.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = domain.ServiceID(uuid.NewString())
	}
	if s.CurrentStatus == "" {
		s.CurrentStatus = domain.StatusUp
	}
	cp := *s
	m.services[s.ID] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, tenantID string, id domain.ServiceID) (*domain.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok || s.TenantID != tenantID {
		return nil, repo.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Store) List(ctx context.Context, tenantID string) ([]domain.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Service, 0, len(m.services))
	for _, s := range m.services {
		if s.TenantID == tenantID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) ListActive(ctx context.Context, tenantID string) ([]domain.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Service, 0, len(m.services))
	for _, s := range m.services {
		if !s.IsActive {
			continue
		}
		if tenantID != "" && s.TenantID != tenantID {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) UpdateStatus(ctx context.Context, id domain.ServiceID, status domain.ServiceStatus, checkedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return repo.ErrNotFound
	}
	s.CurrentStatus = status
	s.LastCheckedAt = checkedAt
	return nil
}

func (m *Store) Touch(ctx context.Context, id domain.ServiceID, checkedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return repo.ErrNotFound
	}
	s.LastCheckedAt = checkedAt
	return nil
}

func (m *Store) UpdateNotificationSettings(ctx context.Context, tenantID string, id domain.ServiceID, ns *domain.NotificationSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok || s.TenantID != tenantID {
		return repo.ErrNotFound
	}
	if ns == nil {
		s.NotificationSettings = nil
		return nil
	}
	cp := *ns
	s.NotificationSettings = &cp
	return nil
}

func (m *Store) Delete(ctx context.Context, tenantID string, id domain.ServiceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok || s.TenantID != tenantID {
		return repo.ErrNotFound
	}
	delete(m.services, id)

	// cascade
	kept := m.results[:0]
	for _, r := range m.results {
		if r.ServiceID != id {
			kept = append(kept, r)
		}
	}
	m.results = kept

	keptEv := m.events[:0]
	for _, e := range m.events {
		if e.ServiceID != id {
			keptEv = append(keptEv, e)
		}
	}
	m.events = keptEv
	return nil
}

// ---- ResultStore ----

func (m *Store) InsertBatch(ctx context.Context, rs []domain.ProbeResult) error {
	if len(rs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, rs...)
	return nil
}

func (m *Store) ResultsByService(ctx context.Context, tenantID string, id domain.ServiceID, sinceMillis int64) ([]domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok || s.TenantID != tenantID {
		return nil, repo.ErrNotFound
	}
	var out []domain.ProbeResult
	for _, r := range m.results {
		if r.ServiceID == id && r.StartedAt >= sinceMillis {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt < out[j].StartedAt })
	return out, nil
}

func (m *Store) DeleteResultsBefore(ctx context.Context, cutoffMillis int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	kept := m.results[:0]
	for _, r := range m.results {
		if r.StartedAt < cutoffMillis {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.results = kept
	return deleted, nil
}

// ---- EventStore ----

func (m *Store) Insert(ctx context.Context, e *domain.StatusEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *Store) EventsByService(ctx context.Context, tenantID string, id domain.ServiceID, limit int) ([]domain.StatusEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok || s.TenantID != tenantID {
		return nil, repo.ErrNotFound
	}
	var out []domain.StatusEvent
	for _, e := range m.events {
		if e.ServiceID == id {
			out = append(out, e)
		}
	}
	sortEventsDesc(out)
	return clampEvents(out, limit), nil
}

func (m *Store) RecentEvents(ctx context.Context, tenantID string, limit int) ([]domain.StatusEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.StatusEvent
	for _, e := range m.events {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sortEventsDesc(out)
	return clampEvents(out, limit), nil
}

func (m *Store) DeleteEventsBefore(ctx context.Context, cutoffMillis int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	kept := m.events[:0]
	for _, e := range m.events {
		if e.Timestamp < cutoffMillis {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return deleted, nil
}

// ---- TenantStore ----

func (m *Store) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tenants[t.Slug] = &cp
	return nil
}

func (m *Store) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[slug]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) GetByToken(ctx context.Context, token string) (*domain.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if token == "" {
		return nil, repo.ErrNotFound
	}
	for _, t := range m.tenants {
		if t.APIToken == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *Store) SetCronConfig(ctx context.Context, slug, apiKey string, jobID int64, intervalMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[slug]
	if !ok {
		return repo.ErrNotFound
	}
	t.CronAPIKey = apiKey
	t.CronJobID = jobID
	t.CronInterval = intervalMinutes
	return nil
}

func (m *Store) ClearCronConfig(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[slug]
	if !ok {
		return repo.ErrNotFound
	}
	t.CronAPIKey = ""
	t.CronJobID = 0
	t.CronInterval = 0
	return nil
}

func sortEventsDesc(evs []domain.StatusEvent) {
	sort.Slice(evs, func(i, j int) bool { return evs[i].Timestamp > evs[j].Timestamp })
}

func clampEvents(evs []domain.StatusEvent, limit int) []domain.StatusEvent {
	if limit > 0 && len(evs) > limit {
		return evs[:limit]
	}
	return evs
}
