package repo

import (
	"context"
	"errors"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

// ErrNotFound is returned when a record does not exist or is owned by a
// different tenant. Callers must not be able to distinguish the two cases.
var ErrNotFound = errors.New("not found")

// Ports (interfaces) — swap in any DB adapter later. Method names are kept
// disjoint so one adapter struct can satisfy all of them.

type ServiceStore interface {
	Create(ctx context.Context, s *domain.Service) error
	// Get is tenant-scoped: a service owned by another tenant is ErrNotFound.
	Get(ctx context.Context, tenantID string, id domain.ServiceID) (*domain.Service, error)
	List(ctx context.Context, tenantID string) ([]domain.Service, error)
	// ListActive returns active services; empty tenantID means all tenants
	// (background trigger path, shared-secret authenticated).
	ListActive(ctx context.Context, tenantID string) ([]domain.Service, error)
	// UpdateStatus and Touch are the transition detector's writes; they are
	// keyed by id only because the trigger path runs with elevated trust.
	UpdateStatus(ctx context.Context, id domain.ServiceID, status domain.ServiceStatus, checkedAt int64) error
	Touch(ctx context.Context, id domain.ServiceID, checkedAt int64) error
	UpdateNotificationSettings(ctx context.Context, tenantID string, id domain.ServiceID, ns *domain.NotificationSettings) error
	// Delete cascades to the service's probe results and status events.
	Delete(ctx context.Context, tenantID string, id domain.ServiceID) error
}

type ResultStore interface {
	InsertBatch(ctx context.Context, rs []domain.ProbeResult) error
	ResultsByService(ctx context.Context, tenantID string, id domain.ServiceID, sinceMillis int64) ([]domain.ProbeResult, error)
	DeleteResultsBefore(ctx context.Context, cutoffMillis int64) (int64, error)
}

type EventStore interface {
	Insert(ctx context.Context, e *domain.StatusEvent) error
	EventsByService(ctx context.Context, tenantID string, id domain.ServiceID, limit int) ([]domain.StatusEvent, error)
	RecentEvents(ctx context.Context, tenantID string, limit int) ([]domain.StatusEvent, error)
	DeleteEventsBefore(ctx context.Context, cutoffMillis int64) (int64, error)
}

type TenantStore interface {
	CreateTenant(ctx context.Context, t *domain.Tenant) error
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	GetByToken(ctx context.Context, token string) (*domain.Tenant, error)
	SetCronConfig(ctx context.Context, slug, apiKey string, jobID int64, intervalMinutes int) error
	ClearCronConfig(ctx context.Context, slug string) error
}
