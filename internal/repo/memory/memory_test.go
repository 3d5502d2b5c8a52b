package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/repo"
)

func newService(tenant, name string) *domain.Service {
	return &domain.Service{
		TenantID: tenant,
		Name:     name,
		URL:      "https://" + name + ".example.com",
		Type:     domain.TypeBackend,
		IsActive: true,
	}
}

func TestTenantScoping(t *testing.T) {
	ctx := context.Background()
	store := New()

	svc := newService("acme", "api")
	if err := store.Create(ctx, svc); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, "acme", svc.ID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}

	// A different tenant must see the same "not found" as a bogus id.
	if _, err := store.Get(ctx, "globex", svc.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-tenant get must be ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "globex", svc.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-tenant delete must be ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "acme", svc.ID); err != nil {
		t.Fatalf("cross-tenant delete must not mutate: %v", err)
	}
	if err := store.UpdateNotificationSettings(ctx, "globex", svc.ID, &domain.NotificationSettings{NotifyOnDown: true}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-tenant settings update must be ErrNotFound, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := New()

	svc := newService("acme", "api")
	other := newService("acme", "site")
	for _, s := range []*domain.Service{svc, other} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	results := []domain.ProbeResult{
		{ServiceID: svc.ID, Region: domain.DefaultRegion, StatusCode: 200, StartedAt: 100, Success: true},
		{ServiceID: other.ID, Region: domain.DefaultRegion, StatusCode: 200, StartedAt: 100, Success: true},
	}
	if err := store.InsertBatch(ctx, results); err != nil {
		t.Fatal(err)
	}
	for _, id := range []domain.ServiceID{svc.ID, other.ID} {
		ev := &domain.StatusEvent{ServiceID: id, TenantID: "acme", PreviousStatus: domain.StatusUp, NewStatus: domain.StatusDown, Timestamp: 100}
		if err := store.Insert(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Delete(ctx, "acme", svc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := store.ResultsByService(ctx, "acme", svc.ID, 0); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("results of a deleted service must be gone, got %v", err)
	}
	rs, err := store.ResultsByService(ctx, "acme", other.ID, 0)
	if err != nil || len(rs) != 1 {
		t.Fatalf("sibling results must survive: %v / %d", err, len(rs))
	}
	evs, err := store.RecentEvents(ctx, "acme", 10)
	if err != nil || len(evs) != 1 || evs[0].ServiceID != other.ID {
		t.Fatalf("cascade must only remove the deleted service's events: %v", evs)
	}
}

func TestDeleteBeforeCountsAgedRows(t *testing.T) {
	ctx := context.Background()
	store := New()

	svc := newService("acme", "api")
	if err := store.Create(ctx, svc); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertBatch(ctx, []domain.ProbeResult{
		{ServiceID: svc.ID, StartedAt: 50},
		{ServiceID: svc.ID, StartedAt: 150},
		{ServiceID: svc.ID, StartedAt: 250},
	}); err != nil {
		t.Fatal(err)
	}
	for _, ts := range []int64{50, 250} {
		if err := store.Insert(ctx, &domain.StatusEvent{ServiceID: svc.ID, TenantID: "acme", Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.DeleteResultsBefore(ctx, 200)
	if err != nil || n != 2 {
		t.Fatalf("want 2 results deleted, got %d (%v)", n, err)
	}
	n, err = store.DeleteEventsBefore(ctx, 200)
	if err != nil || n != 1 {
		t.Fatalf("want 1 event deleted, got %d (%v)", n, err)
	}

	rs, _ := store.ResultsByService(ctx, "acme", svc.ID, 0)
	if len(rs) != 1 || rs[0].StartedAt != 250 {
		t.Fatalf("newest result must survive: %v", rs)
	}
}

func TestEventsOrderedAndClamped(t *testing.T) {
	ctx := context.Background()
	store := New()

	svc := newService("acme", "api")
	if err := store.Create(ctx, svc); err != nil {
		t.Fatal(err)
	}
	for _, ts := range []int64{10, 30, 20} {
		if err := store.Insert(ctx, &domain.StatusEvent{ServiceID: svc.ID, TenantID: "acme", Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}

	evs, err := store.EventsByService(ctx, "acme", svc.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].Timestamp != 30 || evs[1].Timestamp != 20 {
		t.Fatalf("want newest-first clamped to 2, got %v", evs)
	}
}

func TestListActiveAcrossTenants(t *testing.T) {
	ctx := context.Background()
	store := New()

	a := newService("acme", "a")
	b := newService("globex", "b")
	c := newService("acme", "c")
	c.IsActive = false
	for _, s := range []*domain.Service{a, b, c} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListActive(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("empty tenant means every active service: %v / %d", err, len(all))
	}
	acme, err := store.ListActive(ctx, "acme")
	if err != nil || len(acme) != 1 || acme[0].ID != a.ID {
		t.Fatalf("tenant-scoped active list wrong: %v", acme)
	}
}

func TestTenantLookupByToken(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.CreateTenant(ctx, &domain.Tenant{Slug: "acme", Name: "Acme", APIToken: "tok-1"}); err != nil {
		t.Fatal(err)
	}

	tn, err := store.GetByToken(ctx, "tok-1")
	if err != nil || tn.Slug != "acme" {
		t.Fatalf("token lookup failed: %v / %+v", err, tn)
	}
	if _, err := store.GetByToken(ctx, ""); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("empty token must never match, got %v", err)
	}
	if _, err := store.GetByToken(ctx, "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown token: got %v", err)
	}
}
