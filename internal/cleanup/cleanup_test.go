package cleanup

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/repo/memory"
)

func TestSweeper_DeletesOnlyAgedRows(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	old := now.Add(-6 * 24 * time.Hour).UnixMilli()
	fresh := now.Add(-time.Hour).UnixMilli()

	_ = store.InsertBatch(ctx, []domain.ProbeResult{
		{ServiceID: "s1", Region: domain.RegionUSEast1, StartedAt: old},
		{ServiceID: "s1", Region: domain.RegionEUCentral1, StartedAt: old},
		{ServiceID: "s1", Region: domain.RegionAPSouth1, StartedAt: fresh},
	})
	_ = store.Insert(ctx, &domain.StatusEvent{ServiceID: "s1", TenantID: "acme", Timestamp: old})
	_ = store.Insert(ctx, &domain.StatusEvent{ServiceID: "s1", TenantID: "acme", Timestamp: fresh})

	sw := &Sweeper{Results: store, Events: store, Log: zap.NewNop(), Now: func() time.Time { return now }}

	sum, err := sw.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.ProbeResultsDeleted != 2 || sum.StatusEventsDeleted != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestSweeper_Idempotent(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	now := time.Now()
	old := now.Add(-10 * 24 * time.Hour).UnixMilli()
	_ = store.InsertBatch(ctx, []domain.ProbeResult{{ServiceID: "s1", StartedAt: old}})
	_ = store.Insert(ctx, &domain.StatusEvent{ServiceID: "s1", Timestamp: old})

	sw := &Sweeper{Results: store, Events: store, Log: zap.NewNop()}

	first, err := sw.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.ProbeResultsDeleted != 1 || first.StatusEventsDeleted != 1 {
		t.Fatalf("first run should delete the aged rows: %+v", first)
	}

	second, err := sw.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ProbeResultsDeleted != 0 || second.StatusEventsDeleted != 0 {
		t.Fatalf("second run with no new data must delete nothing: %+v", second)
	}
}
