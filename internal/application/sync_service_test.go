package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobrunner/meridian/internal/ports/output"
)

// fakeSyncer counts sync runs.
type fakeSyncer struct {
	runs  int
	count int
	err   error
}

func (f *fakeSyncer) Sync(_ context.Context) (SyncStats, error) {
	f.runs++
	if f.err != nil {
		return SyncStats{}, f.err
	}
	f.count++
	return SyncStats{Added: 1}, nil
}

func (f *fakeSyncer) LayerCount() int { return f.count }

func TestSyncService_RateLimiting(t *testing.T) {
	service := NewSyncService(newTestRegistry(), time.Hour, testLogger())
	ctx := context.Background()

	// Empty storage, nothing to add
	result, err := service.TriggerSync(ctx)
	if err != nil {
		t.Errorf("first sync should succeed, got error: %v", err)
	}
	if result.LayersAdded != 0 {
		t.Errorf("expected 0 layers added with empty storage, got %d", result.LayersAdded)
	}

	_, err = service.TriggerSync(ctx)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestSyncService_CooldownExpires(t *testing.T) {
	syncer := &fakeSyncer{}
	service := NewSyncService(syncer, time.Hour, testLogger())

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := service.TriggerSync(ctx); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	now = now.Add(SyncCooldown - time.Second)
	if _, err := service.TriggerSync(ctx); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited inside cooldown, got %v", err)
	}

	now = now.Add(2 * time.Second)
	result, err := service.TriggerSync(ctx)
	if err != nil {
		t.Fatalf("sync after cooldown failed: %v", err)
	}
	if result.LayersTotal != 2 || !result.SyncedAt.Equal(now) {
		t.Errorf("result = %+v", result)
	}
	if syncer.runs != 2 {
		t.Errorf("runs = %d, want 2", syncer.runs)
	}
}

func TestSyncService_SyncError(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("bucket gone")}
	service := NewSyncService(syncer, time.Hour, testLogger())

	if _, err := service.TriggerSync(context.Background()); err == nil {
		t.Error("expected sync error to propagate")
	}
}

func TestSyncService_StartStop(t *testing.T) {
	syncer := &fakeSyncer{}
	service := NewSyncService(syncer, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service.Start(ctx)
	time.Sleep(70 * time.Millisecond)
	service.Stop()
	service.Stop()

	if service.NextSync().IsZero() {
		t.Error("NextSync() should be set after Start")
	}
	if syncer.runs == 0 {
		t.Error("scheduled sync never ran")
	}
}

func TestSyncService_Interval(t *testing.T) {
	interval := 2 * time.Hour
	service := NewSyncService(newTestRegistry(), interval, testLogger())

	if service.Interval() != interval {
		t.Errorf("expected interval %v, got %v", interval, service.Interval())
	}
	if !service.NextSync().IsZero() {
		t.Error("NextSync() should be zero before Start")
	}
}

func TestSyncService_SyncAddsNewLayers(t *testing.T) {
	storage := &mockStorage{
		objects: []output.StorageObject{
			{Key: "test1.shp"},
			{Key: "test2.shp"},
		},
	}
	registry := NewLayerRegistry(&mockReader{}, newMockStore(), storage, &output.NoOpMetrics{}, testLogger(), t.TempDir())
	service := NewSyncService(registry, time.Hour, testLogger())

	result, err := service.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.LayersAdded != 2 {
		t.Errorf("expected 2 layers added, got %d", result.LayersAdded)
	}
	if result.LayersTotal != 2 {
		t.Errorf("expected 2 total layers, got %d", result.LayersTotal)
	}
}
