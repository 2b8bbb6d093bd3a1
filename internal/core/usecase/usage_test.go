package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

type memoryUsageStore struct {
	mu        sync.Mutex
	snapshots map[string]domain.UsageSnapshot
}

func newMemoryUsageStore() *memoryUsageStore {
	return &memoryUsageStore{snapshots: make(map[string]domain.UsageSnapshot)}
}

func (s *memoryUsageStore) SaveSnapshot(_ context.Context, snapshot domain.UsageSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Day.Format("2006-01-02")] = snapshot
	return nil
}

func (s *memoryUsageStore) LoadSnapshot(_ context.Context, day string) (*domain.UsageSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[day]
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

func TestUsageMonitorEnforcesHourlyLimit(t *testing.T) {
	limits := DefaultUsageLimits()
	limits.MaxSearchesPerHour = 2
	monitor := NewUsageMonitor(limits, nil, nil)

	for i := 0; i < 2; i++ {
		if err := monitor.CheckSearchAllowed(context.Background()); err != nil {
			t.Fatalf("search %d unexpectedly blocked: %v", i, err)
		}
		monitor.RecordSearch(context.Background(), false)
	}
	if err := monitor.CheckSearchAllowed(context.Background()); !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestUsageMonitorHourBoundaryResetsHourlyCounterOnly(t *testing.T) {
	limits := DefaultUsageLimits()
	limits.MaxSearchesPerHour = 1
	monitor := NewUsageMonitor(limits, nil, nil)

	current := time.Date(2026, 3, 10, 9, 55, 0, 0, time.UTC)
	monitor.now = func() time.Time { return current }
	monitor.currentDay = current.Format("2006-01-02")
	monitor.currentHour = current.Hour()

	monitor.RecordSearch(context.Background(), false)
	if err := monitor.CheckSearchAllowed(context.Background()); !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected hourly quota hit, got %v", err)
	}

	current = current.Add(10 * time.Minute) // crosses into 10:05
	if err := monitor.CheckSearchAllowed(context.Background()); err != nil {
		t.Fatalf("expected hourly counter reset, got %v", err)
	}
	summary := monitor.Summary(context.Background())
	if summary.SearchesToday != 1 {
		t.Fatalf("daily counter must survive the hour boundary, got %d", summary.SearchesToday)
	}
}

func TestUsageMonitorDailyRolloverResetsAndPersists(t *testing.T) {
	store := newMemoryUsageStore()
	limits := DefaultUsageLimits()
	monitor := NewUsageMonitor(limits, store, nil)

	current := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	monitor.now = func() time.Time { return current }
	monitor.currentDay = current.Format("2006-01-02")
	monitor.currentHour = current.Hour()

	monitor.RecordSearch(context.Background(), true)
	monitor.RecordExport(context.Background())

	current = current.Add(20 * time.Minute) // next day
	summary := monitor.Summary(context.Background())
	if summary.SearchesToday != 0 || summary.ExportsToday != 0 || summary.EstimatedCostToday != 0 {
		t.Fatalf("expected reset counters after rollover, got %+v", summary)
	}

	// Rollover persistence runs async.
	deadline := time.Now().Add(time.Second)
	for {
		snapshot, _ := store.LoadSnapshot(context.Background(), "2026-03-10")
		if snapshot != nil {
			if snapshot.Searches != 1 || snapshot.Exports != 1 || snapshot.AISummaries != 1 {
				t.Fatalf("wrong persisted snapshot: %+v", snapshot)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("rollover snapshot never persisted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUsageMonitorCostCeilingBlocksSearches(t *testing.T) {
	limits := DefaultUsageLimits()
	limits.DailyCostLimit = 0.011
	limits.CostPerSearch = 0.001
	limits.CostPerSummary = 0.01
	monitor := NewUsageMonitor(limits, nil, nil)

	monitor.RecordSearch(context.Background(), true) // cost 0.011
	if err := monitor.CheckSearchAllowed(context.Background()); !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected cost ceiling to block, got %v", err)
	}
}

func TestUsageMonitorRestoreLoadsTodaySnapshot(t *testing.T) {
	store := newMemoryUsageStore()
	monitor := NewUsageMonitor(DefaultUsageLimits(), store, nil)

	day, _ := time.Parse("2006-01-02", monitor.currentDay)
	_ = store.SaveSnapshot(context.Background(), domain.UsageSnapshot{
		Day: day, Searches: 42, Exports: 3, AISummaries: 7, EstimatedCost: 0.5,
	})

	monitor.Restore(context.Background())
	summary := monitor.Summary(context.Background())
	if summary.SearchesToday != 42 || summary.ExportsToday != 3 {
		t.Fatalf("restore did not load snapshot: %+v", summary)
	}
}
