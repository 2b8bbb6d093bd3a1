package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
	"github.com/archivelab/newspaper-search/internal/core/ports"
)

// UsageLimits caps billable operations and their estimated daily cost.
type UsageLimits struct {
	MaxSearchesPerHour int
	MaxSearchesPerDay  int
	MaxExportsPerDay   int
	DailyCostLimit     float64

	CostPerSearch  float64
	CostPerSummary float64
	CostPerExport  float64
}

func DefaultUsageLimits() UsageLimits {
	return UsageLimits{
		MaxSearchesPerHour: 100,
		MaxSearchesPerDay:  500,
		MaxExportsPerDay:   50,
		DailyCostLimit:     5.0,
		CostPerSearch:      0.001,
		CostPerSummary:     0.01,
		CostPerExport:      0.005,
	}
}

// UsageMonitorUseCase tracks hourly/daily operation counters behind one
// mutex. Counters reset when the hour or day boundary passes; the
// previous day's totals are snapshotted to the store at the daily
// rollover.
type UsageMonitorUseCase struct {
	limits UsageLimits
	store  ports.UsageStore
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	searchesDay   int
	searchesHour  int
	exportsDay    int
	summariesDay  int
	estimatedCost float64
	currentDay    string
	currentHour   int
}

func NewUsageMonitor(limits UsageLimits, store ports.UsageStore, logger *slog.Logger) *UsageMonitorUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	m := &UsageMonitorUseCase{
		limits: limits,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	now := m.now().UTC()
	m.currentDay = now.Format("2006-01-02")
	m.currentHour = now.Hour()
	return m
}

// Restore loads today's snapshot, if any, so a restart does not reset
// the daily quota.
func (m *UsageMonitorUseCase) Restore(ctx context.Context) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, err := m.store.LoadSnapshot(ctx, m.currentDay)
	if err != nil {
		m.logger.Warn("usage_restore_failed", "error", err)
		return
	}
	if snapshot == nil {
		return
	}
	m.searchesDay = snapshot.Searches
	m.exportsDay = snapshot.Exports
	m.summariesDay = snapshot.AISummaries
	m.estimatedCost = snapshot.EstimatedCost
}

func (m *UsageMonitorUseCase) CheckSearchAllowed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollCountersLocked(ctx)

	if m.searchesHour >= m.limits.MaxSearchesPerHour {
		return domain.WrapError(domain.ErrQuotaExceeded, "check search quota",
			fmt.Errorf("hourly search limit reached (%d)", m.limits.MaxSearchesPerHour))
	}
	if m.searchesDay >= m.limits.MaxSearchesPerDay {
		return domain.WrapError(domain.ErrQuotaExceeded, "check search quota",
			fmt.Errorf("daily search limit reached (%d)", m.limits.MaxSearchesPerDay))
	}
	if m.limits.DailyCostLimit > 0 && m.estimatedCost >= m.limits.DailyCostLimit {
		return domain.WrapError(domain.ErrQuotaExceeded, "check search quota",
			fmt.Errorf("daily cost limit reached ($%.2f)", m.limits.DailyCostLimit))
	}
	return nil
}

func (m *UsageMonitorUseCase) RecordSearch(ctx context.Context, usedAI bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollCountersLocked(ctx)

	m.searchesDay++
	m.searchesHour++
	m.estimatedCost += m.limits.CostPerSearch
	if usedAI {
		m.summariesDay++
		m.estimatedCost += m.limits.CostPerSummary
	}
}

func (m *UsageMonitorUseCase) CheckExportAllowed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollCountersLocked(ctx)

	if m.exportsDay >= m.limits.MaxExportsPerDay {
		return domain.WrapError(domain.ErrQuotaExceeded, "check export quota",
			fmt.Errorf("daily export limit reached (%d)", m.limits.MaxExportsPerDay))
	}
	return nil
}

func (m *UsageMonitorUseCase) RecordExport(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollCountersLocked(ctx)

	m.exportsDay++
	m.estimatedCost += m.limits.CostPerExport
}

func (m *UsageMonitorUseCase) Summary(ctx context.Context) domain.UsageSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollCountersLocked(ctx)

	return domain.UsageSummary{
		SearchesToday:          m.searchesDay,
		SearchesRemainingToday: max(0, m.limits.MaxSearchesPerDay-m.searchesDay),
		SearchesRemainingHour:  max(0, m.limits.MaxSearchesPerHour-m.searchesHour),
		ExportsToday:           m.exportsDay,
		ExportsRemaining:       max(0, m.limits.MaxExportsPerDay-m.exportsDay),
		AISummariesToday:       m.summariesDay,
		EstimatedCostToday:     m.estimatedCost,
	}
}

// Persist writes the current day's counters. Called periodically by the
// owner and at the daily rollover.
func (m *UsageMonitorUseCase) Persist(ctx context.Context) error {
	m.mu.Lock()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	return m.saveSnapshot(ctx, snapshot)
}

// StartPeriodicPersist flushes counters on the given interval until the
// context is cancelled.
func (m *UsageMonitorUseCase) StartPeriodicPersist(ctx context.Context, interval time.Duration) {
	if m.store == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Persist(ctx); err != nil {
					m.logger.Warn("usage_persist_failed", "error", err)
				}
			}
		}
	}()
}

func (m *UsageMonitorUseCase) rollCountersLocked(ctx context.Context) {
	now := m.now().UTC()
	day := now.Format("2006-01-02")
	if day != m.currentDay {
		closing := m.snapshotLocked()
		m.searchesDay = 0
		m.exportsDay = 0
		m.summariesDay = 0
		m.estimatedCost = 0
		m.currentDay = day
		m.searchesHour = 0
		m.currentHour = now.Hour()
		if m.store != nil {
			go func() {
				if err := m.saveSnapshot(context.WithoutCancel(ctx), closing); err != nil {
					m.logger.Warn("usage_rollover_persist_failed", "error", err)
				}
			}()
		}
		return
	}
	if now.Hour() != m.currentHour {
		m.searchesHour = 0
		m.currentHour = now.Hour()
	}
}

func (m *UsageMonitorUseCase) snapshotLocked() domain.UsageSnapshot {
	day, _ := time.Parse("2006-01-02", m.currentDay)
	return domain.UsageSnapshot{
		Day:           day,
		Searches:      m.searchesDay,
		Exports:       m.exportsDay,
		AISummaries:   m.summariesDay,
		EstimatedCost: m.estimatedCost,
	}
}

func (m *UsageMonitorUseCase) saveSnapshot(ctx context.Context, snapshot domain.UsageSnapshot) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveSnapshot(ctx, snapshot)
}
