package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

const dayLayout = "2006-01-02"

type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/indexer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS usage_daily (
	day DATE PRIMARY KEY,
	searches INTEGER NOT NULL DEFAULT 0,
	exports INTEGER NOT NULL DEFAULT 0,
	ai_summaries INTEGER NOT NULL DEFAULT 0,
	estimated_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveSnapshot upserts one day's counters. Periodic persists of the
// same day overwrite the previous row; the monitor only moves counters
// forward within a day, so last write wins is correct.
func (r *UsageRepository) SaveSnapshot(ctx context.Context, snapshot domain.UsageSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO usage_daily (day, searches, exports, ai_summaries, estimated_cost, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (day) DO UPDATE SET
	searches = EXCLUDED.searches,
	exports = EXCLUDED.exports,
	ai_summaries = EXCLUDED.ai_summaries,
	estimated_cost = EXCLUDED.estimated_cost,
	updated_at = EXCLUDED.updated_at
`, snapshot.Day.Format(dayLayout), snapshot.Searches, snapshot.Exports, snapshot.AISummaries, snapshot.EstimatedCost, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save usage snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns nil without error when the day has no row yet.
func (r *UsageRepository) LoadSnapshot(ctx context.Context, day string) (*domain.UsageSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT day, searches, exports, ai_summaries, estimated_cost
FROM usage_daily
WHERE day = $1
`, day)

	var (
		dayValue time.Time
		snapshot domain.UsageSnapshot
	)
	err := row.Scan(&dayValue, &snapshot.Searches, &snapshot.Exports, &snapshot.AISummaries, &snapshot.EstimatedCost)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load usage snapshot: %w", err)
	}
	snapshot.Day = dayValue
	return &snapshot, nil
}
