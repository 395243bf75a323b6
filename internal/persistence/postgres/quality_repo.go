package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nexusx/pricer/internal/persistence"
)

// qualityRepo implements QualityRepo for PostgreSQL.
type qualityRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewQualityRepo creates a PostgreSQL quality-rollup repository.
func NewQualityRepo(db *sqlx.DB, timeout time.Duration) persistence.QualityRepo {
	return &qualityRepo{db: db, timeout: timeout}
}

func (r *qualityRepo) Latest(ctx context.Context, listingID string) (persistence.QualityRollupRow, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT listing_id, uptime_minutes, total_minutes, success_count, failure_count,
		       median_latency_ms, p99_latency_ms, average_rating, rating_count, rolled_up_at
		FROM quality_rollups
		WHERE listing_id = $1
		ORDER BY rolled_up_at DESC
		LIMIT 1`

	var row persistence.QualityRollupRow
	err := r.db.GetContext(ctx, &row, query, listingID)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.QualityRollupRow{}, false, nil
	}
	if err != nil {
		return persistence.QualityRollupRow{}, false, fmt.Errorf("failed to load quality rollup for %s: %w", listingID, err)
	}
	return row, true, nil
}
