package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nexusx/pricer/internal/persistence"
)

// signalsRepo implements SignalsRepo for PostgreSQL.
type signalsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalsRepo creates a PostgreSQL demand-signals repository.
func NewSignalsRepo(db *sqlx.DB, timeout time.Duration) persistence.SignalsRepo {
	return &signalsRepo{db: db, timeout: timeout}
}

func (r *signalsRepo) Recent(ctx context.Context, listingID string, since time.Time) ([]persistence.SignalRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, listing_id, kind, weight, buyer_id, created_at
		FROM demand_signals
		WHERE listing_id = $1 AND created_at >= $2
		ORDER BY created_at ASC`

	var rows []persistence.SignalRow
	if err := r.db.SelectContext(ctx, &rows, query, listingID, since); err != nil {
		return nil, fmt.Errorf("failed to load recent signals for %s: %w", listingID, err)
	}
	return rows, nil
}
