package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nexusx/pricer/internal/persistence"
)

// transactionsRepo implements TransactionsRepo for PostgreSQL.
type transactionsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTransactionsRepo creates a PostgreSQL transactions repository.
func NewTransactionsRepo(db *sqlx.DB, timeout time.Duration) persistence.TransactionsRepo {
	return &transactionsRepo{db: db, timeout: timeout}
}

func (r *transactionsRepo) CallsSince(ctx context.Context, listingID string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM transactions
		WHERE listing_id = $1 AND created_at >= $2`

	var count int
	if err := r.db.GetContext(ctx, &count, query, listingID, since); err != nil {
		return 0, fmt.Errorf("failed to count transactions for %s: %w", listingID, err)
	}
	return count, nil
}
