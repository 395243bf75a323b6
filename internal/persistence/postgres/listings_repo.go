package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nexusx/pricer/internal/domain"
	"github.com/nexusx/pricer/internal/persistence"
)

// listingsRepo implements ListingsRepo for PostgreSQL.
type listingsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewListingsRepo creates a PostgreSQL listings repository.
func NewListingsRepo(db *sqlx.DB, timeout time.Duration) persistence.ListingsRepo {
	return &listingsRepo{db: db, timeout: timeout}
}

func (r *listingsRepo) Active(ctx context.Context) ([]domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT listing_id, slug, name, category_id,
		       floor_price_usdc, COALESCE(ceiling_price_usdc, 0) AS ceiling_price_usdc,
		       current_price_usdc, capacity_per_minute, status
		FROM listings
		WHERE status = $1
		ORDER BY listing_id`

	var listings []domain.Listing
	if err := r.db.SelectContext(ctx, &listings, query, domain.ListingActive); err != nil {
		return nil, fmt.Errorf("failed to load active listings: %w", err)
	}
	return listings, nil
}

func (r *listingsRepo) UpdateCurrentPrice(ctx context.Context, listingID string, price float64, computedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE listings
		SET current_price_usdc = $2, price_updated_at = $3
		WHERE listing_id = $1`

	res, err := r.db.ExecContext(ctx, query, listingID, price, computedAt)
	if err != nil {
		return fmt.Errorf("failed to update current price for %s: %w", listingID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("listing %s not found for price update", listingID)
	}
	return nil
}

func (r *listingsRepo) CountActiveInCategory(ctx context.Context, categoryID, excludeListingID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM listings
		WHERE category_id = $1 AND status = $2 AND listing_id <> $3`

	var count int
	if err := r.db.GetContext(ctx, &count, query, categoryID, domain.ListingActive, excludeListingID); err != nil {
		return 0, fmt.Errorf("failed to count category competitors: %w", err)
	}
	return count, nil
}
