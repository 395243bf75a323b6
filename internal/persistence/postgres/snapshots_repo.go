package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nexusx/pricer/internal/domain"
	"github.com/nexusx/pricer/internal/persistence"
)

// snapshotsRepo implements SnapshotsRepo for PostgreSQL.
type snapshotsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotsRepo creates a PostgreSQL snapshots repository.
func NewSnapshotsRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotsRepo {
	return &snapshotsRepo{db: db, timeout: timeout}
}

// Insert writes one price snapshot. ON CONFLICT keeps a retried cycle
// idempotent per (listing_id, computed_at).
func (r *snapshotsRepo) Insert(ctx context.Context, snap domain.PriceSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO price_snapshots (
			listing_id, floor_price, ceiling_price, current_price, previous_price,
			price_change_pct, demand_multiplier, scarcity_multiplier, quality_multiplier,
			momentum_multiplier, temporal_multiplier, combined_multiplier,
			windows_at_floor, windows_at_ceiling, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (listing_id, computed_at) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		snap.ListingID, snap.FloorPrice, snap.CeilingPrice, snap.CurrentPrice, snap.PreviousPrice,
		snap.PriceChangePct, snap.Multipliers.Demand, snap.Multipliers.Scarcity, snap.Multipliers.Quality,
		snap.Multipliers.Momentum, snap.Multipliers.Temporal, snap.Multipliers.Combined,
		snap.WindowsAtFloor, snap.WindowsAtCeiling, snap.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to insert price snapshot for %s: %w", snap.ListingID, err)
	}
	return nil
}

// resultsRepo implements ResultsRepo for PostgreSQL, storing multipliers
// and inputs as JSONB for offline analysis.
type resultsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewResultsRepo creates a PostgreSQL auction-results repository.
func NewResultsRepo(db *sqlx.DB, timeout time.Duration) persistence.ResultsRepo {
	return &resultsRepo{db: db, timeout: timeout}
}

func (r *resultsRepo) Insert(ctx context.Context, result domain.AuctionResult) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	multipliersJSON, err := json.Marshal(result.Multipliers)
	if err != nil {
		return fmt.Errorf("failed to marshal multipliers: %w", err)
	}
	inputsJSON, err := json.Marshal(result.Inputs)
	if err != nil {
		return fmt.Errorf("failed to marshal inputs: %w", err)
	}

	query := `
		INSERT INTO auction_results (listing_id, price, floor_price, multipliers, inputs, compute_time_us, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (listing_id, computed_at) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query,
		result.ListingID, result.Price, result.FloorPrice,
		multipliersJSON, inputsJSON, result.ComputeTimeUs, result.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to insert auction result for %s: %w", result.ListingID, err)
	}
	return nil
}
