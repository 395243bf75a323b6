// Package persistence defines the storage contracts for the pricing
// core. The relational store is the single source of truth for stored
// prices and history; implementations live under postgres/.
package persistence

import (
	"context"
	"time"

	"github.com/nexusx/pricer/internal/domain"
)

// SignalRow is a persisted demand signal, used only by the updater's
// fallback path when the in-memory tracker is cold.
type SignalRow struct {
	ID        int64     `db:"id"`
	ListingID string    `db:"listing_id"`
	Kind      string    `db:"kind"`
	Weight    float64   `db:"weight"`
	BuyerID   *string   `db:"buyer_id"`
	CreatedAt time.Time `db:"created_at"`
}

// QualityRollupRow is the latest telemetry aggregate for a listing's
// provider, scored by the quality package before pricing.
type QualityRollupRow struct {
	ListingID       string    `db:"listing_id"`
	UptimeMinutes   float64   `db:"uptime_minutes"`
	TotalMinutes    float64   `db:"total_minutes"`
	SuccessCount    int64     `db:"success_count"`
	FailureCount    int64     `db:"failure_count"`
	MedianLatencyMs float64   `db:"median_latency_ms"`
	P99LatencyMs    float64   `db:"p99_latency_ms"`
	AverageRating   float64   `db:"average_rating"`
	RatingCount     int64     `db:"rating_count"`
	RolledUpAt      time.Time `db:"rolled_up_at"`
}

// Raw converts the rollup into scorer input.
func (r QualityRollupRow) Raw() domain.RawProviderMetrics {
	return domain.RawProviderMetrics{
		UptimeMinutes:   r.UptimeMinutes,
		TotalMinutes:    r.TotalMinutes,
		SuccessCount:    r.SuccessCount,
		FailureCount:    r.FailureCount,
		MedianLatencyMs: r.MedianLatencyMs,
		P99LatencyMs:    r.P99LatencyMs,
		AverageRating:   r.AverageRating,
		RatingCount:     r.RatingCount,
	}
}

// ListingsRepo reads and mutates listing pricing state.
type ListingsRepo interface {
	// Active returns all ACTIVE listings with their pricing parameters.
	Active(ctx context.Context) ([]domain.Listing, error)

	// UpdateCurrentPrice writes the freshly computed price. Critical path
	// for a listing's update cycle.
	UpdateCurrentPrice(ctx context.Context, listingID string, price float64, computedAt time.Time) error

	// CountActiveInCategory counts ACTIVE competitors in a category,
	// excluding the listing itself.
	CountActiveInCategory(ctx context.Context, categoryID, excludeListingID string) (int, error)
}

// SignalsRepo reads persisted demand signals for the fallback score.
type SignalsRepo interface {
	// Recent returns signals for a listing newer than the cutoff,
	// oldest first.
	Recent(ctx context.Context, listingID string, since time.Time) ([]SignalRow, error)
}

// QualityRepo reads provider telemetry rollups.
type QualityRepo interface {
	// Latest returns the newest rollup for a listing; ok=false when the
	// listing has none yet.
	Latest(ctx context.Context, listingID string) (QualityRollupRow, bool, error)
}

// TransactionsRepo reads call volume for utilization.
type TransactionsRepo interface {
	// CallsSince counts completed calls for a listing after the cutoff.
	CallsSince(ctx context.Context, listingID string, since time.Time) (int, error)
}

// SnapshotsRepo persists price computation snapshots. Inserts are
// idempotent per (listing_id, computed_at).
type SnapshotsRepo interface {
	Insert(ctx context.Context, snap domain.PriceSnapshot) error
}

// ResultsRepo persists full auction results with inputs and multipliers.
type ResultsRepo interface {
	Insert(ctx context.Context, result domain.AuctionResult) error
}

// Repos bundles every repository the updater needs.
type Repos struct {
	Listings     ListingsRepo
	Signals      SignalsRepo
	Quality      QualityRepo
	Transactions TransactionsRepo
	Snapshots    SnapshotsRepo
	Results      ResultsRepo
}
