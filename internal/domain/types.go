package domain

import "time"

// ListingStatus enumerates listing lifecycle states. Only ACTIVE listings
// are priced by the updater.
type ListingStatus string

const (
	ListingActive     ListingStatus = "ACTIVE"
	ListingDraft      ListingStatus = "DRAFT"
	ListingPaused     ListingStatus = "PAUSED"
	ListingDeprecated ListingStatus = "DEPRECATED"
)

// Listing carries the pricing-relevant slice of a marketplace listing.
// CeilingPriceUSDC of zero means no ceiling is set.
type Listing struct {
	ID                string        `json:"listingId" db:"listing_id"`
	Slug              string        `json:"slug" db:"slug"`
	Name              string        `json:"name" db:"name"`
	CategoryID        string        `json:"categoryId" db:"category_id"`
	FloorPriceUSDC    float64       `json:"floorPriceUsdc" db:"floor_price_usdc"`
	CeilingPriceUSDC  float64       `json:"ceilingPriceUsdc" db:"ceiling_price_usdc"`
	CurrentPriceUSDC  float64       `json:"currentPriceUsdc" db:"current_price_usdc"`
	CapacityPerMinute int           `json:"capacityPerMinute" db:"capacity_per_minute"`
	Status            ListingStatus `json:"status" db:"status"`
}

// RawProviderMetrics is the unscored telemetry rollup for one provider.
type RawProviderMetrics struct {
	UptimeMinutes   float64 `json:"uptimeMinutes"`
	TotalMinutes    float64 `json:"totalMinutes"`
	SuccessCount    int64   `json:"successCount"`
	FailureCount    int64   `json:"failureCount"`
	MedianLatencyMs float64 `json:"medianLatencyMs"`
	P99LatencyMs    float64 `json:"p99LatencyMs"`
	AverageRating   float64 `json:"averageRating"`
	RatingCount     int64   `json:"ratingCount"`
}

// QualityMetrics is the scored quality profile fed into the engine.
type QualityMetrics struct {
	UptimePercent    float64 `json:"uptimePercent"`
	MedianLatencyMs  float64 `json:"medianLatencyMs"`
	P99LatencyMs     float64 `json:"p99LatencyMs"`
	ErrorRatePercent float64 `json:"errorRatePercent"`
	AverageRating    float64 `json:"averageRating"`
	RatingCount      int64   `json:"ratingCount"`
	CompositeScore   float64 `json:"compositeScore"`
}

// DefaultQualityMetrics is used when a listing has no quality rollup yet.
// A missing rollup never blocks pricing.
func DefaultQualityMetrics() QualityMetrics {
	return QualityMetrics{
		UptimePercent:    99.9,
		MedianLatencyMs:  100,
		P99LatencyMs:     500,
		ErrorRatePercent: 0.5,
		AverageRating:    4.0,
		RatingCount:      0,
		CompositeScore:   70,
	}
}

// SupplyState describes scarcity context for a listing's category.
type SupplyState struct {
	CategoryID         string  `json:"categoryId"`
	CompetitorCount    int     `json:"competitorCount"`
	IsUnique           bool    `json:"isUnique"`
	CapacityPerMinute  int     `json:"capacityPerMinute"`
	UtilizationPercent float64 `json:"utilizationPercent"`
}

// PriceMultipliers is the full multiplier breakdown of one computation.
// Combined is the product of the other five.
type PriceMultipliers struct {
	Demand   float64 `json:"demand"`
	Scarcity float64 `json:"scarcity"`
	Quality  float64 `json:"quality"`
	Momentum float64 `json:"momentum"`
	Temporal float64 `json:"temporal"`
	Combined float64 `json:"combined"`
}

// PriceInputs captures everything the engine saw for one computation.
type PriceInputs struct {
	Demand        DemandState    `json:"demand"`
	Quality       QualityMetrics `json:"quality"`
	Supply        SupplyState    `json:"supply"`
	PreviousPrice float64        `json:"previousPrice"`
	CeilingPrice  float64        `json:"ceilingPrice"`
}

// AuctionResult is one priced listing. Price is quantized to 6 decimal
// places and never below FloorPrice.
type AuctionResult struct {
	ListingID     string           `json:"listingId"`
	Price         float64          `json:"price"`
	FloorPrice    float64          `json:"floorPrice"`
	Multipliers   PriceMultipliers `json:"multipliers"`
	Inputs        PriceInputs      `json:"inputs"`
	ComputedAt    time.Time        `json:"computedAt"`
	ComputeTimeUs int64            `json:"computeTimeUs"`
}

// PriceSnapshot is the durable record of one computation.
type PriceSnapshot struct {
	ListingID        string           `json:"listingId" db:"listing_id"`
	FloorPrice       float64          `json:"floorPrice" db:"floor_price"`
	CeilingPrice     float64          `json:"ceilingPrice" db:"ceiling_price"`
	CurrentPrice     float64          `json:"currentPrice" db:"current_price"`
	PreviousPrice    float64          `json:"previousPrice" db:"previous_price"`
	PriceChangePct   float64          `json:"priceChangePct" db:"price_change_pct"`
	Multipliers      PriceMultipliers `json:"multipliers"`
	WindowsAtFloor   int              `json:"windowsAtFloor" db:"windows_at_floor"`
	WindowsAtCeiling int              `json:"windowsAtCeiling" db:"windows_at_ceiling"`
	ComputedAt       time.Time        `json:"computedAt" db:"computed_at"`
}

// TickDirection is the movement direction carried on a price tick.
type TickDirection string

const (
	TickUp   TickDirection = "up"
	TickDown TickDirection = "down"
	TickFlat TickDirection = "flat"
)

// PriceTick is the wire message published on the prices channel when a
// listing's computed price differs from its stored price. Field names are
// frozen; existing frontends decode this shape.
type PriceTick struct {
	Slug           string           `json:"slug"`
	Name           string           `json:"name"`
	ListingID      string           `json:"listingId"`
	CurrentPrice   float64          `json:"currentPrice"`
	PreviousPrice  float64          `json:"previousPrice"`
	ChangePercent  float64          `json:"changePercent"`
	Direction      TickDirection    `json:"direction"`
	Timestamp      int64            `json:"timestamp"`
	Multipliers    PriceMultipliers `json:"multipliers"`
	DemandScore    float64          `json:"demandScore"`
	DemandVelocity float64          `json:"demandVelocity"`
}

// TransactionSplit is the fee breakdown for a single priced call.
// ProviderReceives + PlatformFee equals BuyerPays at 6 decimals.
type TransactionSplit struct {
	BuyerPays        float64 `json:"buyerPays"`
	ProviderReceives float64 `json:"providerReceives"`
	PlatformFee      float64 `json:"platformFee"`
	FeeRate          float64 `json:"feeRate"`
}
