// Package auction implements the deterministic pricing engine: five
// bounded multipliers composed over a provider floor, smoothed and
// rate-limited against the previous price. The engine is stateless per
// call and safe for concurrent use.
package auction

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nexusx/pricer/internal/domain"
)

// PriceInput is one listing's worth of engine input. PreviousPrice and
// CeilingPrice of zero mean absent.
type PriceInput struct {
	ListingID     string
	FloorPrice    float64
	CeilingPrice  float64
	Demand        domain.DemandState
	Quality       domain.QualityMetrics
	Supply        domain.SupplyState
	PreviousPrice float64
}

// Engine computes auction prices. Config is copy-on-update: in-flight
// calls observe either the old or the new value, never a mix.
type Engine struct {
	cfg   atomic.Pointer[Config]
	clock domain.Clock
}

// NewEngine builds an engine with the given config and clock. A nil
// clock falls back to the system clock.
func NewEngine(cfg Config, clock domain.Clock) *Engine {
	if clock == nil {
		clock = domain.SystemClock()
	}
	e := &Engine{clock: clock}
	e.cfg.Store(&cfg)
	return e
}

// Config returns the current config snapshot.
func (e *Engine) Config() Config { return *e.cfg.Load() }

// UpdateConfig atomically replaces the engine config.
func (e *Engine) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg.Store(&cfg)
	log.Info().
		Float64("max_demand", cfg.MaxDemandMultiplier).
		Float64("smoothing", cfg.SmoothingFactor).
		Float64("max_change_pct", cfg.MaxPriceChangePercent).
		Msg("Pricing engine config replaced")
	return nil
}

// ComputePrice runs the normative step order: multipliers, composition,
// smoothing, rate limit, floor, ceiling, quantization. The floor is
// sacred; nothing downstream of step 6 may undercut it.
func (e *Engine) ComputePrice(in PriceInput) domain.AuctionResult {
	started := time.Now()
	cfg := *e.cfg.Load()
	now := e.clock.Now()

	floor := in.FloorPrice
	if floor <= 0 {
		// Provider misconfiguration: price still, but from a token floor.
		log.Warn().Str("listing_id", in.ListingID).Float64("floor", in.FloorPrice).
			Msg("Non-positive floor price, substituting minimum")
		floor = 0.000001
	}

	m := domain.PriceMultipliers{
		Demand:   demandMultiplier(in.Demand.Score, cfg.MaxDemandMultiplier),
		Scarcity: scarcityMultiplier(in.Supply, cfg.MaxScarcityMultiplier),
		Quality:  qualityMultiplier(in.Quality, cfg.MaxQualityMultiplier),
		Momentum: momentumMultiplier(in.Demand.Velocity, cfg.MaxMomentumMultiplier),
		Temporal: temporalMultiplier(now),
	}
	m.Combined = m.Demand * m.Scarcity * m.Quality * m.Momentum * m.Temporal

	raw := floor * m.Combined

	if in.PreviousPrice > 0 {
		// Smoothing: convex blend toward the fresh price.
		raw = in.PreviousPrice + (raw-in.PreviousPrice)*cfg.SmoothingFactor

		// Rate limit: symmetric per-cycle cap, applied after smoothing.
		maxDelta := in.PreviousPrice * cfg.MaxPriceChangePercent / 100
		if raw > in.PreviousPrice+maxDelta {
			raw = in.PreviousPrice + maxDelta
		} else if raw < in.PreviousPrice-maxDelta {
			raw = in.PreviousPrice - maxDelta
		}
	}

	if raw < floor {
		raw = floor
	}
	if in.CeilingPrice > 0 {
		if in.CeilingPrice < floor {
			log.Warn().Str("listing_id", in.ListingID).
				Float64("floor", floor).Float64("ceiling", in.CeilingPrice).
				Msg("Ceiling below floor, floor wins")
		} else if raw > in.CeilingPrice {
			raw = in.CeilingPrice
		}
	}

	return domain.AuctionResult{
		ListingID:   in.ListingID,
		Price:       domain.Round6(raw),
		FloorPrice:  in.FloorPrice,
		Multipliers: m,
		Inputs: domain.PriceInputs{
			Demand:        in.Demand,
			Quality:       in.Quality,
			Supply:        in.Supply,
			PreviousPrice: in.PreviousPrice,
			CeilingPrice:  in.CeilingPrice,
		},
		ComputedAt:    now,
		ComputeTimeUs: time.Since(started).Microseconds(),
	}
}

// ComputeBatch prices a slice of inputs, order preserved.
func (e *Engine) ComputeBatch(inputs []PriceInput) []domain.AuctionResult {
	results := make([]domain.AuctionResult, len(inputs))
	for i, in := range inputs {
		results[i] = e.ComputePrice(in)
	}
	return results
}

// ComputeTransactionSplit divides a per-call price between provider and
// platform. The two sides always re-sum to the price at 6 decimals: the
// fee is quantized first and the provider share is the exact remainder.
func (e *Engine) ComputeTransactionSplit(price float64) domain.TransactionSplit {
	cfg := *e.cfg.Load()
	p := decimal.NewFromFloat(price).Round(6)
	fee := p.Mul(decimal.NewFromFloat(cfg.PlatformFeeRate)).Round(6)
	provider := p.Sub(fee)

	buyerPays, _ := p.Float64()
	platformFee, _ := fee.Float64()
	providerReceives, _ := provider.Float64()
	return domain.TransactionSplit{
		BuyerPays:        buyerPays,
		ProviderReceives: providerReceives,
		PlatformFee:      platformFee,
		FeeRate:          cfg.PlatformFeeRate,
	}
}

// SimulatePrice answers provider "what-if" questions from scalar inputs,
// with no previous price and no ceiling.
func (e *Engine) SimulatePrice(floor, demandScore float64, competitorCount int, qualityScore float64) (float64, domain.PriceMultipliers) {
	result := e.ComputePrice(PriceInput{
		ListingID:  "simulation",
		FloorPrice: floor,
		Demand: domain.DemandState{
			Score: clampF(demandScore, 0, 100),
		},
		Quality: domain.QualityMetrics{
			CompositeScore: clampF(qualityScore, 0, 100),
			AverageRating:  3.5,
		},
		Supply: domain.SupplyState{
			CompetitorCount: competitorCount,
			IsUnique:        competitorCount == 0,
		},
	})
	return result.Price, result.Multipliers
}
