package auction

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusx/pricer/internal/domain"
)

// frozenClock pins the temporal multiplier for deterministic assertions.
type frozenClock struct{ t time.Time }

func (c frozenClock) Now() time.Time { return c.t }

// temporalNeutral is a wall-clock instant where the temporal multiplier
// is exactly 1.0: hour 8 UTC, cos(2pi*(8-14)/24) = cos(-pi/2) = 0.
var temporalNeutral = frozenClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}

func growthEngine() *Engine {
	return NewEngine(DefaultConfig(), temporalNeutral)
}

func TestTemporalMultiplier_NeutralAtFrozenClock(t *testing.T) {
	assert.InDelta(t, 1.0, temporalMultiplier(temporalNeutral.t), 1e-12)
	assert.InDelta(t, 1.05, temporalMultiplier(time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)), 1e-12)
	assert.InDelta(t, 0.95, temporalMultiplier(time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)), 1e-12)
}

// S1: floor preserved under zero demand.
func TestComputePrice_FloorUnderZeroDemand(t *testing.T) {
	e := growthEngine()
	result := e.ComputePrice(PriceInput{
		ListingID:  "l1",
		FloorPrice: 0.01,
		Demand:     domain.DemandState{Score: 0, Velocity: 0},
		Quality:    domain.QualityMetrics{CompositeScore: 50, AverageRating: 4},
		Supply:     domain.SupplyState{CompetitorCount: 10, UtilizationPercent: 30},
	})

	assert.GreaterOrEqual(t, result.Price, 0.01)
	assert.Less(t, result.Price, 0.02)
	assert.InDelta(t, 1.0, result.Multipliers.Demand, 0.05)
}

// S2: ceiling respected with every multiplier maxed out.
func TestComputePrice_CeilingRespected(t *testing.T) {
	e := growthEngine()
	result := e.ComputePrice(PriceInput{
		ListingID:    "l1",
		FloorPrice:   0.001,
		CeilingPrice: 0.005,
		Demand:       domain.DemandState{Score: 100, Velocity: 20},
		Quality:      domain.QualityMetrics{CompositeScore: 100, AverageRating: 5},
		Supply:       domain.SupplyState{CompetitorCount: 0, IsUnique: true, UtilizationPercent: 100},
	})

	assert.LessOrEqual(t, result.Price, 0.005)
	assert.GreaterOrEqual(t, result.Price, 0.001)
}

// S3: rate limit caps the per-cycle move.
func TestComputePrice_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPriceChangePercent = 10
	e := NewEngine(cfg, temporalNeutral)

	result := e.ComputePrice(PriceInput{
		ListingID:     "l1",
		FloorPrice:    0.01,
		PreviousPrice: 0.01,
		Demand:        domain.DemandState{Score: 100, Velocity: 20},
		Quality:       domain.QualityMetrics{CompositeScore: 100, AverageRating: 5},
		Supply:        domain.SupplyState{IsUnique: true, UtilizationPercent: 100},
	})

	assert.LessOrEqual(t, result.Price, 0.011+1e-6)
	assert.GreaterOrEqual(t, result.Price, 0.009-1e-6)
}

// S4: excellence bonus bends the quality curve upward past 90.
func TestQualityMultiplier_ExcellenceBonus(t *testing.T) {
	maxQ := DefaultConfig().MaxQualityMultiplier
	q := func(score float64) float64 {
		return qualityMultiplier(domain.QualityMetrics{CompositeScore: score, AverageRating: 4}, maxQ)
	}
	assert.Greater(t, q(95)-q(85), q(85)-q(75))
}

// S7: transaction split precision at dust-level prices.
func TestComputeTransactionSplit_Precision(t *testing.T) {
	e := growthEngine()
	split := e.ComputeTransactionSplit(0.000012)

	assert.Equal(t, 0.000012, split.BuyerPays)
	assert.Equal(t, 0.000001, split.PlatformFee)
	assert.Equal(t, 0.000011, split.ProviderReceives)
	assert.Equal(t, 0.12, split.FeeRate)
	assert.Equal(t, domain.Round6(split.BuyerPays),
		domain.Round6(split.ProviderReceives+split.PlatformFee))
}

func TestComputeTransactionSplit_SumsExactly(t *testing.T) {
	e := growthEngine()
	for _, price := range []float64{0, 0.000001, 0.0042, 0.1, 1.2345675, 999.999999} {
		split := e.ComputeTransactionSplit(price)
		assert.Equal(t, domain.Round6(price),
			domain.Round6(split.ProviderReceives+split.PlatformFee), "price=%v", price)
		assert.GreaterOrEqual(t, split.PlatformFee, 0.0)
	}
}

// Property 7: identical inputs and clock give bit-identical outputs.
func TestComputePrice_Deterministic(t *testing.T) {
	e := growthEngine()
	in := PriceInput{
		ListingID:     "l1",
		FloorPrice:    0.02,
		CeilingPrice:  0.5,
		PreviousPrice: 0.03,
		Demand:        domain.DemandState{Score: 73.2, Velocity: -4.5},
		Quality:       domain.QualityMetrics{CompositeScore: 88, AverageRating: 4.6, RatingCount: 120},
		Supply:        domain.SupplyState{CompetitorCount: 2, UtilizationPercent: 85},
	}

	a := e.ComputePrice(in)
	b := e.ComputePrice(in)
	assert.Equal(t, a.Price, b.Price)
	assert.Equal(t, a.Multipliers, b.Multipliers)
}

// Property 3: combined is the exact product of the five multipliers.
func TestComputePrice_CombinedIsProduct(t *testing.T) {
	e := growthEngine()
	result := e.ComputePrice(PriceInput{
		ListingID:  "l1",
		FloorPrice: 0.05,
		Demand:     domain.DemandState{Score: 64, Velocity: 3},
		Quality:    domain.QualityMetrics{CompositeScore: 77, AverageRating: 4.1},
		Supply:     domain.SupplyState{CompetitorCount: 1, UtilizationPercent: 90},
	})

	m := result.Multipliers
	assert.InDelta(t, m.Demand*m.Scarcity*m.Quality*m.Momentum*m.Temporal, m.Combined, 1e-4)
}

// Property 6: demand multiplier monotone in score.
func TestDemandMultiplier_Monotone(t *testing.T) {
	maxD := DefaultConfig().MaxDemandMultiplier
	prev := 0.0
	for score := 0.0; score <= 100; score++ {
		m := demandMultiplier(score, maxD)
		assert.GreaterOrEqual(t, m, prev, "score=%v", score)
		assert.GreaterOrEqual(t, m, 1.0)
		assert.LessOrEqual(t, m, maxD)
		prev = m
	}
}

func TestScarcityMultiplier_CompetitorTiers(t *testing.T) {
	maxS := 2.0
	unique := scarcityMultiplier(domain.SupplyState{IsUnique: true}, maxS)
	duo := scarcityMultiplier(domain.SupplyState{CompetitorCount: 2}, maxS)
	crowd := scarcityMultiplier(domain.SupplyState{CompetitorCount: 6}, maxS)

	assert.Equal(t, 2.0, unique)
	assert.InDelta(t, 1.6, duo, 1e-9)
	assert.Equal(t, 1.0, crowd)

	// Utilization can substitute for competitor scarcity.
	hot := scarcityMultiplier(domain.SupplyState{CompetitorCount: 6, UtilizationPercent: 100}, maxS)
	assert.InDelta(t, 1.4, hot, 1e-9)
	// Utilization factor caps at 0.4 regardless of overshoot.
	over := scarcityMultiplier(domain.SupplyState{CompetitorCount: 6, UtilizationPercent: 500}, maxS)
	assert.Equal(t, hot, over)
}

func TestQualityMultiplier_RatingPenalty(t *testing.T) {
	maxQ := 1.5
	base := qualityMultiplier(domain.QualityMetrics{CompositeScore: 60, AverageRating: 2.5, RatingCount: 5}, maxQ)
	penalized := qualityMultiplier(domain.QualityMetrics{CompositeScore: 60, AverageRating: 2.5, RatingCount: 20}, maxQ)

	assert.Less(t, penalized, base)
	assert.GreaterOrEqual(t, penalized, 0.7)
}

func TestMomentumMultiplier_Symmetry(t *testing.T) {
	maxM := 1.3
	assert.Equal(t, 1.0, momentumMultiplier(0, maxM))

	up := momentumMultiplier(20, maxM)
	down := momentumMultiplier(-20, maxM)
	assert.InDelta(t, maxM, up, 1e-9)
	assert.InDelta(t, 1/maxM, down, 1e-9)

	// Saturation beyond |v| = 20.
	assert.Equal(t, up, momentumMultiplier(400, maxM))
	assert.Equal(t, down, momentumMultiplier(-400, maxM))
}

func TestComputePrice_NaNInputsNeutralized(t *testing.T) {
	e := growthEngine()
	result := e.ComputePrice(PriceInput{
		ListingID:  "l1",
		FloorPrice: 0.01,
		Demand:     domain.DemandState{Score: math.NaN(), Velocity: math.NaN()},
		Quality:    domain.QualityMetrics{CompositeScore: math.NaN(), AverageRating: math.NaN()},
		Supply:     domain.SupplyState{UtilizationPercent: math.NaN()},
	})

	require.False(t, math.IsNaN(result.Price))
	assert.GreaterOrEqual(t, result.Price, 0.01)
	assert.Equal(t, 1.0, result.Multipliers.Momentum)
}

func TestComputePrice_FloorWinsOverCeiling(t *testing.T) {
	e := growthEngine()
	result := e.ComputePrice(PriceInput{
		ListingID:    "l1",
		FloorPrice:   0.01,
		CeilingPrice: 0.005, // misconfigured: below floor
		Demand:       domain.DemandState{Score: 0},
		Quality:      domain.QualityMetrics{CompositeScore: 0, AverageRating: 4},
		Supply:       domain.SupplyState{CompetitorCount: 10},
	})
	assert.GreaterOrEqual(t, result.Price, 0.01)
}

func TestComputePrice_SmoothingPullsTowardPrevious(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmoothingFactor = 0.3
	cfg.MaxPriceChangePercent = 1000 // disarm the rate limit for this test
	e := NewEngine(cfg, temporalNeutral)

	in := PriceInput{
		ListingID:  "l1",
		FloorPrice: 0.01,
		Demand:     domain.DemandState{Score: 100},
		Quality:    domain.QualityMetrics{CompositeScore: 100, AverageRating: 5},
		Supply:     domain.SupplyState{IsUnique: true},
	}
	fresh := e.ComputePrice(in)

	in.PreviousPrice = fresh.Price
	again := e.ComputePrice(in)
	// Already at equilibrium: smoothing keeps it there.
	assert.InDelta(t, fresh.Price, again.Price, 1e-6)

	in.PreviousPrice = 0.01
	smoothed := e.ComputePrice(in)
	expected := 0.01 + (fresh.Price-0.01)*0.3
	assert.InDelta(t, expected, smoothed.Price, 1e-6)
}

func TestComputeBatch_OrderPreserved(t *testing.T) {
	e := growthEngine()
	inputs := []PriceInput{
		{ListingID: "a", FloorPrice: 0.01, Quality: domain.QualityMetrics{CompositeScore: 50, AverageRating: 4}},
		{ListingID: "b", FloorPrice: 0.02, Quality: domain.QualityMetrics{CompositeScore: 50, AverageRating: 4}},
		{ListingID: "c", FloorPrice: 0.03, Quality: domain.QualityMetrics{CompositeScore: 50, AverageRating: 4}},
	}
	results := e.ComputeBatch(inputs)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, inputs[i].ListingID, r.ListingID)
		assert.GreaterOrEqual(t, r.Price, inputs[i].FloorPrice)
	}
}

func TestUpdateConfig_RejectsInvalid(t *testing.T) {
	e := growthEngine()
	bad := DefaultConfig()
	bad.SmoothingFactor = 1.5
	assert.Error(t, e.UpdateConfig(bad))
	assert.Equal(t, DefaultConfig(), e.Config())

	good := DefaultConfig()
	good.MaxDemandMultiplier = 2.0
	require.NoError(t, e.UpdateConfig(good))
	assert.Equal(t, 2.0, e.Config().MaxDemandMultiplier)
}

func TestSimulatePrice(t *testing.T) {
	e := growthEngine()
	price, m := e.SimulatePrice(0.01, 80, 0, 90)
	assert.GreaterOrEqual(t, price, 0.01)
	assert.Greater(t, m.Demand, 1.0)
	assert.Equal(t, 2.0, m.Scarcity) // unique listing at max scarcity
}

func TestComputePrice_SubHundredMicroseconds(t *testing.T) {
	e := growthEngine()
	in := PriceInput{
		ListingID:  "l1",
		FloorPrice: 0.01,
		Demand:     domain.DemandState{Score: 70, Velocity: 5},
		Quality:    domain.QualityMetrics{CompositeScore: 80, AverageRating: 4.5},
		Supply:     domain.SupplyState{CompetitorCount: 3, UtilizationPercent: 60},
	}
	// Warm up, then check the reported compute time stays reasonable.
	var worst int64
	for i := 0; i < 1000; i++ {
		if r := e.ComputePrice(in); r.ComputeTimeUs > worst {
			worst = r.ComputeTimeUs
		}
	}
	assert.Less(t, worst, int64(5000), "compute time should be far below 5ms")
}
