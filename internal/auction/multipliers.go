package auction

import (
	"math"
	"time"

	"github.com/nexusx/pricer/internal/domain"
)

// demandSigmoidK sets the steepness of the demand curve around the
// midpoint score of 50.
const demandSigmoidK = 0.08

// demandMultiplier maps a [0,100] demand score onto [1, maxDemand] via a
// sigmoid centered at 50, rounded to 4 decimals.
func demandMultiplier(score, maxDemand float64) float64 {
	s := 1 / (1 + math.Exp(-demandSigmoidK*(score-50)))
	m := 1 + (maxDemand-1)*s
	return domain.Round4(clampF(orNeutral(m), 1, maxDemand))
}

// scarcityMultiplier lifts the price when a listing has few competitors
// or runs hot on capacity. Either condition alone is enough.
func scarcityMultiplier(supply domain.SupplyState, maxScarcity float64) float64 {
	var competitorFactor float64
	switch {
	case supply.IsUnique || supply.CompetitorCount == 0:
		competitorFactor = 1.0
	case supply.CompetitorCount <= 2:
		competitorFactor = 0.6
	case supply.CompetitorCount <= 5:
		competitorFactor = 0.25
	default:
		competitorFactor = 0
	}

	var utilizationFactor float64
	if supply.UtilizationPercent > 70 {
		utilizationFactor = math.Min(0.4, (supply.UtilizationPercent-70)/30*0.4)
	}

	scarcity := math.Min(1, math.Max(competitorFactor, utilizationFactor))
	return orNeutral(1 + (maxScarcity-1)*scarcity)
}

// qualityMultiplier runs linear from 0.7 at composite 0 to maxQuality at
// 100, with an excellence bonus above 90 and a penalty for providers
// whose rating volume confirms a sub-3.0 rating.
func qualityMultiplier(q domain.QualityMetrics, maxQuality float64) float64 {
	score := clampF(q.CompositeScore, 0, 100)
	m := 0.7 + (maxQuality-0.7)*score/100
	if score >= 90 {
		m += (score - 90) / 10 * 0.15
	}
	if q.AverageRating < 3.0 && q.RatingCount >= 20 {
		m *= 0.85
	}
	return clampF(orNeutral(m), 0.7, maxQuality+0.15)
}

// momentumMultiplier is symmetric: velocity v lifts up to maxMomentum
// and drags down to 1/maxMomentum, saturating at |v| = 20 score-points
// per window with square-root damping.
func momentumMultiplier(velocity, maxMomentum float64) float64 {
	if velocity == 0 || math.IsNaN(velocity) {
		return 1
	}
	minMomentum := 1 / maxMomentum
	mag := math.Sqrt(math.Min(math.Abs(velocity)/20, 1))
	if velocity > 0 {
		return clampF(orNeutral(1+(maxMomentum-1)*mag), 1, maxMomentum)
	}
	return clampF(orNeutral(1-(1-minMomentum)*mag), minMomentum, 1)
}

// temporalMultiplier follows global API traffic: peak at 14:00 UTC,
// trough twelve hours away, amplitude 5%.
func temporalMultiplier(now time.Time) float64 {
	utc := now.UTC()
	hour := float64(utc.Hour()) + float64(utc.Minute())/60 + float64(utc.Second())/3600
	return 1 + 0.05*math.Cos(2*math.Pi*(hour-14)/24)
}

// orNeutral replaces NaN/Inf with the neutral multiplier. The engine's
// math must be total.
func orNeutral(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
