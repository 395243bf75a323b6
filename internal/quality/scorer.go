// Package quality maps raw provider telemetry to a composite quality
// score in [0,100]. The mapping is pure: same rollup in, same score out.
package quality

import (
	"math"

	"github.com/nexusx/pricer/internal/domain"
)

// Dimension weights for the composite. Must sum to 1.0; validated by
// TestCompositeWeightsSumToOne.
const (
	weightUptime        = 0.30
	weightMedianLatency = 0.20
	weightErrorRate     = 0.20
	weightRating        = 0.20
	weightP99Latency    = 0.10
)

// Latency benchmarks in milliseconds for the median dimension. The p99
// dimension uses the same shape with benchmarks scaled x3.
const (
	latencyExcellentMs  = 50.0
	latencyGoodMs       = 200.0
	latencyAcceptableMs = 500.0
	latencyPoorMs       = 1000.0
)

// Bayesian rating prior: pull toward 3.5 stars until ~50 ratings exist.
const (
	ratingPriorMean  = 3.5
	ratingPriorCount = 50.0
)

// Score converts a raw telemetry rollup into scored QualityMetrics.
func Score(raw domain.RawProviderMetrics) domain.QualityMetrics {
	uptimePct := uptimePercent(raw.UptimeMinutes, raw.TotalMinutes)
	errorPct := errorRatePercent(raw.SuccessCount, raw.FailureCount)

	composite := weightUptime*uptimeScore(uptimePct) +
		weightMedianLatency*latencyScore(raw.MedianLatencyMs, 1.0) +
		weightErrorRate*errorRateScore(errorPct) +
		weightRating*ratingScore(raw.AverageRating, raw.RatingCount) +
		weightP99Latency*latencyScore(raw.P99LatencyMs, 3.0)

	return domain.QualityMetrics{
		UptimePercent:    uptimePct,
		MedianLatencyMs:  raw.MedianLatencyMs,
		P99LatencyMs:     raw.P99LatencyMs,
		ErrorRatePercent: errorPct,
		AverageRating:    raw.AverageRating,
		RatingCount:      raw.RatingCount,
		CompositeScore:   math.Round(clamp(composite, 0, 100)),
	}
}

func uptimePercent(uptimeMinutes, totalMinutes float64) float64 {
	if totalMinutes <= 0 {
		return 0
	}
	return clamp(100*uptimeMinutes/totalMinutes, 0, 100)
}

func errorRatePercent(success, failure int64) float64 {
	total := success + failure
	if total <= 0 {
		return 0
	}
	return clamp(100*float64(failure)/float64(total), 0, 100)
}

// uptimeScore is a stepped table: five-nines territory prices like a
// utility, anything under 95% is worthless.
func uptimeScore(pct float64) float64 {
	switch {
	case pct >= 99.99:
		return 100
	case pct >= 99.95:
		return 97
	case pct >= 99.9:
		return 95
	case pct >= 99.5:
		return 80
	case pct >= 99.0:
		return 60
	case pct >= 98.0:
		return 30
	case pct >= 95.0:
		return 10
	default:
		return 0
	}
}

// latencyScore interpolates across the benchmark ladder. scale=1 for the
// median dimension, scale=3 for p99.
func latencyScore(ms, scale float64) float64 {
	if ms < 0 {
		ms = 0
	}
	excellent := latencyExcellentMs * scale
	good := latencyGoodMs * scale
	acceptable := latencyAcceptableMs * scale
	poor := latencyPoorMs * scale

	switch {
	case ms <= excellent:
		return 100
	case ms <= good:
		return 100 - 30*(ms-excellent)/(good-excellent)
	case ms <= acceptable:
		return 70 - 30*(ms-good)/(acceptable-good)
	case ms <= poor:
		return 40 - 30*(ms-acceptable)/(poor-acceptable)
	default:
		return 0
	}
}

func errorRateScore(pct float64) float64 {
	switch {
	case pct <= 0:
		return 100
	case pct < 0.1:
		return 95
	case pct < 0.5:
		return 80
	case pct < 1:
		return 60
	case pct < 2:
		return 40
	case pct < 5:
		return 20
	default:
		return 0
	}
}

// ratingScore shrinks the observed rating toward the prior until enough
// ratings accumulate, then maps [1,5] onto [0,100].
func ratingScore(rating float64, count int64) float64 {
	if count < 0 {
		count = 0
	}
	confidence := math.Min(1, math.Sqrt(float64(count))/math.Sqrt(ratingPriorCount))
	adjusted := rating*confidence + ratingPriorMean*(1-confidence)
	return clamp((adjusted-1)/4*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
