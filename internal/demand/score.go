package demand

import "github.com/nexusx/pricer/internal/domain"

// Percentiles are the normalization thresholds for raw window sums. They
// are supplied by an external estimator; the tracker treats them as an
// opaque input. Bootstrap values cover a cold start.
type Percentiles struct {
	P10 float64 `json:"p10" yaml:"p10"`
	P50 float64 `json:"p50" yaml:"p50"`
	P90 float64 `json:"p90" yaml:"p90"`
	P99 float64 `json:"p99" yaml:"p99"`
}

// BootstrapPercentiles are the cold-start thresholds used until the
// estimator delivers real ones.
func BootstrapPercentiles() Percentiles {
	return Percentiles{P10: 5, P50: 50, P90: 200, P99: 1000}
}

// PercentileUpdate is a partial threshold update; nil fields keep their
// current value.
type PercentileUpdate struct {
	P10 *float64 `json:"p10,omitempty"`
	P50 *float64 `json:"p50,omitempty"`
	P90 *float64 `json:"p90,omitempty"`
	P99 *float64 `json:"p99,omitempty"`
}

// normalizeScore maps a raw weighted sum onto [0,100] by piecewise-linear
// interpolation across the percentile thresholds.
func normalizeScore(rawSum float64, p Percentiles) float64 {
	switch {
	case rawSum <= 0:
		return 0
	case rawSum <= p.P10:
		return segment(rawSum, 0, p.P10, 0, 10)
	case rawSum <= p.P50:
		return segment(rawSum, p.P10, p.P50, 10, 50)
	case rawSum <= p.P90:
		return segment(rawSum, p.P50, p.P90, 50, 90)
	case rawSum <= p.P99:
		return segment(rawSum, p.P90, p.P99, 90, 100)
	default:
		return 100
	}
}

func segment(v, lo, hi, outLo, outHi float64) float64 {
	if hi <= lo {
		return outHi
	}
	return outLo + (v-lo)/(hi-lo)*(outHi-outLo)
}

// velocityFromHistory fits a least-squares line over the normalized
// scores of the most recent closed windows (up to 6, oldest first) and
// returns the slope in score-points per window, rounded to 2 decimals.
func velocityFromHistory(history []*signalWindow, p Percentiles) float64 {
	n := len(history)
	if n > 6 {
		history = history[n-6:]
		n = 6
	}
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, w := range history {
		x := float64(i)
		y := normalizeScore(w.weightedSum, p)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	return domain.Round2(slope)
}
