package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round6 quantizes a USDC amount to 6 decimal places, half away from
// zero. All persisted and published prices pass through this.
func Round6(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(6).Float64()
	return f
}

// Round4 quantizes a multiplier to 4 decimal places.
func Round4(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return f
}

// Round2 quantizes a percentage to 2 decimal places.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
