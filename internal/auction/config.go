package auction

import "fmt"

// Config bounds the engine's multipliers and damping. It is held behind
// an atomic pointer; UpdateConfig swaps the whole value so in-flight
// computations never observe a torn mix.
type Config struct {
	MaxDemandMultiplier   float64 `yaml:"max_demand_multiplier" json:"maxDemandMultiplier"`
	MaxScarcityMultiplier float64 `yaml:"max_scarcity_multiplier" json:"maxScarcityMultiplier"`
	MaxQualityMultiplier  float64 `yaml:"max_quality_multiplier" json:"maxQualityMultiplier"`
	MaxMomentumMultiplier float64 `yaml:"max_momentum_multiplier" json:"maxMomentumMultiplier"`
	SmoothingFactor       float64 `yaml:"smoothing_factor" json:"smoothingFactor"`
	MaxPriceChangePercent float64 `yaml:"max_price_change_percent" json:"maxPriceChangePercent"`
	PlatformFeeRate       float64 `yaml:"platform_fee_rate" json:"platformFeeRate"`
}

// DefaultConfig is the growth-phase profile.
func DefaultConfig() Config {
	return Config{
		MaxDemandMultiplier:   3.5,
		MaxScarcityMultiplier: 2.0,
		MaxQualityMultiplier:  1.5,
		MaxMomentumMultiplier: 1.3,
		SmoothingFactor:       0.3,
		MaxPriceChangePercent: 15,
		PlatformFeeRate:       0.12,
	}
}

// Validate rejects configurations the engine cannot price safely with.
func (c Config) Validate() error {
	if c.MaxDemandMultiplier < 1 {
		return fmt.Errorf("max_demand_multiplier must be >= 1, got %v", c.MaxDemandMultiplier)
	}
	if c.MaxScarcityMultiplier < 1 {
		return fmt.Errorf("max_scarcity_multiplier must be >= 1, got %v", c.MaxScarcityMultiplier)
	}
	if c.MaxQualityMultiplier < 0.7 {
		return fmt.Errorf("max_quality_multiplier must be >= 0.7, got %v", c.MaxQualityMultiplier)
	}
	if c.MaxMomentumMultiplier < 1 {
		return fmt.Errorf("max_momentum_multiplier must be >= 1, got %v", c.MaxMomentumMultiplier)
	}
	if c.SmoothingFactor < 0 || c.SmoothingFactor > 1 {
		return fmt.Errorf("smoothing_factor must be in [0,1], got %v", c.SmoothingFactor)
	}
	if c.MaxPriceChangePercent <= 0 {
		return fmt.Errorf("max_price_change_percent must be > 0, got %v", c.MaxPriceChangePercent)
	}
	if c.PlatformFeeRate < 0 || c.PlatformFeeRate >= 1 {
		return fmt.Errorf("platform_fee_rate must be in [0,1), got %v", c.PlatformFeeRate)
	}
	return nil
}
