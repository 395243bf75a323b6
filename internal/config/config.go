// Package config loads the pricer configuration: a phase preset as the
// base, an optional YAML file layered on top, then environment
// overrides. Malformed configuration refuses startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexusx/pricer/internal/auction"
	"github.com/nexusx/pricer/internal/infrastructure/db"
)

// Phase names select preset profiles.
const (
	PhaseLaunch = "launch"
	PhaseGrowth = "growth"
	PhaseScale  = "scale"
)

// RedisConfig locates the broker used for ticks and history.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// HTTPConfig configures the observability/tooling server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WorkerConfig tunes the price updater loop.
type WorkerConfig struct {
	UpdateIntervalMs         int `yaml:"update_interval_ms"`
	DemandWindowMs           int `yaml:"demand_window_ms"`
	MaxConcurrentFetch       int `yaml:"max_concurrent_fetch"`
	MaxConsecutiveDBFailures int `yaml:"max_consecutive_db_failures"`
}

// Config is the full pricer configuration.
type Config struct {
	Phase  string         `yaml:"phase"`
	Worker WorkerConfig   `yaml:"worker"`
	Engine auction.Config `yaml:"engine"`
	DB     db.Config      `yaml:"db"`
	Redis  RedisConfig    `yaml:"redis"`
	HTTP   HTTPConfig     `yaml:"http"`
}

// Preset returns the profile for a phase name. Growth is the default
// and the only profile with contractually fixed numbers.
func Preset(phase string) (Config, error) {
	base := Config{
		Phase: phase,
		Worker: WorkerConfig{
			MaxConcurrentFetch:       8,
			MaxConsecutiveDBFailures: 5,
		},
		DB:    db.DefaultConfig(),
		Redis: RedisConfig{Addr: "localhost:6379"},
		HTTP:  HTTPConfig{Addr: ":8093"},
	}

	switch phase {
	case PhaseLaunch:
		base.Worker.UpdateIntervalMs = 30_000
		base.Worker.DemandWindowMs = 600_000
		base.Engine = auction.Config{
			MaxDemandMultiplier:   2.0,
			MaxScarcityMultiplier: 1.5,
			MaxQualityMultiplier:  1.3,
			MaxMomentumMultiplier: 1.15,
			SmoothingFactor:       0.2,
			MaxPriceChangePercent: 10,
			PlatformFeeRate:       0.12,
		}
	case PhaseGrowth, "":
		base.Phase = PhaseGrowth
		base.Worker.UpdateIntervalMs = 10_000
		base.Worker.DemandWindowMs = 300_000
		base.Engine = auction.DefaultConfig()
	case PhaseScale:
		base.Worker.UpdateIntervalMs = 5_000
		base.Worker.DemandWindowMs = 180_000
		base.Engine = auction.Config{
			MaxDemandMultiplier:   4.0,
			MaxScarcityMultiplier: 2.5,
			MaxQualityMultiplier:  1.6,
			MaxMomentumMultiplier: 1.4,
			SmoothingFactor:       0.4,
			MaxPriceChangePercent: 20,
			PlatformFeeRate:       0.12,
		}
	default:
		return Config{}, fmt.Errorf("unknown pricing phase: %q", phase)
	}
	return base, nil
}

// Load assembles the effective config: preset, then file, then env.
// The phase env var is read first since it selects the preset itself.
func Load(path string) (Config, error) {
	phase := os.Getenv("PRICING_PHASE")
	cfg, err := Preset(phase)
	if err != nil {
		return Config{}, err
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
		// The file may itself change the phase; re-derive and re-apply so
		// the file still wins over the new preset.
		if cfg.Phase != phase {
			rebased, err := Preset(cfg.Phase)
			if err != nil {
				return Config{}, err
			}
			if err := yaml.Unmarshal(raw, &rebased); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file: %w", err)
			}
			cfg = rebased
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.DB.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
}

// Validate enforces startup-time invariants.
func (c Config) Validate() error {
	if c.Worker.UpdateIntervalMs <= 0 {
		return fmt.Errorf("update_interval_ms must be > 0, got %d", c.Worker.UpdateIntervalMs)
	}
	if c.Worker.DemandWindowMs <= 0 {
		return fmt.Errorf("demand_window_ms must be > 0, got %d", c.Worker.DemandWindowMs)
	}
	if c.Worker.MaxConcurrentFetch <= 0 {
		return fmt.Errorf("max_concurrent_fetch must be > 0, got %d", c.Worker.MaxConcurrentFetch)
	}
	if c.Worker.MaxConsecutiveDBFailures <= 0 {
		return fmt.Errorf("max_consecutive_db_failures must be > 0, got %d", c.Worker.MaxConsecutiveDBFailures)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	return nil
}

// UpdateInterval is the worker cycle period.
func (c Config) UpdateInterval() time.Duration {
	return time.Duration(c.Worker.UpdateIntervalMs) * time.Millisecond
}

// DemandWindow is the signal window length.
func (c Config) DemandWindow() time.Duration {
	return time.Duration(c.Worker.DemandWindowMs) * time.Millisecond
}
