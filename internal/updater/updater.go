// Package updater runs the periodic pricing cycle: load ACTIVE listings,
// assemble engine inputs with a bounded fan-out, price the batch, then
// publish and persist the deltas. The cycle is single-flight: a tick
// that fires mid-cycle is coalesced, never queued.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/nexusx/pricer/internal/auction"
	"github.com/nexusx/pricer/internal/demand"
	"github.com/nexusx/pricer/internal/domain"
	"github.com/nexusx/pricer/internal/history"
	"github.com/nexusx/pricer/internal/metrics"
	"github.com/nexusx/pricer/internal/persistence"
	"github.com/nexusx/pricer/internal/stream"
)

// utilizationWindow is the lookback for call-volume utilization.
const utilizationWindow = 60 * time.Second

// HistoryStore is the slice of the history package the updater writes.
type HistoryStore interface {
	Append(ctx context.Context, slug string, entry history.Entry) error
	Trim(ctx context.Context, slug string, now time.Time) error
}

var _ HistoryStore = (*history.Store)(nil)

// Config tunes the worker loop.
type Config struct {
	// UpdateInterval is the cycle period and also the per-cycle deadline.
	UpdateInterval time.Duration

	// DemandWindow bounds the fallback signal aggregation.
	DemandWindow time.Duration

	// MaxConcurrentFetch bounds the per-listing input fan-out.
	MaxConcurrentFetch int

	// MaxConsecutiveDBFailures is how many listing-load failures in a row
	// the worker tolerates before surfacing a fatal error to its host.
	MaxConsecutiveDBFailures int
}

// CycleStats summarizes the most recent completed cycle for the health
// endpoint.
type CycleStats struct {
	CycleID        string        `json:"cycleId"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
	ListingsPriced int           `json:"listingsPriced"`
	TicksPublished int           `json:"ticksPublished"`
	Errors         int           `json:"errors"`
}

// Updater owns the cycle loop. It holds no domain state beyond the
// per-listing boundary streaks; everything it prices comes from its
// collaborators and everything it writes goes to the external store.
type Updater struct {
	cfg     Config
	engine  *auction.Engine
	tracker *demand.Tracker
	repos   persistence.Repos
	bus     stream.Bus
	history HistoryStore
	metrics *metrics.Registry
	clock   domain.Clock
	weights map[domain.SignalKind]float64

	breaker    *gobreaker.CircuitBreaker
	dbFailures int

	mu        sync.Mutex
	atFloor   map[string]int
	atCeiling map[string]int
	lastCycle CycleStats
}

// New wires an updater. History may be nil to disable chart history
// (dry runs); everything else is required.
func New(cfg Config, engine *auction.Engine, tracker *demand.Tracker, repos persistence.Repos, bus stream.Bus, hist HistoryStore, reg *metrics.Registry, clock domain.Clock) *Updater {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 10 * time.Second
	}
	if cfg.DemandWindow <= 0 {
		cfg.DemandWindow = 5 * time.Minute
	}
	if cfg.MaxConcurrentFetch <= 0 {
		cfg.MaxConcurrentFetch = 16
	}
	if cfg.MaxConsecutiveDBFailures <= 0 {
		cfg.MaxConsecutiveDBFailures = 5
	}
	if clock == nil {
		clock = domain.SystemClock()
	}

	settings := gobreaker.Settings{
		Name:    "listings-load",
		Timeout: cfg.UpdateInterval * 2,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &Updater{
		cfg:       cfg,
		engine:    engine,
		tracker:   tracker,
		repos:     repos,
		bus:       bus,
		history:   hist,
		metrics:   reg,
		clock:     clock,
		weights:   domain.DefaultSignalWeights(),
		breaker:   gobreaker.NewCircuitBreaker(settings),
		atFloor:   make(map[string]int),
		atCeiling: make(map[string]int),
	}
}

// Run drives the cycle loop until ctx is cancelled or the database stays
// down past the configured tolerance. The first cycle runs immediately.
// Returns nil on clean shutdown; a non-nil error means the host
// supervisor should treat the worker as dead.
func (u *Updater) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.cfg.UpdateInterval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", u.cfg.UpdateInterval).
		Int("max_concurrent_fetch", u.cfg.MaxConcurrentFetch).
		Msg("Price updater started")

	for {
		if err := u.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("Price updater stopping")
			return err
		}

		// A cycle that overran its interval leaves a stale tick queued;
		// drain it before waiting so the missed tick is coalesced instead
		// of starting the next cycle immediately.
		select {
		case <-ticker.C:
			log.Warn().Msg("Cycle overran the update interval, coalescing tick")
			u.metrics.CycleOverruns.Inc()
		default:
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Price updater stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle executes exactly one pricing cycle. Exposed for the host's
// run-once mode and for tests; Run calls it on every tick.
func (u *Updater) RunCycle(ctx context.Context) error {
	started := u.clock.Now()
	wallStart := time.Now()
	cycleID := newCycleID()

	// A cycle must never exceed one interval.
	cctx, cancel := context.WithTimeout(ctx, u.cfg.UpdateInterval)
	defer cancel()

	listings, err := u.loadListings(cctx)
	if err != nil {
		u.dbFailures++
		log.Error().Err(err).Str("cycle_id", cycleID).
			Int("consecutive_failures", u.dbFailures).
			Msg("Failed to load active listings, skipping cycle")
		if u.dbFailures >= u.cfg.MaxConsecutiveDBFailures {
			return fmt.Errorf("database unavailable for %d consecutive cycles: %w", u.dbFailures, err)
		}
		return nil
	}
	u.dbFailures = 0

	if len(listings) == 0 {
		u.finishCycle(cycleID, started, wallStart, 0, 0, 0)
		return nil
	}

	inputs := u.gatherInputs(cctx, listings)
	results := u.engine.ComputeBatch(inputs)

	published, errCount := 0, 0
	for i, result := range results {
		p, e := u.applyResult(cctx, listings[i], result)
		published += p
		errCount += e
	}

	u.publishTrackerStats()
	u.finishCycle(cycleID, started, wallStart, len(listings), published, errCount)
	return nil
}

// LastCycle reports the most recent completed cycle's stats.
func (u *Updater) LastCycle() CycleStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastCycle
}

// BreakerState reports the listing-load breaker state for health checks.
func (u *Updater) BreakerState() string { return u.breaker.State().String() }

func (u *Updater) loadListings(ctx context.Context) ([]domain.Listing, error) {
	out, err := u.breaker.Execute(func() (interface{}, error) {
		return u.repos.Listings.Active(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]domain.Listing), nil
}

func (u *Updater) finishCycle(cycleID string, started time.Time, wallStart time.Time, priced, published, errCount int) {
	duration := time.Since(wallStart)
	u.metrics.CycleDuration.Observe(duration.Seconds())
	u.metrics.CyclesTotal.Inc()
	u.metrics.ListingsPriced.Add(float64(priced))

	u.mu.Lock()
	u.lastCycle = CycleStats{
		CycleID:        cycleID,
		StartedAt:      started,
		Duration:       duration,
		ListingsPriced: priced,
		TicksPublished: published,
		Errors:         errCount,
	}
	atFloor, atCeiling := 0, 0
	for _, n := range u.atFloor {
		if n > 0 {
			atFloor++
		}
	}
	for _, n := range u.atCeiling {
		if n > 0 {
			atCeiling++
		}
	}
	u.mu.Unlock()

	u.metrics.ListingsAtFloor.Set(float64(atFloor))
	u.metrics.ListingsAtCeiling.Set(float64(atCeiling))

	log.Info().
		Str("cycle_id", cycleID).
		Int("listings", priced).
		Int("ticks", published).
		Int("errors", errCount).
		Dur("duration", duration).
		Msg("Pricing cycle completed")
}

func (u *Updater) publishTrackerStats() {
	stats := u.tracker.GetStats()
	u.metrics.TrackedListings.Set(float64(stats.TrackedListings))
	u.metrics.WindowBuyerCount.Set(float64(stats.TotalUniqueBuyers))
}
