// Package demand converts a stream of marketplace signals into a
// normalized per-listing demand score and velocity. Windows rotate on
// the tracker's own clock; signal timestamps never demarcate windows.
package demand

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nexusx/pricer/internal/domain"
)

// historyDepth is the number of closed windows retained per listing.
const historyDepth = 12

// Stats summarizes tracker state across all listings.
type Stats struct {
	TrackedListings             int `json:"trackedListings"`
	TotalSignalsInCurrentWindow int `json:"totalSignalsInCurrentWindows"`
	TotalUniqueBuyers           int `json:"totalUniqueBuyers"`
}

type listingTracker struct {
	mu        sync.Mutex
	listingID string
	current   *signalWindow
	history   []*signalWindow
	lastState *domain.DemandState
}

// Tracker owns all per-listing windows. Safe for concurrent ingest and
// compute: the map lock is held only for lookup, mutation serializes on
// the listing.
type Tracker struct {
	mu        sync.RWMutex
	trackers  map[string]*listingTracker
	weights   map[domain.SignalKind]float64
	windowLen time.Duration
	clock     domain.Clock

	pmu        sync.RWMutex
	thresholds Percentiles
}

// Config tunes a Tracker.
type Config struct {
	WindowLen       time.Duration
	WeightOverrides map[domain.SignalKind]float64
	Clock           domain.Clock
}

// NewTracker builds an empty tracker with bootstrap percentiles.
func NewTracker(cfg Config) *Tracker {
	if cfg.WindowLen <= 0 {
		cfg.WindowLen = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock()
	}
	return &Tracker{
		trackers:   make(map[string]*listingTracker),
		weights:    domain.MergeSignalWeights(cfg.WeightOverrides),
		windowLen:  cfg.WindowLen,
		clock:      cfg.Clock,
		thresholds: BootstrapPercentiles(),
	}
}

// IngestSignal adds one signal to the listing's current window. Never
// fails: unknown kinds and negative per-instance weights contribute
// zero. This is the hot path; it takes two uncontended locks and does
// no allocation beyond first sight of a listing or buyer.
func (t *Tracker) IngestSignal(sig domain.DemandSignal) {
	if sig.ListingID == "" {
		return
	}
	lt := t.trackerFor(sig.ListingID)

	kindWeight := t.weights[sig.Type] // zero for unknown kinds
	instanceWeight := sig.Weight
	if instanceWeight < 0 {
		instanceWeight = 0
	}

	lt.mu.Lock()
	t.rotateLocked(lt)
	lt.current.weightedSum += kindWeight * instanceWeight
	lt.current.rawCount++
	lt.current.buyers.add(sig.BuyerID)
	lt.mu.Unlock()
}

// IngestBatch ingests signals in order; equivalent to sequential
// IngestSignal calls.
func (t *Tracker) IngestBatch(signals []domain.DemandSignal) {
	for _, sig := range signals {
		t.IngestSignal(sig)
	}
}

// ComputeDemandState rotates if needed, scores the current window and
// fits velocity over closed windows. Unknown listings get an empty
// tracker and a zero state.
func (t *Tracker) ComputeDemandState(listingID string) domain.DemandState {
	lt := t.trackerFor(listingID)
	thresholds := t.percentiles()

	lt.mu.Lock()
	defer lt.mu.Unlock()
	t.rotateLocked(lt)

	state := domain.DemandState{
		ListingID:    listingID,
		Score:        normalizeScore(lt.current.weightedSum, thresholds),
		RawSignalSum: lt.current.weightedSum,
		UniqueBuyers: lt.current.buyers.size(),
		Velocity:     velocityFromHistory(lt.history, thresholds),
		ComputedAt:   t.clock.Now(),
		WindowMs:     t.windowLen.Milliseconds(),
	}
	lt.lastState = &state
	return state
}

// ComputeAllDemandStates scores every tracked listing.
func (t *Tracker) ComputeAllDemandStates() []domain.DemandState {
	t.mu.RLock()
	ids := make([]string, 0, len(t.trackers))
	for id := range t.trackers {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	states := make([]domain.DemandState, 0, len(ids))
	for _, id := range ids {
		states = append(states, t.ComputeDemandState(id))
	}
	return states
}

// LastState returns the most recently computed state without rotating.
func (t *Tracker) LastState(listingID string) (domain.DemandState, bool) {
	t.mu.RLock()
	lt, ok := t.trackers[listingID]
	t.mu.RUnlock()
	if !ok {
		return domain.DemandState{}, false
	}
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.lastState == nil {
		return domain.DemandState{}, false
	}
	return *lt.lastState, true
}

// UpdatePercentiles merges estimator-supplied thresholds; the next score
// computation uses them.
func (t *Tracker) UpdatePercentiles(update PercentileUpdate) {
	t.pmu.Lock()
	defer t.pmu.Unlock()
	if update.P10 != nil {
		t.thresholds.P10 = *update.P10
	}
	if update.P50 != nil {
		t.thresholds.P50 = *update.P50
	}
	if update.P90 != nil {
		t.thresholds.P90 = *update.P90
	}
	if update.P99 != nil {
		t.thresholds.P99 = *update.P99
	}
	log.Debug().
		Float64("p10", t.thresholds.P10).
		Float64("p50", t.thresholds.P50).
		Float64("p90", t.thresholds.P90).
		Float64("p99", t.thresholds.P99).
		Msg("Demand percentiles updated")
}

// RemoveListing drops all state for a delisted listing.
func (t *Tracker) RemoveListing(listingID string) {
	t.mu.Lock()
	delete(t.trackers, listingID)
	t.mu.Unlock()
}

// GetStats reports aggregate tracker state.
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	stats := Stats{TrackedListings: len(t.trackers)}
	for _, lt := range t.trackers {
		lt.mu.Lock()
		stats.TotalSignalsInCurrentWindow += lt.current.rawCount
		stats.TotalUniqueBuyers += lt.current.buyers.size()
		lt.mu.Unlock()
	}
	return stats
}

func (t *Tracker) percentiles() Percentiles {
	t.pmu.RLock()
	defer t.pmu.RUnlock()
	return t.thresholds
}

func (t *Tracker) trackerFor(listingID string) *listingTracker {
	t.mu.RLock()
	lt, ok := t.trackers[listingID]
	t.mu.RUnlock()
	if ok {
		return lt
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if lt, ok = t.trackers[listingID]; ok {
		return lt
	}
	lt = &listingTracker{
		listingID: listingID,
		current:   newSignalWindow(t.clock.Now()),
	}
	t.trackers[listingID] = lt
	return lt
}

// rotateLocked closes an expired current window and opens a fresh one.
// Late signals land in the new window regardless of their own timestamp.
// Caller holds lt.mu.
func (t *Tracker) rotateLocked(lt *listingTracker) {
	now := t.clock.Now()
	if now.Sub(lt.current.openedAt) < t.windowLen {
		return
	}
	lt.current.closedAt = now
	lt.history = append(lt.history, lt.current)
	if len(lt.history) > historyDepth {
		lt.history = lt.history[len(lt.history)-historyDepth:]
	}
	lt.current = newSignalWindow(now)
}
