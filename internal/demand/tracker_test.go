package demand

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusx/pricer/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTracker(clock domain.Clock) *Tracker {
	return NewTracker(Config{WindowLen: time.Minute, Clock: clock})
}

func TestIngestSignal_AccumulatesWeights(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalAPICall, Weight: 1, BuyerID: "b1"})
	tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalSubscription, Weight: 1, BuyerID: "b2"})
	tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalView, Weight: 2, BuyerID: "b1"})

	state := tr.ComputeDemandState("l1")
	assert.InDelta(t, 1.0+2.0+0.2, state.RawSignalSum, 1e-9)
	assert.Equal(t, 2, state.UniqueBuyers)
}

func TestIngestSignal_BadInputContributesZero(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalKind("MYSTERY"), Weight: 1})
	tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalAPICall, Weight: -5})

	state := tr.ComputeDemandState("l1")
	assert.Equal(t, 0.0, state.RawSignalSum)
	assert.Equal(t, 0.0, state.Score)
	// Both signals still counted as raw events.
	assert.Equal(t, 2, tr.GetStats().TotalSignalsInCurrentWindow)
}

func TestComputeDemandState_UnknownListing(t *testing.T) {
	tr := newTestTracker(newFakeClock())
	state := tr.ComputeDemandState("never-seen")
	assert.Equal(t, 0.0, state.Score)
	assert.Equal(t, 0.0, state.Velocity)
	assert.Equal(t, 1, tr.GetStats().TrackedListings)
}

func TestWindowRotation_KeepsAtMostTwelve(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	for i := 0; i < 20; i++ {
		tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalAPICall, Weight: 1})
		clock.Advance(time.Minute)
	}
	tr.ComputeDemandState("l1")

	lt := tr.trackerFor("l1")
	lt.mu.Lock()
	defer lt.mu.Unlock()
	assert.LessOrEqual(t, len(lt.history), historyDepth)
	for _, w := range lt.history {
		assert.True(t, w.closed(), "historical windows must be closed")
	}
	assert.False(t, lt.current.closed())
	// Current window opens where the last historical window closed, or later.
	last := lt.history[len(lt.history)-1]
	assert.False(t, lt.current.openedAt.Before(last.closedAt))
}

func TestNormalizeScore_Bounds(t *testing.T) {
	p := BootstrapPercentiles()
	cases := []struct {
		raw  float64
		want float64
	}{
		{-3, 0},
		{0, 0},
		{5, 10},     // exactly p10
		{50, 50},    // exactly p50
		{200, 90},   // exactly p90
		{1000, 100}, // exactly p99
		{5000, 100},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, normalizeScore(tc.raw, p), 1e-9, "raw=%v", tc.raw)
	}
	// Interior points interpolate.
	assert.InDelta(t, 10+5.0/45.0*40, normalizeScore(10, p), 1e-9)
}

func TestVelocity_RequiresTwoWindows(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalAPICall, Weight: 1})
	state := tr.ComputeDemandState("l1")
	assert.Equal(t, 0.0, state.Velocity)

	clock.Advance(time.Minute)
	state = tr.ComputeDemandState("l1") // one closed window
	assert.Equal(t, 0.0, state.Velocity)
}

func TestVelocity_RampUp(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	ingest := func(n int) {
		for i := 0; i < n; i++ {
			tr.IngestSignal(domain.DemandSignal{
				ListingID: "l1",
				Type:      domain.SignalAPICall,
				Weight:    1,
				BuyerID:   fmt.Sprintf("b%d", i),
			})
		}
	}

	// Three quiet windows then three busy ones.
	for i := 0; i < 3; i++ {
		ingest(10)
		clock.Advance(time.Minute)
	}
	for i := 0; i < 3; i++ {
		ingest(50)
		clock.Advance(time.Minute)
	}

	state := tr.ComputeDemandState("l1")
	assert.Greater(t, state.Velocity, 0.5)
}

func TestVelocity_FlatHistoryIsZero(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	for i := 0; i < 5; i++ {
		for j := 0; j < 20; j++ {
			tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalAPICall, Weight: 1})
		}
		clock.Advance(time.Minute)
	}
	state := tr.ComputeDemandState("l1")
	assert.InDelta(t, 0.0, state.Velocity, 1e-9)
}

func TestUpdatePercentiles_PartialMerge(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	p50 := 20.0
	tr.UpdatePercentiles(PercentileUpdate{P50: &p50})

	got := tr.percentiles()
	assert.Equal(t, 5.0, got.P10)
	assert.Equal(t, 20.0, got.P50)
	assert.Equal(t, 200.0, got.P90)

	// The next computation uses the merged thresholds: raw 20 now sits at
	// the new p50.
	for i := 0; i < 20; i++ {
		tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalAPICall, Weight: 1})
	}
	state := tr.ComputeDemandState("l1")
	assert.InDelta(t, 50.0, state.Score, 1e-9)
}

func TestLastState_PureRead(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	_, ok := tr.LastState("l1")
	assert.False(t, ok)

	tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalAPICall, Weight: 1})
	computed := tr.ComputeDemandState("l1")

	clock.Advance(10 * time.Minute)
	last, ok := tr.LastState("l1")
	require.True(t, ok)
	assert.Equal(t, computed, last)

	// LastState must not have rotated the window.
	lt := tr.trackerFor("l1")
	lt.mu.Lock()
	assert.Equal(t, 0, len(lt.history))
	lt.mu.Unlock()
}

func TestRemoveListing(t *testing.T) {
	tr := newTestTracker(newFakeClock())
	tr.IngestSignal(domain.DemandSignal{ListingID: "l1", Type: domain.SignalAPICall, Weight: 1})
	require.Equal(t, 1, tr.GetStats().TrackedListings)

	tr.RemoveListing("l1")
	assert.Equal(t, 0, tr.GetStats().TrackedListings)
}

func TestBuyerSet_OverflowNeverUndercounts(t *testing.T) {
	s := newBuyerSet()
	for i := 0; i < buyerSetCap+100; i++ {
		s.add(fmt.Sprintf("buyer-%d", i))
	}
	assert.Equal(t, buyerSetCap+100, s.size())

	// Duplicates beyond the cap may overcount but never undercount.
	s.add("buyer-0")
	assert.GreaterOrEqual(t, s.size(), buyerSetCap+100)
}

func TestIngestBatch_EquivalentToSequential(t *testing.T) {
	clock := newFakeClock()
	a := newTestTracker(clock)
	b := newTestTracker(clock)

	signals := []domain.DemandSignal{
		{ListingID: "l1", Type: domain.SignalAPICall, Weight: 1, BuyerID: "b1"},
		{ListingID: "l1", Type: domain.SignalRateLimited, Weight: 1, BuyerID: "b2"},
		{ListingID: "l2", Type: domain.SignalUnsubscription, Weight: 1, BuyerID: "b3"},
	}

	a.IngestBatch(signals)
	for _, sig := range signals {
		b.IngestSignal(sig)
	}

	assert.Equal(t, a.ComputeDemandState("l1"), b.ComputeDemandState("l1"))
	assert.Equal(t, a.ComputeDemandState("l2"), b.ComputeDemandState("l2"))
}

func TestConcurrentIngestAndCompute(t *testing.T) {
	tr := newTestTracker(newFakeClock())
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tr.IngestSignal(domain.DemandSignal{
					ListingID: fmt.Sprintf("l%d", i%4),
					Type:      domain.SignalAPICall,
					Weight:    1,
					BuyerID:   fmt.Sprintf("b%d-%d", g, i),
				})
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			tr.ComputeAllDemandStates()
		}
	}()
	wg.Wait()

	stats := tr.GetStats()
	assert.Equal(t, 4, stats.TrackedListings)
	assert.Equal(t, 4000, stats.TotalSignalsInCurrentWindow)
}
