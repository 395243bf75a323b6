package updater

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nexusx/pricer/internal/auction"
	"github.com/nexusx/pricer/internal/domain"
	"github.com/nexusx/pricer/internal/history"
	"github.com/nexusx/pricer/internal/quality"
)

func newCycleID() string { return uuid.NewString() }

// gatherInputs assembles one engine input per listing with a bounded
// parallel fan-out. Individual fetch failures degrade to neutral
// defaults; the fan-out itself never fails.
func (u *Updater) gatherInputs(ctx context.Context, listings []domain.Listing) []auction.PriceInput {
	inputs := make([]auction.PriceInput, len(listings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.MaxConcurrentFetch)
	for i, listing := range listings {
		i, listing := i, listing
		g.Go(func() error {
			inputs[i] = u.buildInput(gctx, listing)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return inputs
}

func (u *Updater) buildInput(ctx context.Context, listing domain.Listing) auction.PriceInput {
	return auction.PriceInput{
		ListingID:     listing.ID,
		FloorPrice:    listing.FloorPriceUSDC,
		CeilingPrice:  listing.CeilingPriceUSDC,
		Demand:        u.demandFor(ctx, listing.ID),
		Quality:       u.qualityFor(ctx, listing.ID),
		Supply:        u.supplyFor(ctx, listing),
		PreviousPrice: listing.CurrentPriceUSDC,
	}
}

// demandFor prefers the in-memory tracker; a cold tracker (no signals,
// no history) falls back to aggregating persisted signal rows.
func (u *Updater) demandFor(ctx context.Context, listingID string) domain.DemandState {
	state := u.tracker.ComputeDemandState(listingID)
	if state.RawSignalSum != 0 || state.UniqueBuyers > 0 || state.Velocity != 0 {
		return state
	}
	return u.fallbackDemand(ctx, listingID, state)
}

// fallbackDemand rebuilds a coarse demand state from stored signal rows
// in the demand window. The score is min(100, rawSum); velocity is the
// difference of the two half-window magnitudes. Coarser than the
// tracker's percentile normalization, which stays authoritative once
// the tracker is warm.
func (u *Updater) fallbackDemand(ctx context.Context, listingID string, cold domain.DemandState) domain.DemandState {
	since := u.clock.Now().Add(-u.cfg.DemandWindow)
	rows, err := u.repos.Signals.Recent(ctx, listingID, since)
	if err != nil {
		log.Debug().Err(err).Str("listing_id", listingID).
			Msg("Fallback signal read failed, pricing with cold demand")
		return cold
	}
	if len(rows) == 0 {
		return cold
	}

	var rawSum, former, latter float64
	buyers := make(map[string]struct{})
	mid := len(rows) / 2
	for i, row := range rows {
		kind, err := domain.ParseSignalKind(row.Kind)
		if err != nil {
			continue
		}
		w := row.Weight
		if w < 0 {
			w = 0
		}
		contribution := u.weights[kind] * w
		rawSum += contribution
		if i < mid {
			former += contribution
		} else {
			latter += contribution
		}
		if row.BuyerID != nil {
			buyers[*row.BuyerID] = struct{}{}
		}
	}

	state := cold
	state.Score = math.Min(100, math.Max(0, rawSum))
	state.RawSignalSum = rawSum
	state.UniqueBuyers = len(buyers)
	state.Velocity = domain.Round2(math.Abs(latter) - math.Abs(former))
	return state
}

func (u *Updater) qualityFor(ctx context.Context, listingID string) domain.QualityMetrics {
	row, ok, err := u.repos.Quality.Latest(ctx, listingID)
	if err != nil {
		log.Warn().Err(err).Str("listing_id", listingID).
			Msg("Quality rollup read failed, pricing with defaults")
		return domain.DefaultQualityMetrics()
	}
	if !ok {
		return domain.DefaultQualityMetrics()
	}
	return quality.Score(row.Raw())
}

func (u *Updater) supplyFor(ctx context.Context, listing domain.Listing) domain.SupplyState {
	supply := domain.SupplyState{
		CategoryID:        listing.CategoryID,
		CapacityPerMinute: listing.CapacityPerMinute,
	}

	competitors, err := u.repos.Listings.CountActiveInCategory(ctx, listing.CategoryID, listing.ID)
	if err != nil {
		log.Warn().Err(err).Str("listing_id", listing.ID).
			Msg("Competitor count failed, assuming crowded category")
		// A crowded category keeps the scarcity multiplier neutral.
		competitors = 3
	}
	supply.CompetitorCount = competitors
	supply.IsUnique = competitors == 0

	calls, err := u.repos.Transactions.CallsSince(ctx, listing.ID, u.clock.Now().Add(-utilizationWindow))
	if err != nil {
		log.Warn().Err(err).Str("listing_id", listing.ID).
			Msg("Call volume read failed, assuming zero utilization")
		return supply
	}
	if listing.CapacityPerMinute > 0 {
		supply.UtilizationPercent = float64(calls) / float64(listing.CapacityPerMinute) * 100
	}
	return supply
}

// applyResult diffs one result against the stored price and, on change,
// publishes the tick and persists the new state. Returns the number of
// ticks published (0 or 1) and the number of errors encountered.
// A failed publish is non-critical: the stored price is still updated.
// A failed price write is critical for the listing: snapshot, result
// and history are skipped so the store never gets ahead of itself.
func (u *Updater) applyResult(ctx context.Context, listing domain.Listing, result domain.AuctionResult) (published, errCount int) {
	previous := listing.CurrentPriceUSDC
	u.trackBoundary(listing, result)

	if result.Price == previous {
		return 0, 0
	}

	tick := u.makeTick(listing, result)
	if err := u.bus.PublishTick(ctx, tick); err != nil {
		log.Error().Err(err).Str("listing_id", listing.ID).
			Msg("Failed to publish price tick")
		u.metrics.PublishErrors.Inc()
		errCount++
	} else {
		u.metrics.TicksPublished.WithLabelValues(string(tick.Direction)).Inc()
		published = 1
	}

	if err := u.repos.Listings.UpdateCurrentPrice(ctx, listing.ID, result.Price, result.ComputedAt); err != nil {
		log.Error().Err(err).Str("listing_id", listing.ID).
			Float64("price", result.Price).
			Msg("Failed to write stored price, skipping listing")
		u.metrics.PriceWriteErrors.Inc()
		return published, errCount + 1
	}

	errCount += u.persistComputation(ctx, listing, result, previous)
	return published, errCount
}

// persistComputation writes the snapshot, the auction result and the
// chart history. All three are non-critical: failures are logged and
// the cycle moves on.
func (u *Updater) persistComputation(ctx context.Context, listing domain.Listing, result domain.AuctionResult, previous float64) (errCount int) {
	u.mu.Lock()
	atFloor := u.atFloor[listing.ID]
	atCeiling := u.atCeiling[listing.ID]
	u.mu.Unlock()

	snap := domain.PriceSnapshot{
		ListingID:        listing.ID,
		FloorPrice:       listing.FloorPriceUSDC,
		CeilingPrice:     listing.CeilingPriceUSDC,
		CurrentPrice:     result.Price,
		PreviousPrice:    previous,
		PriceChangePct:   changePercent(previous, result.Price),
		Multipliers:      result.Multipliers,
		WindowsAtFloor:   atFloor,
		WindowsAtCeiling: atCeiling,
		ComputedAt:       result.ComputedAt,
	}
	if err := u.repos.Snapshots.Insert(ctx, snap); err != nil {
		log.Error().Err(err).Str("listing_id", listing.ID).Msg("Failed to persist price snapshot")
		u.metrics.HistoryWriteErrors.Inc()
		errCount++
	}

	if err := u.repos.Results.Insert(ctx, result); err != nil {
		log.Error().Err(err).Str("listing_id", listing.ID).Msg("Failed to persist auction result")
		u.metrics.HistoryWriteErrors.Inc()
		errCount++
	}

	if u.history == nil {
		return errCount
	}
	entry := history.Entry{
		Price:       result.Price,
		Floor:       listing.FloorPriceUSDC,
		Multipliers: result.Multipliers,
		Demand: history.EntryDemand{
			Score:    result.Inputs.Demand.Score,
			Velocity: result.Inputs.Demand.Velocity,
		},
		Timestamp: result.ComputedAt.UnixMilli(),
	}
	if err := u.history.Append(ctx, listing.Slug, entry); err != nil {
		log.Error().Err(err).Str("slug", listing.Slug).Msg("Failed to append price history")
		u.metrics.HistoryWriteErrors.Inc()
		errCount++
	}
	if err := u.history.Trim(ctx, listing.Slug, result.ComputedAt); err != nil {
		log.Error().Err(err).Str("slug", listing.Slug).Msg("Failed to trim price history")
		u.metrics.HistoryWriteErrors.Inc()
		errCount++
	}
	return errCount
}

// trackBoundary maintains the consecutive at-floor / at-ceiling streaks
// persisted on snapshots and exported as gauges.
func (u *Updater) trackBoundary(listing domain.Listing, result domain.AuctionResult) {
	atFloor := listing.FloorPriceUSDC > 0 && result.Price <= listing.FloorPriceUSDC
	atCeiling := listing.CeilingPriceUSDC > 0 && result.Price >= listing.CeilingPriceUSDC

	u.mu.Lock()
	defer u.mu.Unlock()
	if atFloor {
		u.atFloor[listing.ID]++
	} else {
		delete(u.atFloor, listing.ID)
	}
	if atCeiling {
		u.atCeiling[listing.ID]++
	} else {
		delete(u.atCeiling, listing.ID)
	}
}

func (u *Updater) makeTick(listing domain.Listing, result domain.AuctionResult) domain.PriceTick {
	previous := listing.CurrentPriceUSDC
	direction := domain.TickFlat
	switch {
	case result.Price > previous:
		direction = domain.TickUp
	case result.Price < previous:
		direction = domain.TickDown
	}

	return domain.PriceTick{
		Slug:           listing.Slug,
		Name:           listing.Name,
		ListingID:      listing.ID,
		CurrentPrice:   result.Price,
		PreviousPrice:  previous,
		ChangePercent:  changePercent(previous, result.Price),
		Direction:      direction,
		Timestamp:      result.ComputedAt.UnixMilli(),
		Multipliers:    result.Multipliers,
		DemandScore:    result.Inputs.Demand.Score,
		DemandVelocity: result.Inputs.Demand.Velocity,
	}
}

func changePercent(previous, current float64) float64 {
	if previous <= 0 {
		return 0
	}
	return domain.Round2((current - previous) / previous * 100)
}
