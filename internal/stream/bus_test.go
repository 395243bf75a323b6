package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusx/pricer/internal/domain"
)

func TestStubBus_PublishAndSubscribe(t *testing.T) {
	bus := NewStubBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	tick := domain.PriceTick{Slug: "weather-api", ListingID: "l1", CurrentPrice: 0.012, Direction: domain.TickUp}
	require.NoError(t, bus.PublishTick(ctx, tick))

	got := <-ch
	assert.Equal(t, tick, got)
	assert.Len(t, bus.Ticks(), 1)
}

func TestStubBus_FailWith(t *testing.T) {
	bus := NewStubBus()
	bus.FailWith(errors.New("broker down"))

	err := bus.PublishTick(context.Background(), domain.PriceTick{Slug: "x"})
	assert.Error(t, err)
	assert.Empty(t, bus.Ticks())
}

// The tick wire shape is consumed by existing frontends; key names are
// load-bearing.
func TestPriceTick_WireShape(t *testing.T) {
	tick := domain.PriceTick{
		Slug:           "weather-api",
		Name:           "Weather API",
		ListingID:      "l1",
		CurrentPrice:   0.0125,
		PreviousPrice:  0.012,
		ChangePercent:  4.17,
		Direction:      domain.TickUp,
		Timestamp:      1717243200000,
		Multipliers:    domain.PriceMultipliers{Demand: 1.2, Scarcity: 1, Quality: 1.1, Momentum: 1, Temporal: 1, Combined: 1.32},
		DemandScore:    63.5,
		DemandVelocity: 2.25,
	}

	payload, err := json.Marshal(tick)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	for _, key := range []string{
		"slug", "name", "listingId", "currentPrice", "previousPrice",
		"changePercent", "direction", "timestamp", "multipliers",
		"demandScore", "demandVelocity",
	} {
		assert.Contains(t, decoded, key)
	}
	multipliers := decoded["multipliers"].(map[string]any)
	for _, key := range []string{"demand", "scarcity", "quality", "momentum", "temporal", "combined"} {
		assert.Contains(t, multipliers, key)
	}
	assert.Equal(t, "up", decoded["direction"])
}
