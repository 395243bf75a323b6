// Package stream publishes price ticks to subscribers. The production
// implementation rides Redis pub/sub; a stub backs tests.
package stream

import (
	"context"

	"github.com/nexusx/pricer/internal/domain"
)

// PricesChannel is the pub/sub channel consumed by frontends. The name
// and the tick JSON shape are frozen.
const PricesChannel = "prices"

// Bus publishes and subscribes price ticks.
type Bus interface {
	// PublishTick emits one tick to all subscribers.
	PublishTick(ctx context.Context, tick domain.PriceTick) error

	// Subscribe returns a channel of decoded ticks. The channel closes
	// when ctx is cancelled or the bus shuts down.
	Subscribe(ctx context.Context) (<-chan domain.PriceTick, error)

	// Close tears down the underlying client.
	Close() error
}
