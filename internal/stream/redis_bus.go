package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/nexusx/pricer/internal/domain"
)

// RedisBus publishes price ticks on a Redis channel.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus connects a bus to the given Redis address and verifies
// connectivity.
func NewRedisBus(ctx context.Context, addr string, db int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return &RedisBus{client: client, channel: PricesChannel}, nil
}

// PublishTick JSON-encodes the tick and publishes it.
func (b *RedisBus) PublishTick(ctx context.Context, tick domain.PriceTick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal price tick: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish price tick for %s: %w", tick.Slug, err)
	}
	return nil
}

// Subscribe decodes ticks from the channel until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan domain.PriceTick, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	out := make(chan domain.PriceTick, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var tick domain.PriceTick
				if err := json.Unmarshal([]byte(msg.Payload), &tick); err != nil {
					log.Warn().Err(err).Msg("Dropping undecodable price tick")
					continue
				}
				select {
				case out <- tick:
				default:
					// Slow consumer: drop rather than stall the pump.
				}
			}
		}
	}()
	return out, nil
}

// Close shuts down the Redis client.
func (b *RedisBus) Close() error { return b.client.Close() }
