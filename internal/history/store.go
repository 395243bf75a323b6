// Package history keeps a rolling 24h price history per listing in a
// Redis sorted set, scored by millisecond timestamp.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nexusx/pricer/internal/domain"
)

// Retention is how long history entries survive before the cycle trim
// removes them.
const Retention = 24 * time.Hour

// keyPrefix matches the frontends' chart reads.
const keyPrefix = "price_history:"

// Entry is one history point. The JSON shape is frozen for chart
// consumers.
type Entry struct {
	Price       float64                 `json:"price"`
	Floor       float64                 `json:"floor"`
	Multipliers domain.PriceMultipliers `json:"multipliers"`
	Demand      EntryDemand             `json:"demand"`
	Timestamp   int64                   `json:"timestamp"`
}

// EntryDemand is the demand slice of a history entry.
type EntryDemand struct {
	Score    float64 `json:"score"`
	Velocity float64 `json:"velocity"`
}

// Store appends and trims per-slug history.
type Store struct {
	client *redis.Client
}

// NewStore wraps an existing Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Key returns the sorted-set key for a slug.
func Key(slug string) string { return keyPrefix + slug }

// Append pushes one entry scored by its timestamp.
func (s *Store) Append(ctx context.Context, slug string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	err = s.client.ZAdd(ctx, Key(slug), &redis.Z{
		Score:  float64(entry.Timestamp),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append history for %s: %w", slug, err)
	}
	return nil
}

// Trim drops entries older than the retention window, measured from now.
func (s *Store) Trim(ctx context.Context, slug string, now time.Time) error {
	cutoff := now.Add(-Retention).UnixMilli()
	err := s.client.ZRemRangeByScore(ctx, Key(slug), "-inf", strconv.FormatInt(cutoff, 10)).Err()
	if err != nil {
		return fmt.Errorf("failed to trim history for %s: %w", slug, err)
	}
	return nil
}

// Range returns entries between from and to inclusive, oldest first.
func (s *Store) Range(ctx context.Context, slug string, from, to time.Time) ([]Entry, error) {
	raw, err := s.client.ZRangeByScore(ctx, Key(slug), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", slug, err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, member := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			continue // tolerate legacy entries
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close shuts down the underlying client.
func (s *Store) Close() error { return s.client.Close() }
