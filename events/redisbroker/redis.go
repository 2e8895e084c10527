// Package redisbroker implements events.Broker on a Redis Stream so that every
// service instance publishes to, and can tail, the same security event log.
package redisbroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/dungeons-and-money/events"
	"github.com/redis/go-redis/v9"
)

// Config contains configuration options for the Redis broker.
type Config struct {
	// Client is the Redis client to use. Required.
	Client redis.UniversalClient
	// KeyPrefix is prepended to the stream key. Defaults to "dam:events:".
	KeyPrefix string
	// MaxLen caps the stream length (approximately). Defaults to 10000.
	MaxLen int64
	// Block is how long a single XREAD waits before re-checking the
	// context. Defaults to one second.
	Block time.Duration
}

// Broker is a Redis Streams backed events.Broker.
type Broker struct {
	client    redis.UniversalClient
	streamKey string
	maxLen    int64
	block     time.Duration
}

// New creates a Redis broker.
func New(cfg Config) (*Broker, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "dam:events:"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 10000
	}
	if cfg.Block <= 0 {
		cfg.Block = time.Second
	}
	return &Broker{
		client:    cfg.Client,
		streamKey: cfg.KeyPrefix + "security",
		maxLen:    cfg.MaxLen,
		block:     cfg.Block,
	}, nil
}

// Publish appends ev to the stream. Redis assigns the event ID.
func (b *Broker) Publish(ctx context.Context, ev events.Event) (string, error) {
	ev.ID = ""
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.streamKey,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{"data": data},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish event to stream %s: %w", b.streamKey, err)
	}
	return id, nil
}

// Subscribe tails the stream from lastEventID, or from the next event when
// lastEventID is empty.
func (b *Broker) Subscribe(ctx context.Context, lastEventID string, handler events.Handler) error {
	start := lastEventID
	if start == "" {
		// Pin "now" to a concrete ID; re-sending "$" on every XREAD would
		// drop events published between two reads.
		last, err := b.client.XRevRangeN(ctx, b.streamKey, "+", "-", 1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read stream tail %s: %w", b.streamKey, err)
		}
		start = "0-0"
		if len(last) > 0 {
			start = last[0].ID
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{b.streamKey, start},
			Count:   32,
			Block:   b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read from stream %s: %w", b.streamKey, err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				start = msg.ID
				raw, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}
				var ev events.Event
				if err := json.Unmarshal([]byte(raw), &ev); err != nil {
					continue
				}
				ev.ID = msg.ID
				if err := handler(ctx, ev); err != nil {
					return err
				}
			}
		}
	}
}

// Close closes the underlying client.
func (b *Broker) Close() error {
	return b.client.Close()
}

var _ events.Broker = (*Broker)(nil)
