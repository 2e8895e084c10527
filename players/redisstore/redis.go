// Package redisstore provides a players.Store backed by Redis. Accounts are
// stored as JSON strings and updated with optimistic WATCH/MULTI
// transactions, so several service instances can share them.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/dungeons-and-money/players"
	"github.com/redis/go-redis/v9"
)

// Config contains configuration options for the Redis store.
type Config struct {
	// Client is the Redis client to use. Required.
	Client redis.UniversalClient
	// KeyPrefix is prepended to every account key. Defaults to
	// "dam:players:".
	KeyPrefix string
	// MaxRetries bounds how many times a conflicting update is retried.
	// Defaults to 8.
	MaxRetries int
}

// Store implements players.Store on Redis.
type Store struct {
	client     redis.UniversalClient
	keyPrefix  string
	maxRetries int
}

// New creates a Redis store.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "dam:players:"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 8
	}
	return &Store{
		client:     cfg.Client,
		keyPrefix:  cfg.KeyPrefix,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Load implements players.Store.
func (s *Store) Load(ctx context.Context, playerID string) (*players.Account, error) {
	acct, err := s.get(ctx, s.client, s.key(playerID))
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, players.ErrNotFound
	}
	return acct, nil
}

// Update implements players.Store. fn is re-run when another writer
// modifies the account between the read and the commit.
func (s *Store) Update(ctx context.Context, playerID string, fn func(*players.Account) error) (*players.Account, error) {
	key := s.key(playerID)

	var out *players.Account
	txf := func(tx *redis.Tx) error {
		acct, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		if acct == nil {
			acct = players.NewAccount(playerID)
		}
		if err := fn(acct); err != nil {
			return err
		}
		acct.PlayerID = playerID
		acct.Version++
		acct.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(acct)
		if err != nil {
			return fmt.Errorf("failed to marshal account: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		out = acct
		return nil
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, players.ErrConflict
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(playerID string) string {
	return s.keyPrefix + "account:" + playerID
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// get returns nil without error when the key does not exist.
func (s *Store) get(ctx context.Context, c getter, key string) (*players.Account, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	var acct players.Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &acct, nil
}

var _ players.Store = (*Store)(nil)
