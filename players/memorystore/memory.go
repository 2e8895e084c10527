// Package memorystore provides an in-memory players.Store using
// github.com/hashicorp/golang-lru/v2. The least recently used accounts are
// evicted once the cache is full, so it suits single instances and tests.
package memorystore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ggoodman/dungeons-and-money/players"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the number of accounts kept when no size is given.
const DefaultSize = 10000

// Store implements players.Store on an LRU cache.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *players.Account]
}

// New creates a store holding at most size accounts. A non-positive size
// selects DefaultSize.
func New(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, *players.Account](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Load implements players.Store.
func (s *Store) Load(ctx context.Context, playerID string) (*players.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	acct, ok := s.cache.Get(playerID)
	s.mu.Unlock()

	if !ok {
		return nil, players.ErrNotFound
	}
	return acct.Clone(), nil
}

// Update implements players.Store. Updates are serialised by a store-wide
// mutex, so fn runs exactly once.
func (s *Store) Update(ctx context.Context, playerID string, fn func(*players.Account) error) (*players.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := players.NewAccount(playerID)
	if cur, ok := s.cache.Get(playerID); ok {
		acct = cur.Clone()
	}
	if err := fn(acct); err != nil {
		return nil, err
	}
	acct.PlayerID = playerID
	acct.Version++
	acct.UpdatedAt = time.Now().UTC()

	s.cache.Add(playerID, acct)
	return acct.Clone(), nil
}

// Close drops every cached account.
func (s *Store) Close() error {
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	return nil
}

var _ players.Store = (*Store)(nil)
