// Package storetest holds a conformance suite every players.Store
// implementation is expected to pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ggoodman/dungeons-and-money/players"
	"github.com/ggoodman/dungeons-and-money/playerstate"
)

// StoreFactory creates a fresh, isolated store for one subtest.
type StoreFactory func(t *testing.T) players.Store

// RunStoreTests runs the complete store test suite against factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("LoadMissing", func(t *testing.T) {
		testLoadMissing(t, factory)
	})
	t.Run("UpdateCreates", func(t *testing.T) {
		testUpdateCreates(t, factory)
	})
	t.Run("UpdateIncrementsVersion", func(t *testing.T) {
		testUpdateIncrementsVersion(t, factory)
	})
	t.Run("UpdateErrorAborts", func(t *testing.T) {
		testUpdateErrorAborts(t, factory)
	})
	t.Run("ReturnedAccountIsACopy", func(t *testing.T) {
		testReturnedAccountIsACopy(t, factory)
	})
	t.Run("ConcurrentUpdates", func(t *testing.T) {
		testConcurrentUpdates(t, factory)
	})
	t.Run("Isolation", func(t *testing.T) {
		testIsolation(t, factory)
	})
}

func testLoadMissing(t *testing.T, factory StoreFactory) {
	s := factory(t)
	if _, err := s.Load(context.Background(), "nobody"); !errors.Is(err, players.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testUpdateCreates(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	loc := playerstate.Location{X: 12, Y: 15, Zone: "Starting Area"}
	acct, err := s.Update(ctx, "42", func(a *players.Account) error {
		if want, got := players.RolePlayer, a.Role; want != got {
			t.Errorf("fresh account role: want %s got %s", want, got)
		}
		a.Location = loc
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if want, got := "42", acct.PlayerID; want != got {
		t.Fatalf("unexpected player ID: want %s got %s", want, got)
	}
	if acct.UpdatedAt.IsZero() {
		t.Fatal("expected UpdatedAt to be stamped")
	}

	loaded, err := s.Load(ctx, "42")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want, got := loc, loaded.Location; want != got {
		t.Fatalf("unexpected location: want %+v got %+v", want, got)
	}
}

func testUpdateIncrementsVersion(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		acct, err := s.Update(ctx, "p", func(a *players.Account) error { return nil })
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if want, got := i, acct.Version; want != got {
			t.Fatalf("unexpected version: want %d got %d", want, got)
		}
	}
}

func testUpdateErrorAborts(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	if _, err := s.Update(ctx, "p", func(a *players.Account) error {
		a.Gold = 10
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	_, err := s.Update(ctx, "p", func(a *players.Account) error {
		a.Gold = 999
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to be returned, got %v", err)
	}

	acct, err := s.Load(ctx, "p")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want, got := uint64(10), acct.Gold; want != got {
		t.Fatalf("aborted update must not be written: want gold %d got %d", want, got)
	}
	if want, got := uint64(1), acct.Version; want != got {
		t.Fatalf("aborted update must not bump the version: want %d got %d", want, got)
	}
}

func testReturnedAccountIsACopy(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	acct, err := s.Update(ctx, "p", func(a *players.Account) error { return nil })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	acct.Role = players.RoleAdmin
	acct.Equipment.Items[2] = 99

	loaded, err := s.Load(ctx, "p")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Role != players.RolePlayer || loaded.Equipment.Items[2] != 0 {
		t.Fatalf("mutating a returned account leaked into the store: %+v", loaded)
	}
}

func testConcurrentUpdates(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "p", func(a *players.Account) error {
				a.Gold++
				return nil
			})
			if err != nil && !errors.Is(err, players.ErrConflict) {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("update: %v", err)
	}

	acct, err := s.Load(ctx, "p")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Every committed update both credits one gold and bumps the version,
	// so no increment may be lost.
	if acct.Gold != acct.Version {
		t.Fatalf("lost update: gold %d version %d", acct.Gold, acct.Version)
	}
	if acct.Gold == 0 {
		t.Fatal("expected at least one update to commit")
	}
}

func testIsolation(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()

	if _, err := s.Update(ctx, "a", func(a *players.Account) error {
		a.Role = players.RoleAdmin
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Load(ctx, "b"); !errors.Is(err, players.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another player, got %v", err)
	}
}
