package players

import (
	"context"
	"errors"
	"time"

	"github.com/ggoodman/dungeons-and-money/playerstate"
)

// Role is the privilege level of an account.
type Role string

const (
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

// Account is the persisted state of one player.
type Account struct {
	PlayerID  string                `json:"player_id"`
	Role      Role                  `json:"role"`
	Gold      uint64                `json:"gold"`
	Equipment playerstate.Equipment `json:"equipment"`
	Location  playerstate.Location  `json:"location"`
	Version   uint64                `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewAccount returns the account a player starts with.
func NewAccount(playerID string) *Account {
	return &Account{PlayerID: playerID, Role: RolePlayer}
}

// Clone returns a copy of a that shares no memory with it.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// Store persists accounts. Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the account for playerID or ErrNotFound.
	Load(ctx context.Context, playerID string) (*Account, error)

	// Update runs fn against the current account (a fresh one from
	// NewAccount when none exists) and commits the result atomically,
	// incrementing Version and stamping UpdatedAt. fn may run more than once
	// if the store retries; it must not have side effects beyond mutating
	// the account. An error from fn aborts the update and is returned as is.
	Update(ctx context.Context, playerID string, fn func(*Account) error) (*Account, error)

	// Close releases the store's resources.
	Close() error
}

var (
	// ErrNotFound is returned by Load for unknown players.
	ErrNotFound = errors.New("players: account not found")
	// ErrConflict is returned when an update lost too many races against
	// concurrent writers.
	ErrConflict = errors.New("players: concurrent update conflict")
)
