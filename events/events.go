// Package events carries security-relevant events raised while player state
// is applied, so operators can watch privilege changes and rejected payloads
// as they happen.
package events

import (
	"context"
	"errors"
	"time"
)

// Kind classifies an Event.
type Kind string

const (
	// KindPrivilegeEscalation is raised when a player's role is elevated.
	KindPrivilegeEscalation Kind = "privilege_escalation"
	// KindCurrencyCredit is raised when gold is credited from a payload.
	KindCurrencyCredit Kind = "currency_credit"
	// KindPayloadRejected is raised when a payload is refused for carrying
	// fields outside the declared state shape.
	KindPayloadRejected Kind = "payload_rejected"
)

// Event is a single security event. ID is assigned by the broker on publish
// and is monotonically increasing within one broker.
type Event struct {
	ID       string    `json:"id,omitempty"`
	Kind     Kind      `json:"kind"`
	PlayerID string    `json:"player_id"`
	Policy   string    `json:"policy"`
	Detail   string    `json:"detail"`
	At       time.Time `json:"at"`
}

// Handler receives delivered events. Returning an error stops the
// subscription and Subscribe returns that error.
type Handler func(ctx context.Context, ev Event) error

// Broker publishes events and delivers them to subscribers in order.
type Broker interface {
	// Publish stores ev and returns its assigned ID.
	Publish(ctx context.Context, ev Event) (id string, err error)

	// Subscribe delivers events until ctx is done or handler fails. With an
	// empty lastEventID delivery starts at the next published event;
	// otherwise it resumes after lastEventID.
	Subscribe(ctx context.Context, lastEventID string, handler Handler) error
}

// ErrClosed is returned by brokers that have been closed.
var ErrClosed = errors.New("events: broker closed")
