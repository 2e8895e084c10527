// Package memorybroker provides an in-process events.Broker. It retains a
// bounded window of recent events so subscribers can resume after a
// disconnect. State is local to the process; use redisbroker when several
// instances must share one event stream.
package memorybroker

import (
	"context"
	"strconv"
	"sync"

	"github.com/ggoodman/dungeons-and-money/events"
)

// DefaultRetention is the number of events kept for resumption.
const DefaultRetention = 1024

// Broker implements events.Broker with an in-memory, bounded log.
type Broker struct {
	mu        sync.Mutex
	log       []events.Event
	base      int64 // sequence number of log[0]
	next      int64 // sequence number of the next published event
	retention int
	wake      chan struct{}
	closed    bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithRetention sets how many events are kept for resumption. Non-positive
// values are ignored.
func WithRetention(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.retention = n
		}
	}
}

// New creates an empty broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		base:      1,
		next:      1,
		retention: DefaultRetention,
		wake:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish implements events.Broker.
func (b *Broker) Publish(ctx context.Context, ev events.Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", events.ErrClosed
	}

	ev.ID = strconv.FormatInt(b.next, 10)
	b.next++
	b.log = append(b.log, ev)
	if over := len(b.log) - b.retention; over > 0 {
		b.log = append(b.log[:0:0], b.log[over:]...)
		b.base += int64(over)
	}

	close(b.wake)
	b.wake = make(chan struct{})
	return ev.ID, nil
}

// Subscribe implements events.Broker. A lastEventID that is unknown or has
// fallen out of the retention window resumes from the oldest retained event.
func (b *Broker) Subscribe(ctx context.Context, lastEventID string, handler events.Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	cursor := b.next
	if lastEventID != "" {
		cursor = b.base
		if seq, err := strconv.ParseInt(lastEventID, 10, 64); err == nil && seq >= b.base && seq < b.next {
			cursor = seq + 1
		}
	}
	b.mu.Unlock()

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return events.ErrClosed
		}
		if cursor < b.base {
			cursor = b.base
		}
		batch := append([]events.Event(nil), b.log[cursor-b.base:]...)
		wake := b.wake
		b.mu.Unlock()

		for _, ev := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := handler(ctx, ev); err != nil {
				return err
			}
			cursor++
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

// Close stops all subscriptions and rejects further publishes.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.wake)
	}
	return nil
}

var _ events.Broker = (*Broker)(nil)
