// Package brokertest holds a conformance suite every events.Broker
// implementation is expected to pass.
package brokertest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/dungeons-and-money/events"
)

// BrokerFactory creates a fresh, isolated broker for one subtest.
type BrokerFactory func(t *testing.T) events.Broker

// RunBrokerTests runs the complete broker test suite against factory.
func RunBrokerTests(t *testing.T, factory BrokerFactory) {
	t.Run("PublishThenSubscribeFromNow", func(t *testing.T) {
		testSubscribeFromNow(t, factory)
	})
	t.Run("ResumeFromLastEventID", func(t *testing.T) {
		testResumeFromLastEventID(t, factory)
	})
	t.Run("MultipleSubscribers", func(t *testing.T) {
		testMultipleSubscribers(t, factory)
	})
	t.Run("OrderedDelivery", func(t *testing.T) {
		testOrderedDelivery(t, factory)
	})
	t.Run("HandlerErrorStopsSubscription", func(t *testing.T) {
		testHandlerErrorStopsSubscription(t, factory)
	})
	t.Run("ContextCancellation", func(t *testing.T) {
		testContextCancellation(t, factory)
	})
}

func sampleEvent(kind events.Kind, player string) events.Event {
	return events.Event{
		Kind:     kind,
		PlayerID: player,
		Policy:   "vulnerable",
		Detail:   "test",
		At:       time.Now().UTC().Truncate(time.Millisecond),
	}
}

// collect subscribes in the background and returns a function that waits
// until n events arrived (or the deadline passes) and returns them.
func collect(t *testing.T, b events.Broker, ctx context.Context, lastEventID string, n int) func() []events.Event {
	t.Helper()
	var (
		mu  sync.Mutex
		got []events.Event
	)
	done := make(chan struct{})
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = b.Subscribe(ctx, lastEventID, func(ctx context.Context, ev events.Event) error {
			mu.Lock()
			got = append(got, ev)
			reached := len(got) == n
			mu.Unlock()
			if reached {
				close(done)
			}
			return nil
		})
	}()
	<-ready
	// Give the subscription time to register its starting position.
	time.Sleep(100 * time.Millisecond)

	return func() []events.Event {
		t.Helper()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			mu.Lock()
			defer mu.Unlock()
			t.Fatalf("timed out waiting for %d events, got %d", n, len(got))
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]events.Event(nil), got...)
	}
}

func testSubscribeFromNow(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := b.Publish(ctx, sampleEvent(events.KindCurrencyCredit, "before")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	wait := collect(t, b, ctx, "", 1)

	id, err := b.Publish(ctx, sampleEvent(events.KindPrivilegeEscalation, "after"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty event ID")
	}

	got := wait()
	if want, got := id, got[0].ID; want != got {
		t.Fatalf("unexpected event ID: want %s got %s", want, got)
	}
	if want, got := "after", got[0].PlayerID; want != got {
		t.Fatalf("subscription must start after existing events: want player %q got %q", want, got)
	}
}

func testResumeFromLastEventID(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := b.Publish(ctx, sampleEvent(events.KindPrivilegeEscalation, "p1"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	second, err := b.Publish(ctx, sampleEvent(events.KindCurrencyCredit, "p2"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := collect(t, b, ctx, first, 1)()
	if want, got := second, got[0].ID; want != got {
		t.Fatalf("expected resume after %s to deliver %s, got %s", first, want, got)
	}
	if want, got := events.KindCurrencyCredit, got[0].Kind; want != got {
		t.Fatalf("unexpected kind: want %s got %s", want, got)
	}
}

func testMultipleSubscribers(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wait1 := collect(t, b, ctx, "", 1)
	wait2 := collect(t, b, ctx, "", 1)

	id, err := b.Publish(ctx, sampleEvent(events.KindPayloadRejected, "p"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := wait1(); got[0].ID != id {
		t.Fatalf("first subscriber: want %s got %s", id, got[0].ID)
	}
	if got := wait2(); got[0].ID != id {
		t.Fatalf("second subscriber: want %s got %s", id, got[0].ID)
	}
}

func testOrderedDelivery(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 20
	wait := collect(t, b, ctx, "", n)

	var ids []string
	for i := 0; i < n; i++ {
		id, err := b.Publish(ctx, sampleEvent(events.KindCurrencyCredit, "p"))
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	got := wait()
	for i := range ids {
		if ids[i] != got[i].ID {
			t.Fatalf("event %d out of order: want %s got %s", i, ids[i], got[i].ID)
		}
	}
}

func testHandlerErrorStopsSubscription(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := errors.New("stop")
	done := make(chan error, 1)
	go func() {
		done <- b.Subscribe(ctx, "", func(context.Context, events.Event) error { return stop })
	}()
	time.Sleep(100 * time.Millisecond)

	if _, err := b.Publish(ctx, sampleEvent(events.KindCurrencyCredit, "p")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, stop) {
			t.Fatalf("expected handler error, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not stop after handler error")
	}
}

func testContextCancellation(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.Subscribe(ctx, "", func(context.Context, events.Event) error { return nil })
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not stop after cancellation")
	}
}
