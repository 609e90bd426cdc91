package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/usage"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
	fail   int // fail this many deliveries before succeeding
}

func (s *recordingSink) Forward(_ context.Context, evt *usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, evt.EventID)
	return nil
}

func (s *recordingSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func event(eventID string) *usage.Event {
	return &usage.Event{EventID: eventID, UserID: id.NewUserID(), Timestamp: time.Now().UTC()}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestForwarderDelivers(t *testing.T) {
	sink := &recordingSink{}
	f := NewForwarder(sink)
	f.Start()
	defer f.Stop()

	f.Enqueue(event("a"))
	f.Enqueue(event("b"))

	waitFor(t, func() bool { return len(sink.delivered()) == 2 })

	got := sink.delivered()
	if got[0] != "a" || got[1] != "b" {
		t.Errorf("delivered out of order: %v", got)
	}
}

func TestForwarderRetriesTransientFailures(t *testing.T) {
	sink := &recordingSink{fail: 2}
	f := NewForwarder(sink, WithMaxRetries(5))
	f.Start()
	defer f.Stop()

	f.Enqueue(event("retry-me"))

	waitFor(t, func() bool { return len(sink.delivered()) == 1 })
}

func TestForwarderAbandonsAfterRetryBudget(t *testing.T) {
	sink := &recordingSink{fail: 100}
	f := NewForwarder(sink, WithMaxRetries(1), WithDeliveryTimeout(200*time.Millisecond))
	f.Start()

	f.Enqueue(event("doomed"))
	f.Stop() // drains the queue, including the failing delivery

	if len(sink.delivered()) != 0 {
		t.Errorf("delivery should have been abandoned: %v", sink.delivered())
	}
}

func TestForwarderDropsOldestWhenFull(t *testing.T) {
	sink := &recordingSink{}
	f := NewForwarder(sink, WithQueueSize(2))
	// Not started: the queue fills.

	f.Enqueue(event("1"))
	f.Enqueue(event("2"))
	f.Enqueue(event("3"))
	f.Enqueue(event("4"))

	if f.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", f.Dropped())
	}

	f.Start()
	f.Stop()

	got := sink.delivered()
	if len(got) != 2 || got[0] != "3" || got[1] != "4" {
		t.Errorf("expected newest two events to survive, got %v", got)
	}
}

func TestForwarderStopDrainsQueue(t *testing.T) {
	sink := &recordingSink{}
	f := NewForwarder(sink)
	f.Start()

	for i := 0; i < 50; i++ {
		f.Enqueue(event("e"))
	}
	f.Stop()

	if len(sink.delivered()) != 50 {
		t.Errorf("delivered = %d, want 50", len(sink.delivered()))
	}
}
