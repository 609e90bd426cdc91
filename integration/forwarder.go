package integration

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xraph/zcredit-ledger/usage"
)

// Forwarder delivers usage events to an AnalyticsSink from a bounded
// queue. When the queue is full the oldest event is dropped, so a sink
// outage costs analytics data but never memory. Deliveries retry with
// exponential backoff up to a per-event attempt cap, then the event is
// abandoned with a log line.
type Forwarder struct {
	sink       AnalyticsSink
	queue      chan *usage.Event
	logger     *slog.Logger
	timeout    time.Duration
	maxRetries uint64

	dropped atomic.Int64

	stop chan struct{}
	done chan struct{}
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithQueueSize caps the number of events awaiting delivery.
func WithQueueSize(n int) ForwarderOption {
	return func(f *Forwarder) {
		if n > 0 {
			f.queue = make(chan *usage.Event, n)
		}
	}
}

// WithForwarderLogger sets the logger.
func WithForwarderLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder) { f.logger = logger }
}

// WithDeliveryTimeout bounds each delivery attempt, retries included.
func WithDeliveryTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) { f.timeout = d }
}

// WithMaxRetries caps retries per event after the initial attempt.
func WithMaxRetries(n uint64) ForwarderOption {
	return func(f *Forwarder) { f.maxRetries = n }
}

// NewForwarder constructs a stopped Forwarder; call Start to begin
// draining the queue.
func NewForwarder(sink AnalyticsSink, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		sink:       sink,
		queue:      make(chan *usage.Event, 1024),
		logger:     slog.Default(),
		timeout:    10 * time.Second,
		maxRetries: 3,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start launches the delivery worker.
func (f *Forwarder) Start() {
	go f.run()
}

// Stop drains the queue and waits for the worker to exit.
func (f *Forwarder) Stop() {
	close(f.stop)
	<-f.done
}

// Enqueue queues evt for delivery, dropping the oldest queued event when
// the queue is full. It never blocks the caller.
func (f *Forwarder) Enqueue(evt *usage.Event) {
	for {
		select {
		case f.queue <- evt:
			return
		default:
		}
		select {
		case old := <-f.queue:
			f.dropped.Add(1)
			f.logger.Debug("analytics queue full, dropping oldest event", "event_id", old.EventID)
		default:
		}
	}
}

// Dropped reports how many events have been discarded since start.
func (f *Forwarder) Dropped() int64 { return f.dropped.Load() }

func (f *Forwarder) run() {
	defer close(f.done)
	for {
		select {
		case <-f.stop:
			for {
				select {
				case evt := <-f.queue:
					f.deliver(evt)
				default:
					return
				}
			}
		case evt := <-f.queue:
			f.deliver(evt)
		}
	}
}

func (f *Forwarder) deliver(evt *usage.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxRetries), ctx)
	err := backoff.Retry(func() error {
		return f.sink.Forward(ctx, evt)
	}, policy)
	if err != nil {
		f.logger.Warn("analytics forward failed, event abandoned",
			"event_id", evt.EventID,
			"user_id", evt.UserID,
			"error", err,
		)
	}
}
