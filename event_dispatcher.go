package luxeapi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxesuite/luxeapi/middleware"
)

// eventDispatcher hands session events to the sink on a single goroutine.
// Events are stamped on the caller's goroutine: a UTC timestamp, and the
// request ID carried by ctx when the event has none. The sink receives ctx
// detached from its cancellation so the request ID stays readable.
type eventDispatcher struct {
	sink   EventSink
	drop   bool
	logger *slog.Logger
	now    func() time.Time

	// mu guards closed and sends on queue; Close takes it exclusively
	// before closing the channel.
	mu      sync.RWMutex
	closed  bool
	queue   chan queuedEvent
	stopped chan struct{}

	dropped  atomic.Uint64
	panicked atomic.Uint64
}

type queuedEvent struct {
	ctx context.Context
	ev  Event
}

// newEventDispatcher returns nil when events are disabled; every method is
// nil-safe.
func newEventDispatcher(cfg EventsConfig, sink EventSink, logger *slog.Logger, now func() time.Time) *eventDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if now == nil {
		now = time.Now
	}

	d := &eventDispatcher{
		sink:    sink,
		drop:    cfg.DropIfFull,
		logger:  logger,
		now:     now,
		queue:   make(chan queuedEvent, size),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *eventDispatcher) run() {
	defer close(d.stopped)
	for item := range d.queue {
		d.deliver(item)
	}
}

// deliver isolates the worker from a panicking sink.
func (d *eventDispatcher) deliver(item queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.LogAttrs(item.ctx, slog.LevelError, "luxeapi event sink panicked",
				slog.String("event", string(item.ev.Type)),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	d.sink.Emit(item.ctx, item.ev)
}

func (d *eventDispatcher) stamp(ctx context.Context, ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.now().UTC()
	}
	if ev.RequestID == "" {
		if id, ok := middleware.RequestIDFromContext(ctx); ok {
			ev.RequestID = id
		}
	}
}

// Emit stamps and queues ev. With DropIfFull a full queue drops the event
// and counts it; otherwise Emit waits for room or for ctx.
func (d *eventDispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.stamp(ctx, &ev)
	item := queuedEvent{ctx: context.WithoutCancel(ctx), ev: ev}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.drop {
		select {
		case d.queue <- item:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- item:
	case <-ctx.Done():
	}
}

// Close delivers everything already queued, then stops the worker. Safe to
// call twice.
func (d *eventDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped reports how many events a full queue discarded.
func (d *eventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Panicked reports how many deliveries the sink aborted with a panic.
func (d *eventDispatcher) Panicked() uint64 {
	if d == nil {
		return 0
	}
	return d.panicked.Load()
}
