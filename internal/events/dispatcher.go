package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/efreitasn/lobsim/internal/domain"
)

// Overflow selects what Publish does when the dispatcher buffer is full.
type Overflow string

const (
	// OverflowDrop discards the event and counts it.
	OverflowDrop Overflow = "drop"
	// OverflowBlock waits for buffer space, stalling the publisher.
	OverflowBlock Overflow = "block"
)

// ParseOverflow validates an overflow policy name.
func ParseOverflow(s string) (Overflow, error) {
	switch Overflow(s) {
	case OverflowDrop, OverflowBlock:
		return Overflow(s), nil
	}
	return "", &domain.ValidationError{Message: fmt.Sprintf("overflow must be %q or %q, got %q", OverflowDrop, OverflowBlock, s)}
}

// Config configures a Dispatcher.
type Config struct {
	Buffer   int
	Overflow Overflow
}

// Dispatcher decouples the matching goroutine from event consumers. It
// buffers published events and fans each one out to every handler from a
// single goroutine.
type Dispatcher struct {
	logger   *slog.Logger
	overflow Overflow
	handlers []Handler

	events chan domain.Event
	done   chan struct{}

	mu     sync.RWMutex // guards closed against sends on events
	closed bool

	startOnce sync.Once
	closeOnce sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
	failures  atomic.Uint64
}

// NewDispatcher creates a dispatcher delivering to handlers. Call Start to
// begin delivery.
func NewDispatcher(cfg Config, logger *slog.Logger, handlers ...Handler) *Dispatcher {
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Overflow == "" {
		cfg.Overflow = OverflowDrop
	}
	return &Dispatcher{
		logger:   logger,
		overflow: cfg.Overflow,
		handlers: handlers,
		events:   make(chan domain.Event, cfg.Buffer),
		done:     make(chan struct{}),
	}
}

// Publish hands ev to the dispatcher. With OverflowDrop it never blocks.
// Events published after Close are dropped.
func (d *Dispatcher) Publish(ev domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ev)
		return
	}

	if d.overflow == OverflowBlock {
		d.events <- ev
		return
	}

	select {
	case d.events <- ev:
	default:
		d.drop(ev)
	}
}

func (d *Dispatcher) drop(ev domain.Event) {
	n := d.dropped.Add(1)
	d.logger.Debug("event dropped",
		slog.Uint64("seq", ev.Seq),
		slog.String("type", string(ev.Type)),
		slog.Uint64("dropped_total", n),
	)
}

// Start launches the delivery goroutine. Handlers receive ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for ev := range d.events {
		for _, h := range d.handlers {
			if err := h.Handle(ctx, ev); err != nil {
				d.failures.Add(1)
				d.logger.Warn("event handler failed",
					slog.Uint64("seq", ev.Seq),
					slog.String("type", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
		d.delivered.Add(1)
	}
}

// Close stops intake. Buffered events are still delivered; Done is closed
// afterwards. Close is idempotent.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})
}

// Done is closed once every buffered event has been delivered after Close.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Shutdown closes the dispatcher and waits for delivery to finish or ctx
// to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.Close()
	select {
	case <-d.done:
	case <-ctx.Done():
		return fmt.Errorf("event drain: %w", ctx.Err())
	}
	if n := d.dropped.Load(); n > 0 {
		d.logger.Warn("events dropped under backpressure", slog.Uint64("dropped", n))
	}
	return nil
}

// Dropped returns the number of events discarded so far.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Delivered returns the number of events handed to every handler.
func (d *Dispatcher) Delivered() uint64 {
	return d.delivered.Load()
}

// Failures returns the number of handler errors.
func (d *Dispatcher) Failures() uint64 {
	return d.failures.Load()
}

// Pending returns the number of buffered events awaiting delivery.
func (d *Dispatcher) Pending() int {
	return len(d.events)
}
