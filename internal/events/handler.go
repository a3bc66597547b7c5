package events

import (
	"context"
	"sync"

	"github.com/efreitasn/lobsim/internal/domain"
)

// Handler consumes events delivered by a Dispatcher. Handlers run on the
// dispatcher goroutine, one event at a time, in stream order.
type Handler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev domain.Event) error

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev domain.Event) error {
	return f(ctx, ev)
}

// Filter wraps h so that it only sees the given event types.
func Filter(h Handler, types ...domain.EventType) Handler {
	allowed := make(map[domain.EventType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return HandlerFunc(func(ctx context.Context, ev domain.Event) error {
		if _, ok := allowed[ev.Type]; !ok {
			return nil
		}
		return h.Handle(ctx, ev)
	})
}

// Recorder keeps every event it handles. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// Handle appends ev.
func (r *Recorder) Handle(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
