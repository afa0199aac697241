package event

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handler handles an event delivered by the Bus.
type Handler func(Event)

// PanicHandler is called when a subscriber panics.
type PanicHandler func(e Event, recovered any, stack []byte)

type subscription struct {
	id      string
	pattern Topic
	handler Handler
}

// Bus is a synchronous topic-based pub-sub Sink.
//
// Handlers run on the emitting goroutine in subscription order, so events
// from a single process reach each handler in the order they were emitted.
// A panicking handler is recovered and does not prevent delivery to the
// remaining handlers.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription

	onPanic PanicHandler

	delivered atomic.Uint64
	panics    atomic.Uint64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithPanicHandler sets the callback invoked when a handler panics.
func WithPanicHandler(fn PanicHandler) BusOption {
	return func(b *Bus) {
		b.onPanic = fn
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for events whose topic matches pattern.
// Returns a subscription ID for Unsubscribe.
func (b *Bus) Subscribe(pattern Topic, handler Handler) string {
	if handler == nil {
		return ""
	}

	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Copy-on-write so Emit can iterate without holding the lock.
	subs := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(subs, b.subs)
	b.subs = append(subs, subscription{id: id, pattern: pattern, handler: handler})
	return id
}

// SubscribeSink registers a Sink for events whose topic matches pattern.
func (b *Bus) SubscribeSink(pattern Topic, sink Sink) string {
	if sink == nil {
		return ""
	}
	return b.Subscribe(pattern, sink.Emit)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id != id {
			continue
		}
		subs := make([]subscription, 0, len(b.subs)-1)
		subs = append(subs, b.subs[:i]...)
		subs = append(subs, b.subs[i+1:]...)
		b.subs = subs
		return true
	}
	return false
}

// Emit delivers e to every matching subscriber.
func (b *Bus) Emit(e Event) {
	if e == nil {
		return
	}

	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	t := e.EventTopic()
	for _, sub := range subs {
		if !t.Matches(sub.pattern) {
			continue
		}
		b.safeCall(sub.handler, e)
	}
}

func (b *Bus) safeCall(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			if b.onPanic != nil {
				b.onPanic(e, r, debug.Stack())
			}
		}
	}()
	h(e)
	b.delivered.Add(1)
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Stats returns delivery counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Delivered: b.delivered.Load(),
		Panics:    b.panics.Load(),
	}
}

// Stats holds bus delivery counters.
type Stats struct {
	Delivered uint64
	Panics    uint64
}

// String returns a compact representation of the counters.
func (s Stats) String() string {
	return fmt.Sprintf("delivered=%d panics=%d", s.Delivered, s.Panics)
}
