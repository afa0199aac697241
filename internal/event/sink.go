package event

import (
	"sync/atomic"
)

// Sink receives events from the supervisor.
//
// Emit must not block for long: it runs on the monitor goroutine of the
// process that produced the event. Delivery is fire-and-forget; a sink that
// cannot deliver drops the event.
type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(e Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) {
	f(e)
}

type discard struct{}

func (discard) Emit(Event) {}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

// Fanout delivers each event to every sink in order.
type Fanout []Sink

// Emit forwards e to each non-nil sink.
func (f Fanout) Emit(e Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(e)
		}
	}
}

// ChannelSink performs a non-blocking send of each event into a buffered
// channel. Events that do not fit are dropped and counted.
type ChannelSink struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewChannelSink creates a ChannelSink with the given buffer size.
// A size below 1 is treated as 1.
func NewChannelSink(size int) *ChannelSink {
	if size < 1 {
		size = 1
	}
	return &ChannelSink{ch: make(chan Event, size)}
}

// Emit queues e, or drops it if the buffer is full.
func (s *ChannelSink) Emit(e Event) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the receive side of the buffer.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Dropped returns the number of events dropped because the buffer was full.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}
