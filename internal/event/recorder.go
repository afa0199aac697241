package event

import (
	"sync"
	"time"
)

// Recorder is a Sink that keeps every event it receives.
// It is intended for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Emit records e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ForPID returns the recorded events tagged with pid, in order.
func (r *Recorder) ForPID(pid string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.ProcessID() == pid {
			out = append(out, e)
		}
	}
	return out
}

// Terminations returns the termination events recorded for pid.
func (r *Recorder) Terminations(pid string) []TerminationEvent {
	var out []TerminationEvent
	for _, e := range r.ForPID(pid) {
		if te, ok := e.(TerminationEvent); ok {
			out = append(out, te)
		}
	}
	return out
}

// WaitFor blocks until cond returns true for the recorded events or the
// timeout elapses. It reports whether cond was satisfied.
func (r *Recorder) WaitFor(timeout time.Duration, cond func([]Event) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if cond(r.Events()) {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return cond(r.Events())
		}
	}
}

// WaitForExit blocks until a termination event for pid has been recorded.
func (r *Recorder) WaitForExit(pid string, timeout time.Duration) (TerminationEvent, bool) {
	var found TerminationEvent
	ok := r.WaitFor(timeout, func(events []Event) bool {
		for _, e := range events {
			if te, ok := e.(TerminationEvent); ok && te.PID == pid {
				found = te
				return true
			}
		}
		return false
	})
	return found, ok
}
