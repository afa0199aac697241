package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/dshills/scaffoldhost/internal/event"
)

// Event names on the wire.
const (
	EventStdout = "child-process-stdout"
	EventStderr = "child-process-stderr"
	EventExit   = "child-process-exit"
)

// DataPayload carries one line of output.
type DataPayload struct {
	PID  string `json:"pid"`
	Data string `json:"data"`
}

// ExitPayload reports a terminated process. Code and Signal are "0" when
// not applicable.
type ExitPayload struct {
	PID    string `json:"pid"`
	Code   string `json:"code"`
	Signal string `json:"signal"`
}

// Encode converts a supervisor event into its wire name and payload.
func Encode(e event.Event) (name string, payload any, ok bool) {
	switch ev := e.(type) {
	case event.OutputEvent:
		name = EventStdout
		if ev.Stream == event.Stderr {
			name = EventStderr
		}
		return name, DataPayload{PID: ev.PID, Data: ev.Data}, true
	case event.TerminationEvent:
		return EventExit, ExitPayload{
			PID:    ev.PID,
			Code:   ev.Exit.CodeString(),
			Signal: ev.Exit.SignalString(),
		}, true
	default:
		return "", nil, false
	}
}

// Line renders an event as a single JSON object with the event name under
// the "event" key, for line-oriented consumers.
func Line(name string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	out, err := sjson.SetBytes(raw, "event", name)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return out, nil
}

// Emitter delivers a named payload to the client. Emit must not block and
// has no way to report failure.
type Emitter interface {
	Emit(name string, payload any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(name string, payload any)

// Emit calls f(name, payload).
func (f EmitterFunc) Emit(name string, payload any) {
	f(name, payload)
}

// Relay is an event.Sink that forwards encoded events to an Emitter.
type Relay struct {
	emitter Emitter
}

// NewRelay creates a Relay writing to emitter.
func NewRelay(emitter Emitter) *Relay {
	return &Relay{emitter: emitter}
}

// Emit encodes e and forwards it. Unknown event types are dropped.
func (r *Relay) Emit(e event.Event) {
	if name, payload, ok := Encode(e); ok {
		r.emitter.Emit(name, payload)
	}
}
