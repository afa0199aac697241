package event

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Stream identifies which output stream a line came from.
type Stream int

const (
	// Stdout is standard output.
	Stdout Stream = iota
	// Stderr is standard error. Errors reported by the OS layer while
	// reading a process are delivered on this stream too.
	Stderr
)

// String returns the stream name.
func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Metadata contains standard information attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source identifies the component that produced the event.
	Source string
}

func newMetadata(source string) Metadata {
	return Metadata{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Source:    source,
	}
}

// Event is implemented by OutputEvent and TerminationEvent.
type Event interface {
	// EventTopic returns the topic the event is published under.
	EventTopic() Topic

	// ProcessID returns the PID of the process that produced the event.
	ProcessID() string

	// EventMetadata returns the event's metadata.
	EventMetadata() Metadata
}

// OutputEvent carries one line of process output.
type OutputEvent struct {
	PID      string
	Stream   Stream
	Data     string
	Metadata Metadata
}

// NewOutputEvent creates an output event for pid.
func NewOutputEvent(pid string, stream Stream, data string) OutputEvent {
	return OutputEvent{
		PID:      pid,
		Stream:   stream,
		Data:     data,
		Metadata: newMetadata("process"),
	}
}

// EventTopic returns TopicStdout or TopicStderr.
func (e OutputEvent) EventTopic() Topic {
	if e.Stream == Stderr {
		return TopicStderr
	}
	return TopicStdout
}

// ProcessID returns the PID the output belongs to.
func (e OutputEvent) ProcessID() string { return e.PID }

// EventMetadata returns the event's metadata.
func (e OutputEvent) EventMetadata() Metadata { return e.Metadata }

// Exit describes how a process terminated.
//
// Code and Signal are only meaningful when the matching Has flag is set. A
// process killed by a signal has no exit code; platforms without signals
// never set HasSignal.
type Exit struct {
	Code      int
	Signal    int
	HasCode   bool
	HasSignal bool
}

// ExitCode returns an Exit carrying only an exit code.
func ExitCode(code int) Exit {
	return Exit{Code: code, HasCode: true}
}

// ExitSignal returns an Exit for a process terminated by signal sig.
func ExitSignal(sig int) Exit {
	return Exit{Signal: sig, HasSignal: true}
}

// CodeString returns the exit code in the cross-boundary encoding, where
// an unavailable code is reported as "0".
func (x Exit) CodeString() string {
	if !x.HasCode {
		return "0"
	}
	return strconv.Itoa(x.Code)
}

// SignalString returns the signal number in the cross-boundary encoding,
// where an absent signal is reported as "0".
func (x Exit) SignalString() string {
	if !x.HasSignal {
		return "0"
	}
	return strconv.Itoa(x.Signal)
}

// Success reports whether the process exited normally with code 0.
func (x Exit) Success() bool {
	return x.HasCode && x.Code == 0 && !x.HasSignal
}

// TerminationEvent reports that a process has exited. It is always the
// last event emitted for its PID.
type TerminationEvent struct {
	PID      string
	Exit     Exit
	Metadata Metadata
}

// NewTerminationEvent creates a termination event for pid.
func NewTerminationEvent(pid string, exit Exit) TerminationEvent {
	return TerminationEvent{
		PID:      pid,
		Exit:     exit,
		Metadata: newMetadata("process"),
	}
}

// EventTopic returns TopicExit.
func (e TerminationEvent) EventTopic() Topic { return TopicExit }

// ProcessID returns the PID that terminated.
func (e TerminationEvent) ProcessID() string { return e.PID }

// EventMetadata returns the event's metadata.
func (e TerminationEvent) EventMetadata() Metadata { return e.Metadata }
