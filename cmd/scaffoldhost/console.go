package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/dshills/scaffoldhost/internal/bridge"
	"github.com/dshills/scaffoldhost/internal/event"
)

// consoleSink prints process events to the terminal. In JSON mode every
// event is one line on out in the same shape the client receives.
type consoleSink struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	json   bool
}

func newConsoleSink(out, errOut io.Writer, asJSON bool) *consoleSink {
	return &consoleSink{out: out, errOut: errOut, json: asJSON}
}

func (c *consoleSink) Emit(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.json {
		name, payload, ok := bridge.Encode(e)
		if !ok {
			return
		}
		line, err := bridge.Line(name, payload)
		if err != nil {
			return
		}
		_, _ = c.out.Write(append(line, '\n'))
		return
	}

	switch ev := e.(type) {
	case event.OutputEvent:
		w := c.out
		if ev.Stream == event.Stderr {
			w = c.errOut
		}
		fmt.Fprintln(w, ev.Data)
	case event.TerminationEvent:
		fmt.Fprintf(c.errOut, "[%s] exited (code %s, signal %s)\n",
			ev.PID, ev.Exit.CodeString(), ev.Exit.SignalString())
	}
}
