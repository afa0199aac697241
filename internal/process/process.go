package process

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/scaffoldhost/internal/event"
)

// ItemKind identifies what an Item carries.
type ItemKind int

const (
	// ItemStdout is one line of standard output.
	ItemStdout ItemKind = iota
	// ItemStderr is one line of standard error.
	ItemStderr
	// ItemError is an error reported while reading or waiting on the child.
	ItemError
	// ItemTerminated carries the exit status. It is always the last item.
	ItemTerminated
)

// String returns a human-readable kind name.
func (k ItemKind) String() string {
	switch k {
	case ItemStdout:
		return "stdout"
	case ItemStderr:
		return "stderr"
	case ItemError:
		return "error"
	case ItemTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Item is one element of a handle's output channel.
type Item struct {
	Kind ItemKind
	Data string
	Exit event.Exit
}

// Handle is a running child process as seen by the Supervisor.
type Handle interface {
	// PID returns the OS process ID as a decimal string.
	PID() string

	// Kill forcibly terminates the process and its descendants. It may
	// fail if the process has already exited.
	Kill() error

	// Items returns the output channel. Lines from one stream arrive in
	// order, an ItemTerminated item arrives last, and the channel is then
	// closed.
	Items() <-chan Item
}

// DefaultWaitDelay bounds how long a Process keeps reading output after the
// child itself has exited, for descendants that hold its pipes open.
const DefaultWaitDelay = 2 * time.Second

const itemBuffer = 64

// Process is a Handle backed by an exec.Cmd.
//
// Output is split into lines. A final line without a trailing newline is
// delivered when the child exits.
type Process struct {
	cmd     *exec.Cmd
	pid     string
	items   chan Item
	done    chan struct{}
	exited  atomic.Bool
	started time.Time

	stdout *lineWriter
	stderr *lineWriter

	// exit is written once before done is closed.
	exit event.Exit
}

// Start starts cmd and returns a Process tracking it.
//
// Start takes over cmd's Stdout and Stderr and places the child in its own
// process group so Kill reaches its descendants. If cmd.WaitDelay is zero,
// DefaultWaitDelay is used.
func Start(cmd *exec.Cmd) (*Process, error) {
	if cmd.Process != nil {
		return nil, errors.New("process already started")
	}

	p := &Process{
		cmd:   cmd,
		items: make(chan Item, itemBuffer),
		done:  make(chan struct{}),
	}
	p.stdout = &lineWriter{kind: ItemStdout, out: p.items}
	p.stderr = &lineWriter{kind: ItemStderr, out: p.items}

	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	p.pid = strconv.Itoa(cmd.Process.Pid)
	p.started = time.Now()

	go p.waitLoop()

	return p, nil
}

// PID returns the OS process ID.
func (p *Process) PID() string {
	return p.pid
}

// Items returns the output channel.
func (p *Process) Items() <-chan Item {
	return p.items
}

// Done returns a channel that is closed after the last item has been
// queued.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exit returns the exit status. It is only meaningful after Done is closed.
func (p *Process) Exit() event.Exit {
	<-p.done
	return p.exit
}

// Started returns the time the process was started.
func (p *Process) Started() time.Time {
	return p.started
}

// Kill sends SIGKILL to the process group on Unix, or kills the process
// tree on Windows. Returns os.ErrProcessDone if the child has already been
// reaped.
func (p *Process) Kill() error {
	if p.exited.Load() {
		return os.ErrProcessDone
	}
	return killProcessTree(p.cmd.Process)
}

// waitLoop waits for the child to exit, flushes partial lines, and queues
// the final items.
func (p *Process) waitLoop() {
	err := p.cmd.Wait()
	p.exited.Store(true)

	p.stdout.flush()
	p.stderr.flush()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.items <- Item{Kind: ItemError, Data: err.Error()}
	}

	p.exit = exitStatus(p.cmd.ProcessState)
	p.items <- Item{Kind: ItemTerminated, Exit: p.exit}
	close(p.items)
	close(p.done)
}

// lineWriter turns a byte stream into line items. A trailing carriage
// return is stripped from each line.
type lineWriter struct {
	mu   sync.Mutex
	kind ItemKind
	out  chan<- Item
	buf  []byte
}

func (w *lineWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.send(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) == 0 {
		w.buf = nil
	}
	return len(b), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.send(w.buf)
	}
	w.buf = nil
}

func (w *lineWriter) send(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	w.out <- Item{Kind: w.kind, Data: string(line)}
}
