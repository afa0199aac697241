package process

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/scaffoldhost/internal/event"
)

// waitFor polls cond until it returns true or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// fakeHandle is a Handle whose items are driven by the test.
type fakeHandle struct {
	pid   string
	items chan Item
	kills atomic.Int32
	once  sync.Once
}

func newFakeHandle(pid string) *fakeHandle {
	return &fakeHandle{pid: pid, items: make(chan Item, 16)}
}

func (h *fakeHandle) PID() string        { return h.pid }
func (h *fakeHandle) Items() <-chan Item { return h.items }

func (h *fakeHandle) Kill() error {
	h.kills.Add(1)
	h.terminate(event.ExitSignal(9))
	return nil
}

func (h *fakeHandle) send(kind ItemKind, data string) {
	h.items <- Item{Kind: kind, Data: data}
}

func (h *fakeHandle) terminate(exit event.Exit) {
	h.once.Do(func() {
		h.items <- Item{Kind: ItemTerminated, Exit: exit}
		close(h.items)
	})
}

// fakeLauncher hands out fake handles with increasing PIDs.
type fakeLauncher struct {
	mu      sync.Mutex
	next    int
	handles []*fakeHandle
	pids    []string
}

func (l *fakeLauncher) Launch(context.Context, SpawnRequest) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pid string
	if len(l.pids) > 0 {
		pid, l.pids = l.pids[0], l.pids[1:]
	} else {
		l.next++
		pid = fmt.Sprintf("%d", 1000+l.next)
	}

	h := newFakeHandle(pid)
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *fakeLauncher) all() []*fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeHandle(nil), l.handles...)
}

func (l *fakeLauncher) last() *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[len(l.handles)-1]
}
