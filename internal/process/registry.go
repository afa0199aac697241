package process

import (
	"sort"
	"sync"
)

// Registry maps PIDs to live handles.
//
// Every operation holds the lock only for a map access; DrainAll swaps the
// whole map out. Nothing blocking ever runs under the lock.
type Registry struct {
	mu      sync.Mutex
	handles map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Insert registers h under pid.
// Returns ErrDuplicatePID if pid is already present.
func (r *Registry) Insert(pid string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[pid]; exists {
		return ErrDuplicatePID
	}
	r.handles[pid] = h
	return nil
}

// Remove atomically removes and returns the handle for pid.
// When several callers race, exactly one gets the handle.
func (r *Registry) Remove(pid string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[pid]
	if ok {
		delete(r.handles, pid)
	}
	return h, ok
}

// CompareAndRemove removes the entry for pid only if it is still h.
func (r *Registry) CompareAndRemove(pid string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.handles[pid]
	if !ok || cur != h {
		return false
	}
	delete(r.handles, pid)
	return true
}

// DrainAll atomically replaces the contents with an empty map and returns
// every handle that was registered.
func (r *Registry) DrainAll() []Handle {
	fresh := make(map[string]Handle)

	r.mu.Lock()
	old := r.handles
	r.handles = fresh
	r.mu.Unlock()

	out := make([]Handle, 0, len(old))
	for _, h := range old {
		out = append(out, h)
	}
	return out
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Contains reports whether pid is registered.
func (r *Registry) Contains(pid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[pid]
	return ok
}

// PIDs returns a sorted snapshot of the registered PIDs.
func (r *Registry) PIDs() []string {
	r.mu.Lock()
	pids := make([]string, 0, len(r.handles))
	for pid := range r.handles {
		pids = append(pids, pid)
	}
	r.mu.Unlock()

	sort.Strings(pids)
	return pids
}
