package process

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/dshills/scaffoldhost/internal/event"
	"github.com/dshills/scaffoldhost/internal/logging"
)

// Supervisor starts child processes, relays their output to a sink, and
// kills whatever is still running at shutdown.
//
// Supervisor is safe for concurrent use.
type Supervisor struct {
	registry *Registry
	launcher Launcher
	sink     event.Sink
	logger   *logging.Logger

	// closed is set before the registry is drained.
	closed       atomic.Bool
	shutdownOnce sync.Once

	monitors conc.WaitGroup
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithSink sets the sink that receives output and termination events.
// The default discards them.
func WithSink(sink event.Sink) SupervisorOption {
	return func(s *Supervisor) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLauncher replaces the default ExecLauncher.
func WithLauncher(l Launcher) SupervisorOption {
	return func(s *Supervisor) {
		if l != nil {
			s.launcher = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSupervisor creates a new process supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		registry: NewRegistry(),
		launcher: NewExecLauncher(DefaultLauncherConfig()),
		sink:     event.Discard,
		logger:   logging.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("supervisor")

	return s
}

// Spawn starts the child described by req and returns its PID without
// waiting for it to finish.
//
// Failures are reported as *SpawnError and leave nothing registered. Once
// Shutdown has begun, Spawn fails with an error wrapping
// ErrSupervisorShutdown.
func (s *Supervisor) Spawn(ctx context.Context, req SpawnRequest) (string, error) {
	if s.closed.Load() {
		return "", newSpawnError("cannot spawn process", ErrSupervisorShutdown)
	}

	h, err := s.launcher.Launch(ctx, req)
	if err != nil {
		s.logger.WithField("workdir", req.WorkDir).Warn("spawn failed: %v", err)
		var se *SpawnError
		if errors.As(err, &se) {
			return "", se
		}
		return "", newSpawnError("failed to spawn process", err)
	}

	if err := s.track(h); err != nil {
		return "", err
	}

	s.logger.WithFields(map[string]any{
		"pid":      h.PID(),
		"language": string(req.Language),
		"workdir":  req.WorkDir,
	}).Info("process spawned")

	return h.PID(), nil
}

// track registers a started handle and starts its monitor.
//
// If Shutdown began while the child was starting, the handle is either
// already drained (Shutdown kills it) or still registered, in which case
// track removes and kills it. Exactly one of the two does the kill.
func (s *Supervisor) track(h Handle) error {
	pid := h.PID()

	if err := s.registry.Insert(pid, h); err != nil {
		_ = h.Kill()
		go drain(h.Items())
		return newSpawnError("failed to register process "+pid, err)
	}

	s.monitors.Go(func() { s.monitor(h) })

	if s.closed.Load() {
		if s.registry.CompareAndRemove(pid, h) {
			if err := h.Kill(); err != nil {
				s.logger.WithField("pid", pid).Debug("kill after shutdown: %v", err)
			}
		}
		return newSpawnError("cannot spawn process", ErrSupervisorShutdown)
	}

	return nil
}

// monitor forwards h's items to the sink and removes h from the registry
// once the child has terminated.
func (s *Supervisor) monitor(h Handle) {
	pid := h.PID()
	defer s.registry.CompareAndRemove(pid, h)

	for item := range h.Items() {
		switch item.Kind {
		case ItemStdout:
			s.emit(event.NewOutputEvent(pid, event.Stdout, item.Data))
		case ItemStderr, ItemError:
			s.emit(event.NewOutputEvent(pid, event.Stderr, item.Data))
		case ItemTerminated:
			s.emit(event.NewTerminationEvent(pid, item.Exit))
			s.logger.WithFields(map[string]any{
				"pid":    pid,
				"code":   item.Exit.CodeString(),
				"signal": item.Exit.SignalString(),
			}).Info("process exited")
			return
		}
	}

	s.logger.WithField("pid", pid).Debug("output closed without exit status")
}

// emit delivers e, recovering from a panicking sink.
func (s *Supervisor) emit(e event.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("pid", e.ProcessID()).Error("event sink panic: %v\n%s", r, debug.Stack())
		}
	}()
	s.sink.Emit(e)
}

// Kill terminates the process registered under pid. Unknown PIDs,
// including ones that already exited, are ignored.
func (s *Supervisor) Kill(pid string) {
	h, ok := s.registry.Remove(pid)
	if !ok {
		s.logger.WithField("pid", pid).Debug("kill: process not found")
		return
	}

	if err := h.Kill(); err != nil {
		s.logger.WithField("pid", pid).Debug("kill: %v", err)
		return
	}
	s.logger.WithField("pid", pid).Info("process killed")
}

// Shutdown kills every registered process and refuses further spawns.
// Only the first call has any effect; it returns the number of processes
// it killed. Shutdown does not wait for monitors; use Wait for that.
func (s *Supervisor) Shutdown() int {
	n := 0
	s.shutdownOnce.Do(func() {
		s.closed.Store(true)

		handles := s.registry.DrainAll()
		n = len(handles)

		p := pool.New()
		for _, h := range handles {
			p.Go(func() {
				if err := h.Kill(); err != nil {
					s.logger.WithField("pid", h.PID()).Debug("shutdown kill: %v", err)
				}
			})
		}
		p.Wait()

		s.logger.Info("shutdown complete, killed %d process(es)", n)
	})
	return n
}

// Closed reports whether Shutdown has been called.
func (s *Supervisor) Closed() bool {
	return s.closed.Load()
}

// Count returns the number of registered processes.
func (s *Supervisor) Count() int {
	return s.registry.Len()
}

// PIDs returns the registered PIDs in sorted order.
func (s *Supervisor) PIDs() []string {
	return s.registry.PIDs()
}

// Running reports whether pid is registered.
func (s *Supervisor) Running(pid string) bool {
	return s.registry.Contains(pid)
}

// Wait blocks until every monitor has returned. Call it after Shutdown,
// or once no further Spawn calls can happen.
func (s *Supervisor) Wait() {
	s.monitors.Wait()
}

func drain(items <-chan Item) {
	for range items {
	}
}
