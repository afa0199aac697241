// Package process supervises the build and run processes launched on behalf
// of the client.
//
// A Supervisor starts a child through a Launcher, registers the resulting
// Handle under its PID, and returns the PID to the caller without waiting.
// One monitor goroutine per child forwards the child's output and final
// exit status to an event.Sink, then removes the child from the Registry.
//
// # Supervisor
//
//	sup := process.NewSupervisor(process.WithSink(sink))
//	defer sup.Shutdown()
//
//	pid, err := sup.Spawn(ctx, process.SpawnRequest{
//	    WorkDir: "/path/to/scaffold",
//	    Args:    []string{"run", "-x", "test"},
//	})
//	if err != nil {
//	    return err
//	}
//
//	// Later, from any goroutine:
//	sup.Kill(pid)
//
// # Shutdown
//
// Shutdown runs at most once. It atomically takes every registered handle
// out of the Registry and kills each one, so no child started by the
// Supervisor outlives the host. A Spawn that races Shutdown either has its
// child drained by Shutdown or kills the child itself; the child is never
// left running and never killed twice.
//
// # Ordering
//
// For a single PID, lines from the same stream are emitted in the order the
// child wrote them, and the TerminationEvent is emitted last. There is no
// ordering across PIDs.
//
// # Thread Safety
//
// Supervisor, Registry, and Process are safe for concurrent use.
package process
