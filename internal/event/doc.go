// Package event defines the events produced by supervised child processes
// and the sinks that deliver them.
//
// The supervisor never waits on delivery. Every event passes through a
// [Sink], whose single Emit method has no error return: a sink that cannot
// reach its observer drops the event. Output and termination events are
// tagged with the stringified PID of the process that produced them.
//
// # Topics
//
// Events use dot-separated topics:
//
//	child-process.stdout    - a line written to standard output
//	child-process.stderr    - a line written to standard error
//	child-process.exit      - the process terminated
//
// [Bus] subscriptions accept the wildcards "*" (one segment) and "**"
// (any number of trailing segments).
//
// # Sinks
//
//   - [SinkFunc]: adapts a function
//   - [Discard]: drops everything
//   - [Fanout]: delivers to several sinks in order
//   - [ChannelSink]: non-blocking send into a buffered channel
//   - [Bus]: topic-based fan-out with panic isolation
//   - [Recorder]: collects events, for tests
//
// # Thread Safety
//
// All sinks in this package are safe for concurrent use.
package event
