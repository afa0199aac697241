// Package bridge implements the native API the embedded client calls.
//
// The client sends an operation name, a list of string arguments, and an
// optional byte payload; it receives a list of strings or an error. The
// Dispatcher routes each operation to a collaborator: the process
// supervisor, the filesystem, runtime discovery, a chooser for directory
// and save dialogs, and the remote version check.
//
// Process output flows the other way. Relay is an event.Sink that encodes
// supervisor events into the client's wire payloads and hands them to an
// Emitter supplied by the transport.
package bridge
