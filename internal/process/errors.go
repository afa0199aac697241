package process

import "errors"

// Sentinel errors.
var (
	// ErrSupervisorShutdown is returned by Spawn once shutdown has begun.
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")

	// ErrDuplicatePID is returned when a PID is already registered.
	ErrDuplicatePID = errors.New("process ID already registered")

	// ErrUnsupportedLanguage is returned for a SpawnRequest language that
	// has no launcher.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrMissingWorkDir is returned when a SpawnRequest has no working
	// directory.
	ErrMissingWorkDir = errors.New("working directory is required")
)

// SpawnError reports a failure to start a child process. Message is the
// human-readable text returned to the client; Err is the underlying cause.
type SpawnError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

func newSpawnError(msg string, err error) *SpawnError {
	return &SpawnError{Message: msg, Err: err}
}
