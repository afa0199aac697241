package bridge

import "errors"

var (
	// ErrInvalidOperation is returned for an operation name the dispatcher
	// does not know.
	ErrInvalidOperation = errors.New("invalid native API operation")

	// ErrMissingArgument is returned when an operation is called with too
	// few arguments.
	ErrMissingArgument = errors.New("missing argument")
)
