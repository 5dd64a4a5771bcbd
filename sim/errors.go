package sim

import "errors"

// Setup and lifecycle errors. Callers match them with errors.Is; the
// returned errors carry the offending values as context.
var (
	ErrMissingField     = errors.New("sim: vector field missing")
	ErrInvalidDimension = errors.New("sim: invalid dimension")
	ErrResourceLimit    = errors.New("sim: resource limit exceeded")
	ErrNotInitialized   = errors.New("sim: not initialized")
	ErrDisposed         = errors.New("sim: disposed")
)
