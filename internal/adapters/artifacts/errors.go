package artifacts

import "errors"

// Sentinel kinds for artifact access errors.
var (
	ErrNotFound     = errors.New("artifact not found")
	ErrInvalidPath  = errors.New("invalid artifact path")
	ErrCircuitOpen  = errors.New("artifact source circuit breaker open")
	ErrUnavailable  = errors.New("artifact source unavailable")
	ErrInvalidSetup = errors.New("invalid artifact source configuration")
)
