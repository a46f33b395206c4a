package engine

import "errors"

// Domain-specific errors for the engine.
var (
	ErrNotRunning     = errors.New("engine: not running")
	ErrAlreadyRunning = errors.New("engine: already running")
	ErrMissingDep     = errors.New("engine: missing dependency")
	ErrNoTrack        = errors.New("engine: no track position")
	ErrNoVehicle      = errors.New("engine: no vehicle")
)
