package trigger

import "errors"

// Domain errors for the trigger package.
var (
	// ErrNotFound is returned when a trigger id does not exist.
	ErrNotFound = errors.New("trigger: not found")

	// ErrExists is returned when adding a trigger with an id already in use.
	ErrExists = errors.New("trigger: already exists")

	// ErrInvalidID is returned for negative ids.
	ErrInvalidID = errors.New("trigger: invalid id")

	// ErrInvalidOption is returned when a command option is not a speed,
	// branch or "start".
	ErrInvalidOption = errors.New("trigger: invalid option")

	// ErrNotLoaded is returned when mutating before a map has been loaded.
	ErrNotLoaded = errors.New("trigger: no map loaded")
)
