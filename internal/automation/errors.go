package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrAutomationVetoed) {
//	    // tell the caller another plugin blocked it
//	}
var (
	// ErrVehicleNotFound is returned when the host has no such vehicle.
	ErrVehicleNotFound = errors.New("automation: vehicle not found")

	// ErrAlreadyAutomated is returned when automating an automated vehicle.
	ErrAlreadyAutomated = errors.New("automation: vehicle already automated")

	// ErrNotAutomated is returned when deautomating a manual vehicle.
	ErrNotAutomated = errors.New("automation: vehicle not automated")

	// ErrAutomationVetoed is returned when a veto hook blocked automation.
	ErrAutomationVetoed = errors.New("automation: vetoed")

	// ErrBlanketAutomation is returned when toggling while every vehicle
	// is automated by configuration.
	ErrBlanketAutomation = errors.New("automation: all vehicles are automated")

	// ErrAvatarUnavailable is returned when the operator avatar could not
	// be spawned or seated.
	ErrAvatarUnavailable = errors.New("automation: operator avatar unavailable")
)
