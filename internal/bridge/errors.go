package bridge

import "errors"

var (
	// ErrUnknownEvent is returned for host events the bridge does not handle.
	ErrUnknownEvent = errors.New("bridge: unknown event type")

	// ErrOutboxFull is returned when commands are produced faster than the
	// broker accepts them.
	ErrOutboxFull = errors.New("bridge: outbox full")

	// ErrNotReady is returned by WaitReady when ctx ends before world_ready.
	ErrNotReady = errors.New("bridge: world not ready")
)
