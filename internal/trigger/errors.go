package trigger

import "errors"

var (
	// ErrInvalidPayload is returned for a trigger message that carries no step.
	ErrInvalidPayload = errors.New("trigger: invalid payload")

	// ErrUnknownCycler is returned for a trigger naming no registered cycler.
	ErrUnknownCycler = errors.New("trigger: unknown cycler")

	// ErrQueueFull is returned when a trigger arrives while the worker is backlogged.
	ErrQueueFull = errors.New("trigger: queue full")

	// ErrStopped is returned for a trigger delivered after Stop.
	ErrStopped = errors.New("trigger: source stopped")
)
