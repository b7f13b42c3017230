package target

import "errors"

var (
	// ErrNoDevice is returned when a device name is empty.
	ErrNoDevice = errors.New("target: device name is required")

	// ErrUnavailable is returned by SetAttribute while the device is not ready.
	ErrUnavailable = errors.New("target: device unavailable")
)
