package settings

import "errors"

// Domain errors for settings storage.
var (
	// ErrInvalidKey is returned when a key or prefix is empty or malformed.
	ErrInvalidKey = errors.New("settings: invalid key")

	// ErrSaveFailed is returned when a record cannot be written.
	ErrSaveFailed = errors.New("settings: save failed")

	// ErrLoadFailed is returned when stored records cannot be enumerated.
	ErrLoadFailed = errors.New("settings: load failed")

	// ErrUnknownBackend is returned for an unrecognised backend name.
	ErrUnknownBackend = errors.New("settings: unknown backend")
)
