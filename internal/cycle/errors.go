package cycle

import "errors"

// Domain errors for the cycle package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, cycle.ErrEmptyValues) {
//	    // refuse to create the instance
//	}
var (
	// ErrInvalidTable is returned when a value table fails validation.
	ErrInvalidTable = errors.New("cycle: invalid value table")

	// ErrEmptyValues is returned when a value table has no values.
	ErrEmptyValues = errors.New("cycle: value list is empty")

	// ErrDuplicateKey is returned when two controllers share a storage key.
	ErrDuplicateKey = errors.New("cycle: duplicate storage key")

	// ErrUnknownInstance is returned when a restored record names no registered controller.
	ErrUnknownInstance = errors.New("cycle: unknown instance")

	// ErrAlreadyRestored is returned when a controller is restored more than once.
	ErrAlreadyRestored = errors.New("cycle: already restored")

	// ErrTargetUnready is reported when the attribute target is absent or not ready.
	ErrTargetUnready = errors.New("cycle: target not ready")

	// ErrMalformedRecord is reported when a restored record has the wrong size.
	ErrMalformedRecord = errors.New("cycle: malformed state record")

	// ErrIndexOutOfRange is reported when a restored index does not fit the value table.
	ErrIndexOutOfRange = errors.New("cycle: restored index out of range")
)
