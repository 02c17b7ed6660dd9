package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device ID does not exist or has been deleted.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating a device with an ID that already exists.
	ErrExists = errors.New("device: already exists")

	// ErrInvalid is returned when device validation fails. Specific
	// validation failures wrap this sentinel with detail.
	ErrInvalid = errors.New("device: invalid")

	// ErrInvalidType is returned when a device type is not recognised.
	ErrInvalidType = errors.New("device: invalid type")

	// ErrInvalidStatus is returned when a status value is not in the
	// type's vocabulary.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrInvalidParameters is returned when parameter validation fails.
	ErrInvalidParameters = errors.New("device: invalid parameters")

	// ErrStorage is returned when the record store fails or times out.
	// The in-memory state is rolled back before this is surfaced.
	ErrStorage = errors.New("device: storage failure")

	// ErrStaleEvent is returned when an event carries a sequence hint
	// older than the device's current version. The event is discarded
	// without side effects.
	ErrStaleEvent = errors.New("device: stale event")

	// ErrIncompleteDescriptor is returned when an event references an
	// unknown device but does not carry the full descriptor needed to
	// register it implicitly.
	ErrIncompleteDescriptor = errors.New("device: incomplete descriptor")

	// ErrConflict is reserved for concurrent-write detection.
	// Per-device serialization currently prevents it from occurring.
	ErrConflict = errors.New("device: conflict")
)
