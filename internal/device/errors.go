package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotAvailable) {
//	    // capability absent from the registry
//	}
var (
	// ErrNotAvailable is returned when a command references a capability
	// that is not present in the registry.
	ErrNotAvailable = errors.New("device: capability not available")

	// ErrInvalidCapability is returned when a capability value is not recognised.
	ErrInvalidCapability = errors.New("device: invalid capability")

	// ErrAlreadyRegistered is returned when a second driver is registered
	// for a capability that already has one. The gateway does not arbitrate
	// between multiple same-type devices.
	ErrAlreadyRegistered = errors.New("device: capability already registered")
)
