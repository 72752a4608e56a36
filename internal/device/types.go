package device

// Capability identifies one of the peripheral kinds the gateway can expose.
type Capability string

// Known capabilities.
const (
	CapScale   Capability = "scale"
	CapDrawer  Capability = "drawer"
	CapScanner Capability = "scanner"
	CapPrinter Capability = "printer"
)

// AllCapabilities lists every capability the gateway understands, in the
// order they are reported by /status.
var AllCapabilities = []Capability{CapScale, CapDrawer, CapScanner, CapPrinter}

// Valid reports whether the capability is one of the known kinds.
func (c Capability) Valid() bool {
	switch c {
	case CapScale, CapDrawer, CapScanner, CapPrinter:
		return true
	}
	return false
}

// Label returns the human-readable capability name used in error messages
// ("Scale not available").
func (c Capability) Label() string {
	switch c {
	case CapScale:
		return "Scale"
	case CapDrawer:
		return "Drawer"
	case CapScanner:
		return "Scanner"
	case CapPrinter:
		return "Printer"
	}
	return string(c)
}

// EventKind identifies an asynchronous driver-originated notification.
type EventKind string

// Event kinds. These are session-agnostic: the gateway broadcasts them to
// every open session, uncorrelated to any request.
const (
	EventBarcode EventKind = "barcode"
	EventWeight  EventKind = "weight"
	EventError   EventKind = "error"
)

// Event is a driver-originated notification. Events are ephemeral: never
// persisted, never retried, delivered at-most-once per open session.
type Event struct {
	Kind   EventKind
	Source Capability

	// Barcode carries the scanned code for EventBarcode.
	Barcode string

	// Weight carries the reading in kilograms for EventWeight.
	Weight float64

	// Message carries the description for EventError.
	Message string
}

// Driver is one attached peripheral, keyed by capability. A driver is
// constructed once at startup and owned exclusively by the Registry.
type Driver interface {
	// Capability returns the peripheral kind this driver serves.
	Capability() Capability

	// Close releases the driver's transport. Called once at shutdown.
	Close() error
}
