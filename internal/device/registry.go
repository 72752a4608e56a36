package device

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// eventBufferSize is the registry's event fan-in buffer. A full buffer
// drops the event rather than blocking a driver's read loop.
const eventBufferSize = 64

// Registry holds zero-or-one driver per capability. It is populated at
// startup and read-only afterwards: the gateway server only queries it.
//
// The registry is also the fan-in point for driver events: drivers call
// Publish, the gateway consumes Events() and broadcasts to all sessions.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	drivers map[Capability]Driver

	events    chan Event
	closed    bool
	closeOnce sync.Once
	logger    Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[Capability]Driver),
		events:  make(chan Event, eventBufferSize),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register adds a driver for its capability. Registration happens only
// during startup wiring, before the gateway server starts.
func (r *Registry) Register(d Driver) error {
	cap := d.Capability()
	if !cap.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCapability, cap)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.drivers[cap]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, cap)
	}

	r.drivers[cap] = d
	r.logger.Info("device registered", "capability", cap)
	return nil
}

// Get returns the driver for a capability, or ErrNotAvailable when the
// capability is disabled or failed to construct.
func (r *Registry) Get(cap Capability) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[cap]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotAvailable, cap)
	}
	return d, nil
}

// Available reports whether a capability is present in the registry.
func (r *Registry) Available(cap Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.drivers[cap]
	return ok
}

// Capabilities returns the present capability names in reporting order.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.drivers))
	for _, cap := range AllCapabilities {
		if _, ok := r.drivers[cap]; ok {
			names = append(names, string(cap))
		}
	}
	return names
}

// Status returns the per-capability availability map reported by /status:
// "connected" for registered capabilities, "disabled" otherwise.
func (r *Registry) Status() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]string, len(AllCapabilities))
	for _, cap := range AllCapabilities {
		if _, ok := r.drivers[cap]; ok {
			status[string(cap)] = "connected"
		} else {
			status[string(cap)] = "disabled"
		}
	}
	return status
}

// Count returns the number of registered drivers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

// Publish hands a driver event to the gateway for broadcast. It never
// blocks: when the gateway is not draining fast enough the event is
// dropped, matching the at-most-once delivery contract.
func (r *Registry) Publish(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		// A driver goroutine can outlive Close; its late events have
		// nowhere to go.
		return
	}

	select {
	case r.events <- ev:
	default:
		r.logger.Warn("event buffer full, dropping event", "kind", ev.Kind, "source", ev.Source)
	}
}

// Events returns the stream of driver-originated events.
func (r *Registry) Events() <-chan Event {
	return r.events
}

// Close shuts down every registered driver and closes the event stream.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		// Flip the flag before touching drivers: in-flight Publish
		// calls finish under the read lock, every later one drops, and
		// the channel can then close without racing a driver goroutine
		// that is still winding down.
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		r.mu.RLock()
		defer r.mu.RUnlock()

		for cap, d := range r.drivers {
			if err := d.Close(); err != nil {
				r.logger.Error("error closing device", "capability", cap, "error", err)
			}
		}
		close(r.events)
	})
}
