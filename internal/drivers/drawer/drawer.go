// Package drawer drives a cash drawer solenoid over serial.
//
// The drawer protocol is write-only: a fixed kick sequence (ESC/POS
// "generate pulse" by default) is handed to the transport and there is no
// acknowledgement signal. A successful Open means the bytes reached the
// transport, not that the drawer physically opened.
package drawer

import (
	"errors"
	"sync"

	"github.com/nerrad567/till-bridge/internal/device"
	"github.com/nerrad567/till-bridge/internal/drivers/serialio"
	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
)

// ErrNotConnected is returned when the kick is requested but the serial
// transport could not be opened.
var ErrNotConnected = errors.New("drawer: device not connected")

// Driver sends the kick command to a cash drawer.
type Driver struct {
	kick   []byte
	logger device.Logger

	// mu serializes kicks; overlapping writes would interleave the pulse
	// sequence on the wire.
	mu   sync.Mutex
	port serialio.Port // nil when the transport failed to open
}

// New constructs the drawer driver and opens its serial transport. A
// failed open is reported through emit and leaves the driver registered
// but not connected, matching the other serial drivers.
//
// The kick sequence must already be validated by config; an invalid
// sequence here is a construction error and propagates.
func New(cfg config.DrawerConfig, emit func(device.Event), open serialio.Opener, logger device.Logger) (*Driver, error) {
	kick, err := cfg.KickBytes()
	if err != nil {
		return nil, err
	}

	d := &Driver{
		kick:   kick,
		logger: logger,
	}

	port, err := open(cfg.Port, cfg.Baud)
	if err != nil {
		logger.Error("drawer serial port open failed", "port", cfg.Port, "error", err)
		emit(device.Event{
			Kind:    device.EventError,
			Source:  device.CapDrawer,
			Message: "Drawer connection failed: " + err.Error(),
		})
		return d, nil
	}

	d.port = port
	logger.Info("drawer connected", "port", cfg.Port, "baud", cfg.Baud)
	return d, nil
}

// Capability implements device.Driver.
func (d *Driver) Capability() device.Capability { return device.CapDrawer }

// Close releases the serial port.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

// Open writes the kick sequence to the drawer. It resolves once the write
// completes; there is no read path in this protocol.
func (d *Driver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return ErrNotConnected
	}

	if _, err := d.port.Write(d.kick); err != nil {
		d.logger.Error("drawer kick write failed", "error", err)
		return err
	}

	d.logger.Debug("drawer kick sent", "bytes", len(d.kick))
	return nil
}
