// Package scale drives a serial weighing device.
//
// The scale streams loosely-formatted ASCII frames; the driver strips every
// character except digits and a single decimal point, parses the remainder
// as a non-negative weight in kilograms, and de-duplicates unchanged
// readings so a continuously-streaming device does not flood the gateway
// with identical weight events.
package scale

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/till-bridge/internal/device"
	"github.com/nerrad567/till-bridge/internal/drivers/serialio"
	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
)

// ErrNotConnected is returned when a read is requested but the serial
// transport could not be opened.
var ErrNotConnected = errors.New("scale: device not connected")

// Driver reads weights from a serial scale.
//
// Construction never fails: a transport that cannot be opened is reported
// as an error event and leaves the driver in a not-connected state, so the
// capability stays registered and the process keeps running.
type Driver struct {
	cfg    config.ScaleConfig
	emit   func(device.Event)
	logger device.Logger

	port serialio.Port // nil when the transport failed to open

	// mu serializes ReadWeight callers; the scale is a single physical
	// endpoint and poll/response pairs must not interleave.
	mu sync.Mutex

	// fresh receives the next accepted (non-duplicate) reading while a
	// ReadWeight call is waiting.
	fresh chan float64

	lastMu     sync.RWMutex
	lastWeight float64

	done chan struct{}
	wg   sync.WaitGroup
}

// New constructs the scale driver and opens its serial transport.
//
// An open failure is asynchronous by contract: the returned driver is
// usable (and registrable) but not connected, and an error event is
// emitted for broadcast.
func New(cfg config.ScaleConfig, emit func(device.Event), open serialio.Opener, logger device.Logger) *Driver {
	d := &Driver{
		cfg:    cfg,
		emit:   emit,
		logger: logger,
		fresh:  make(chan float64, 1),
		done:   make(chan struct{}),
	}

	port, err := open(cfg.Port, cfg.Baud)
	if err != nil {
		logger.Error("scale serial port open failed", "port", cfg.Port, "error", err)
		emit(device.Event{
			Kind:    device.EventError,
			Source:  device.CapScale,
			Message: "Scale connection failed: " + err.Error(),
		})
		return d
	}

	// Bounded reads so the loop can notice shutdown.
	_ = port.SetReadTimeout(100 * time.Millisecond)

	d.port = port
	d.wg.Add(1)
	go d.readLoop()

	logger.Info("scale connected", "port", cfg.Port, "baud", cfg.Baud)
	return d
}

// Capability implements device.Driver.
func (d *Driver) Capability() device.Capability { return device.CapScale }

// Close stops the read loop and releases the serial port.
func (d *Driver) Close() error {
	close(d.done)
	var err error
	if d.port != nil {
		err = d.port.Close()
	}
	d.wg.Wait()
	return err
}

// LastWeight returns the last accepted reading in kilograms.
func (d *Driver) LastWeight() float64 {
	d.lastMu.RLock()
	defer d.lastMu.RUnlock()
	return d.lastWeight
}

// ReadWeight polls the scale and waits up to the configured bound for a
// fresh reading. On timeout it resolves with the last known weight rather
// than failing; the only error condition is a missing transport.
func (d *Driver) ReadWeight(ctx context.Context) (float64, error) {
	if d.port == nil {
		return 0, ErrNotConnected
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Drop a reading accepted before this poll so the wait below only
	// resolves with a post-poll value.
	select {
	case <-d.fresh:
	default:
	}

	if _, err := d.port.Write([]byte{d.cfg.PollByte}); err != nil {
		return 0, ErrNotConnected
	}

	timer := time.NewTimer(time.Duration(d.cfg.ReadTimeoutMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case w := <-d.fresh:
		return w, nil
	case <-timer.C:
		return d.LastWeight(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// maxFrame bounds line accumulation for a device that never sends a
// terminator; anything this long without a newline is discarded.
const maxFrame = 256

// readLoop accumulates bytes from the scale and surfaces accepted
// readings line by line.
//
// The serial port is opened with a bounded read timeout, and a timed-out
// read reports (0, nil). An idle scale therefore produces a long run of
// empty reads between weighings; those are not progress failures, just
// the device having nothing to say, so the loop keeps polling until it
// is told to stop or the port reports a real error.
func (d *Driver) readLoop() {
	defer d.wg.Done()

	buf := make([]byte, 64)
	var frame []byte
	for {
		select {
		case <-d.done:
			return
		default:
		}

		n, err := d.port.Read(buf)
		if n > 0 {
			frame = append(frame, buf[:n]...)
			frame = d.consumeLines(frame)
			if len(frame) > maxFrame {
				frame = frame[:0]
			}
		}
		if err != nil {
			select {
			case <-d.done:
			default:
				d.logger.Warn("scale read loop ended", "error", err)
			}
			return
		}
	}
}

// consumeLines feeds every complete newline-terminated line to the
// parser and returns the unconsumed tail.
func (d *Driver) consumeLines(frame []byte) []byte {
	for {
		i := bytes.IndexByte(frame, '\n')
		if i < 0 {
			return frame
		}
		line := string(frame[:i])
		frame = frame[i+1:]
		d.handleLine(line)
	}
}

// handleLine parses one raw line, de-duplicates it against the last
// accepted reading, and publishes a weight event on change.
func (d *Driver) handleLine(line string) {
	weight, ok := parseReading(line)
	if !ok {
		return // malformed frames are dropped silently
	}

	d.lastMu.Lock()
	changed := weight != d.lastWeight
	if changed {
		d.lastWeight = weight
	}
	d.lastMu.Unlock()

	if !changed {
		return
	}

	// Wake a pending ReadWeight, if any.
	select {
	case d.fresh <- weight:
	default:
	}

	d.emit(device.Event{
		Kind:   device.EventWeight,
		Source: device.CapScale,
		Weight: weight,
	})
}

// parseReading extracts a weight from one raw scale line. Every character
// except digits and the first decimal separator is discarded; a comma
// counts as a decimal point. Lines with no digits do not parse.
func parseReading(line string) (float64, bool) {
	var b strings.Builder
	sawPoint := false
	sawDigit := false

	for _, r := range line {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			sawDigit = true
		case (r == '.' || r == ',') && !sawPoint:
			b.WriteByte('.')
			sawPoint = true
		}
	}

	if !sawDigit {
		return 0, false
	}

	value, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
