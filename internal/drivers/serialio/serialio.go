// Package serialio wraps go.bug.st/serial behind a small Port interface so
// device drivers can be tested with in-memory fakes.
package serialio

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of a serial port the drivers use.
type Port interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds blocking reads. A zero duration means
	// non-blocking, a negative one blocks forever.
	SetReadTimeout(t time.Duration) error
}

// Opener opens a serial port at a device path and baud rate. Drivers take
// an Opener at construction; production code passes Open, tests pass a
// fake factory.
type Opener func(path string, baud int) (Port, error)

// Open opens a real serial port with 8N1 framing, the convention for every
// peripheral this gateway drives.
func Open(path string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(path, mode)
}
