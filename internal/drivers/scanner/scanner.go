// Package scanner captures barcodes from a keyboard-wedge (HID) scanner.
//
// In an interactive terminal the scanner types like a very fast keyboard:
// characters accumulate in a buffer that is flushed as one barcode either
// by an explicit carriage return or by a quiet window elapsing with no
// further characters (covering scanners that do not send Enter). The
// termination logic is an explicit idle/accumulating state machine with a
// single re-armable timer, so each physical scan produces exactly one
// barcode event regardless of which termination style the hardware uses.
//
// Without an interactive terminal (piped input, service deployment) the
// driver falls back to line mode: each trimmed, non-empty input line is a
// barcode.
package scanner

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/nerrad567/till-bridge/internal/device"
	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
)

// Mode selects how scanner input is interpreted.
type Mode int

// Input modes. ModeAuto picks raw when the input is a terminal.
const (
	ModeAuto Mode = iota
	ModeRaw
	ModeLine
)

// etx is the Ctrl-C byte. In raw terminal mode the kernel no longer turns
// it into SIGINT, so the driver restores that behaviour itself.
const etx = 0x03

// Driver reassembles scanner keystrokes into barcode events.
type Driver struct {
	debounce time.Duration
	emit     func(device.Event)
	logger   device.Logger

	input     io.Reader
	mode      Mode
	raw       bool
	interrupt func()
	restore   func()

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option customises the driver; used by tests to inject input.
type Option func(*Driver)

// WithInput replaces the input stream (default os.Stdin).
func WithInput(r io.Reader) Option {
	return func(d *Driver) { d.input = r }
}

// WithMode forces raw or line interpretation (default auto-detect).
func WithMode(m Mode) Option {
	return func(d *Driver) { d.mode = m }
}

// WithInterrupt replaces the Ctrl-C handler (default: signal this process).
func WithInterrupt(fn func()) Option {
	return func(d *Driver) { d.interrupt = fn }
}

// New constructs the scanner driver and starts its input loop.
func New(cfg config.ScannerConfig, emit func(device.Event), logger device.Logger, opts ...Option) *Driver {
	d := &Driver{
		debounce:  time.Duration(cfg.DebounceMs) * time.Millisecond,
		emit:      emit,
		logger:    logger,
		input:     os.Stdin,
		interrupt: signalSelf,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	switch d.mode {
	case ModeRaw:
		d.raw = true
	case ModeLine:
		d.raw = false
	case ModeAuto:
		if f, ok := d.input.(*os.File); ok {
			d.raw = term.IsTerminal(int(f.Fd()))
		}
	}

	if d.raw {
		if f, ok := d.input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			state, err := term.MakeRaw(int(f.Fd()))
			if err != nil {
				logger.Warn("raw terminal mode unavailable, using line mode", "error", err)
				d.raw = false
			} else {
				d.restore = func() { _ = term.Restore(int(f.Fd()), state) }
			}
		}
	}

	d.wg.Add(1)
	if d.raw {
		go d.runRaw()
		logger.Info("scanner listening", "mode", "raw", "debounce", d.debounce)
	} else {
		go d.runLine()
		logger.Info("scanner listening", "mode", "line")
	}

	return d
}

// Capability implements device.Driver.
func (d *Driver) Capability() device.Capability { return device.CapScanner }

// Close restores the terminal and stops the input loop. The loop itself
// may stay blocked in a stdin read until process exit; it is detached
// rather than awaited to keep shutdown prompt.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
		if d.restore != nil {
			d.restore()
		}
	})
	return nil
}

// runRaw reassembles the keystroke stream with the idle/accumulating
// state machine. The quiet-window timer is re-armed on every character;
// when it fires with a non-empty buffer the buffer is one barcode.
func (d *Driver) runRaw() {
	defer d.wg.Done()

	chars := make(chan byte, 256)
	go d.pumpBytes(chars)

	var buf []byte
	timer := time.NewTimer(d.debounce)
	stopTimer(timer)
	var quiet <-chan time.Time // nil while idle

	flush := func() {
		if len(buf) == 0 {
			return
		}
		d.emit(device.Event{
			Kind:    device.EventBarcode,
			Source:  device.CapScanner,
			Barcode: string(buf),
		})
		buf = buf[:0]
	}

	for {
		select {
		case <-d.done:
			return

		case c, ok := <-chars:
			if !ok {
				flush()
				return
			}
			switch {
			case c == etx:
				d.interrupt()
			case c == '\r' || c == '\n':
				// Explicit terminator: flush immediately, back to idle.
				stopTimer(timer)
				quiet = nil
				flush()
			default:
				buf = append(buf, c)
				stopTimer(timer)
				timer.Reset(d.debounce)
				quiet = timer.C
			}

		case <-quiet:
			// Quiet window elapsed mid-accumulation: the scan is over
			// even though no Enter arrived.
			quiet = nil
			flush()
		}
	}
}

// pumpBytes feeds raw input bytes to the state machine.
func (d *Driver) pumpBytes(chars chan<- byte) {
	defer close(chars)

	buf := make([]byte, 64)
	for {
		n, err := d.input.Read(buf)
		for i := 0; i < n; i++ {
			select {
			case chars <- buf[i]:
			case <-d.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// runLine emits each trimmed, non-empty input line verbatim.
func (d *Driver) runLine() {
	defer d.wg.Done()

	in := bufio.NewScanner(d.input)
	for in.Scan() {
		select {
		case <-d.done:
			return
		default:
		}

		code := strings.TrimSpace(in.Text())
		if code == "" {
			continue
		}
		d.emit(device.Event{
			Kind:    device.EventBarcode,
			Source:  device.CapScanner,
			Barcode: code,
		})
	}
}

// stopTimer stops a timer and drains its channel so Reset re-arms cleanly.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// signalSelf delivers an interrupt to this process, mirroring what the
// terminal driver would have done outside raw mode.
func signalSelf() {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}
	_ = p.Signal(os.Interrupt)
}
