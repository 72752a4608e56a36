package drawer

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/till-bridge/internal/device"
	"github.com/nerrad567/till-bridge/internal/drivers/serialio"
	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
)

type fakePort struct {
	mu       sync.Mutex
	written  []byte
	writeErr error
	closed   bool
}

func (p *fakePort) Read([]byte) (int, error) { return 0, nil }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

func defaultConfig() config.DrawerConfig {
	return config.DrawerConfig{
		Port:         "/dev/fake",
		Baud:         9600,
		KickSequence: []string{"1B", "70", "00", "19", "FA"},
	}
}

func TestOpen_WritesKickSequence(t *testing.T) {
	port := &fakePort{}
	opener := func(string, int) (serialio.Port, error) { return port, nil }

	d, err := New(defaultConfig(), func(device.Event) {}, opener, testLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	want := []byte{0x1B, 0x70, 0x00, 0x19, 0xFA}
	if !bytes.Equal(port.written, want) {
		t.Errorf("written = %#v, want %#v", port.written, want)
	}
}

func TestOpen_NotConnected(t *testing.T) {
	events := make(chan device.Event, 1)
	opener := func(string, int) (serialio.Port, error) {
		return nil, errors.New("no such device")
	}

	d, err := New(defaultConfig(), func(ev device.Event) { events <- ev }, opener, testLogger{})
	if err != nil {
		t.Fatalf("New() error = %v, want nil (open failure is asynchronous)", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != device.EventError || ev.Source != device.CapDrawer {
			t.Errorf("event = %+v, want drawer error event", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no error event emitted for failed open")
	}

	if err := d.Open(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Open() error = %v, want ErrNotConnected", err)
	}
}

func TestOpen_WriteErrorSurfaces(t *testing.T) {
	port := &fakePort{writeErr: errors.New("input/output error")}
	opener := func(string, int) (serialio.Port, error) { return port, nil }

	d, err := New(defaultConfig(), func(device.Event) {}, opener, testLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := d.Open(); err == nil {
		t.Error("Open() error = nil, want transport write error")
	}
}

func TestNew_InvalidKickSequence(t *testing.T) {
	cfg := defaultConfig()
	cfg.KickSequence = []string{"zz"}

	_, err := New(cfg, func(device.Event) {}, func(string, int) (serialio.Port, error) {
		return &fakePort{}, nil
	}, testLogger{})
	if err == nil {
		t.Error("New() error = nil, want kick sequence parse error")
	}
}

func TestClose_ReleasesPort(t *testing.T) {
	port := &fakePort{}
	opener := func(string, int) (serialio.Port, error) { return port, nil }

	d, err := New(defaultConfig(), func(device.Event) {}, opener, testLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}

	if err := d.Open(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Open() after Close error = %v, want ErrNotConnected", err)
	}
}
