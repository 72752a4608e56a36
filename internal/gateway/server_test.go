package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/till-bridge/internal/device"
	"github.com/nerrad567/till-bridge/internal/drivers/printer"
	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
	"github.com/nerrad567/till-bridge/internal/infrastructure/logging"
)

type fakeDrawer struct {
	opened int
	err    error
}

func (f *fakeDrawer) Capability() device.Capability { return device.CapDrawer }
func (f *fakeDrawer) Close() error                  { return nil }
func (f *fakeDrawer) Open() error {
	f.opened++
	return f.err
}

type fakeScale struct {
	weight float64
	err    error
}

func (f *fakeScale) Capability() device.Capability { return device.CapScale }
func (f *fakeScale) Close() error                  { return nil }
func (f *fakeScale) ReadWeight(context.Context) (float64, error) {
	return f.weight, f.err
}

type fakePrinterDriver struct {
	receipts  []printer.Receipt
	cashClose []printer.CashClose
	err       error
}

func (f *fakePrinterDriver) Capability() device.Capability { return device.CapPrinter }
func (f *fakePrinterDriver) Close() error                  { return nil }
func (f *fakePrinterDriver) PrintReceipt(doc printer.Receipt) error {
	f.receipts = append(f.receipts, doc)
	return f.err
}
func (f *fakePrinterDriver) PrintCashClose(report printer.CashClose) error {
	f.cashClose = append(f.cashClose, report)
	return f.err
}

// testServer creates a Server with the given drivers registered.
func testServer(t *testing.T, drivers ...device.Driver) (*Server, *device.Registry) {
	t.Helper()

	registry := device.NewRegistry()
	for _, drv := range drivers {
		if err := registry.Register(drv); err != nil {
			t.Fatalf("Register(%s): %v", drv.Capability(), err)
		}
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.GatewayConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.GatewayTimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
			WebSocket: config.WebSocketConfig{
				Path:           "/ws",
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Security: config.SecurityConfig{AllowedOrigins: []string{"http://localhost"}},
		Logger:   log,
		Registry: registry,
		Version:  "test",
		ListPrinters: func() []printer.Info {
			return []printer.Info{{Name: "TM-T20", Port: "usb://EPSON/TM-T20"}}
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv, registry
}

func decodeReply(t *testing.T, msg *Message) Message {
	t.Helper()
	if msg == nil {
		t.Fatal("expected a direct reply, got nil")
	}
	return *msg
}

func TestHandleCommandOpenDrawer(t *testing.T) {
	drawer := &fakeDrawer{}
	srv, _ := testServer(t, drawer)

	got := decodeReply(t, srv.handleCommand(Command{Action: ActionOpenDrawer}))
	if got.Type != TypeDrawerOpened || got.Success == nil || !*got.Success {
		t.Fatalf("reply = %+v, want drawerOpened success", got)
	}
	if drawer.opened != 1 {
		t.Fatalf("opened = %d, want 1", drawer.opened)
	}
}

func TestHandleCommandMissingCapability(t *testing.T) {
	srv, _ := testServer(t, &fakeDrawer{})

	got := decodeReply(t, srv.handleCommand(Command{Action: ActionReadWeight}))
	if got.Type != TypeError || got.Message != "Scale not available" {
		t.Fatalf("reply = %+v, want Scale not available error", got)
	}
}

func TestHandleCommandReadWeight(t *testing.T) {
	srv, _ := testServer(t, &fakeScale{weight: 0.452})

	got := decodeReply(t, srv.handleCommand(Command{Action: ActionReadWeight}))
	if got.Type != TypeWeight || got.Weight == nil || *got.Weight != 0.452 {
		t.Fatalf("reply = %+v, want weight 0.452", got)
	}
}

func TestHandleCommandReadWeightFailure(t *testing.T) {
	srv, _ := testServer(t, &fakeScale{err: errors.New("port gone")})

	got := decodeReply(t, srv.handleCommand(Command{Action: ActionReadWeight}))
	if got.Type != TypeError {
		t.Fatalf("reply = %+v, want error", got)
	}
}

func TestHandleCommandStatus(t *testing.T) {
	srv, _ := testServer(t, &fakeDrawer{}, &fakeScale{})

	got := decodeReply(t, srv.handleCommand(Command{Action: ActionGetStatus}))
	if got.Type != TypeStatus {
		t.Fatalf("type = %q, want status", got.Type)
	}
	want := map[string]string{
		"scale":   "connected",
		"drawer":  "connected",
		"scanner": "disabled",
		"printer": "disabled",
	}
	for cap, state := range want {
		if got.Status[cap] != state {
			t.Errorf("status[%s] = %q, want %q", cap, got.Status[cap], state)
		}
	}
}

func TestHandleCommandPrintReceipt(t *testing.T) {
	prn := &fakePrinterDriver{}
	srv, _ := testServer(t, prn)

	data, _ := json.Marshal(printer.Receipt{ShopName: "Mercearia", Total: 90}) //nolint:errcheck
	got := decodeReply(t, srv.handleCommand(Command{Action: ActionPrintReceipt, Data: data}))
	if got.Type != TypeReceiptPrinted || got.Success == nil || !*got.Success {
		t.Fatalf("reply = %+v, want receiptPrinted success", got)
	}
	if len(prn.receipts) != 1 || prn.receipts[0].ShopName != "Mercearia" {
		t.Fatalf("receipts = %+v", prn.receipts)
	}
}

func TestHandleCommandPrintReceiptBadPayload(t *testing.T) {
	srv, _ := testServer(t, &fakePrinterDriver{})

	got := decodeReply(t, srv.handleCommand(Command{Action: ActionPrintReceipt, Data: json.RawMessage(`"nope"`)}))
	if got.Type != TypeError {
		t.Fatalf("reply = %+v, want error for bad payload", got)
	}
}

func TestHandleCommandListPrinters(t *testing.T) {
	srv, _ := testServer(t)

	got := decodeReply(t, srv.handleCommand(Command{Action: ActionListPrinters}))
	if got.Type != TypePrinterList || len(got.Printers) != 1 || got.Printers[0].Name != "TM-T20" {
		t.Fatalf("reply = %+v, want one printer entry", got)
	}
}

func TestHandleCommandUnknownAction(t *testing.T) {
	srv, _ := testServer(t)

	got := decodeReply(t, srv.handleCommand(Command{Action: "reticulateSplines"}))
	if got.Type != TypeError || !strings.Contains(got.Message, "unknown action") {
		t.Fatalf("reply = %+v, want unknown action error", got)
	}
}

func TestHandleCommandSimulateBarcode(t *testing.T) {
	srv, registry := testServer(t)

	if msg := srv.handleCommand(Command{Action: ActionSimulateBarcode, Data: json.RawMessage(`{"barcode":"7891000100103"}`)}); msg != nil {
		t.Fatalf("simulate must have no direct reply, got %+v", msg)
	}

	select {
	case ev := <-registry.Events():
		if ev.Kind != device.EventBarcode || ev.Barcode != "7891000100103" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestHandleCommandSimulateBarcodeEmpty(t *testing.T) {
	srv, _ := testServer(t)

	got := decodeReply(t, srv.handleCommand(Command{Action: ActionSimulateBarcode, Data: json.RawMessage(`{}`)}))
	if got.Type != TypeError {
		t.Fatalf("reply = %+v, want error for empty barcode", got)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := testServer(t, &fakeDrawer{})

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status  string            `json:"status"`
		Version string            `json:"version"`
		Devices map[string]string `json:"devices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Version != "test" {
		t.Fatalf("body = %+v", body)
	}
	if body.Devices["drawer"] != "connected" || body.Devices["printer"] != "disabled" {
		t.Fatalf("devices = %+v", body.Devices)
	}
}

// dialSession opens a WebSocket session against a test HTTP server.
func dialSession(t *testing.T, ts *httptest.Server, origin string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	//nolint:errcheck // Deadline best-effort; ReadMessage error caught below
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func TestSessionLifecycle(t *testing.T) {
	drawer := &fakeDrawer{}
	srv, _ := testServer(t, drawer)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn := dialSession(t, ts, "http://localhost:5173")

	// Opening message announces the available hardware.
	hello := readMessage(t, conn)
	if hello.Type != TypeConnected {
		t.Fatalf("first message type = %q, want connected", hello.Type)
	}
	if len(hello.Devices) != 1 || hello.Devices[0] != "drawer" {
		t.Fatalf("devices = %v, want [drawer]", hello.Devices)
	}

	if err := conn.WriteJSON(Command{Action: ActionOpenDrawer}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readMessage(t, conn)
	if reply.Type != TypeDrawerOpened || reply.Success == nil || !*reply.Success {
		t.Fatalf("reply = %+v, want drawerOpened success", reply)
	}

	// A capability that was never registered yields a client-facing error.
	if err := conn.WriteJSON(Command{Action: ActionReadWeight}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = readMessage(t, conn)
	if reply.Type != TypeError || reply.Message != "Scale not available" {
		t.Fatalf("reply = %+v, want Scale not available", reply)
	}
}

func TestSessionMalformedFrame(t *testing.T) {
	srv, _ := testServer(t)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn := dialSession(t, ts, "http://localhost:5173")
	if hello := readMessage(t, conn); hello.Type != TypeConnected {
		t.Fatalf("first message type = %q, want connected", hello.Type)
	}

	// A frame that is not JSON is answered like an unrecognized action,
	// and the session stays usable afterwards.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readMessage(t, conn)
	if reply.Type != TypeError || reply.Message != "unknown action" {
		t.Fatalf("reply = %+v, want unknown action error", reply)
	}

	if err := conn.WriteJSON(Command{Action: ActionGetStatus}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if reply := readMessage(t, conn); reply.Type != TypeStatus {
		t.Fatalf("reply after malformed frame = %+v, want status", reply)
	}
}

func TestSessionRejectedForBadOrigin(t *testing.T) {
	srv, _ := testServer(t)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Origin", "https://evil.example")

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("dial succeeded, want rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %+v, want 403", resp)
	}
}

func TestEventBroadcastReachesSession(t *testing.T) {
	srv, registry := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.broadcastEvents(ctx)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn := dialSession(t, ts, "http://localhost")
	if hello := readMessage(t, conn); hello.Type != TypeConnected {
		t.Fatalf("first message type = %q", hello.Type)
	}

	registry.Publish(device.Event{Kind: device.EventBarcode, Source: device.CapScanner, Barcode: "4006381333931"})

	msg := readMessage(t, conn)
	if msg.Type != TypeBarcode || msg.Barcode != "4006381333931" {
		t.Fatalf("broadcast = %+v, want barcode event", msg)
	}
}

func TestStartAndCloseBindRealListener(t *testing.T) {
	srv, _ := testServer(t)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Close() //nolint:errcheck

	if srv.Addr() == "" {
		t.Fatal("no listener address after Start")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
