package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/till-bridge/internal/device"
	"github.com/nerrad567/till-bridge/internal/drivers/printer"
)

// readWeightTimeout bounds a weight request end to end. The scale
// driver has its own internal bound; this is the outer safety net so a
// wedged serial port can never hang a session.
const readWeightTimeout = 2 * time.Second

// Capability contracts the dispatcher needs. Drivers are registered as
// device.Driver; the dispatcher narrows them per action.
type drawerDriver interface {
	Open() error
}

type scaleDriver interface {
	ReadWeight(ctx context.Context) (float64, error)
}

type printerDriver interface {
	PrintReceipt(printer.Receipt) error
	PrintCashClose(printer.CashClose) error
}

// handleCommand executes one inbound command and returns the direct
// reply, or nil when the action has none (simulations surface through
// the event broadcast instead).
func (s *Server) handleCommand(cmd Command) *Message {
	switch cmd.Action {
	case ActionOpenDrawer:
		return s.openDrawer()
	case ActionReadWeight:
		return s.readWeight()
	case ActionGetStatus:
		return reply(Message{Type: TypeStatus, Status: s.registry.Status()})
	case ActionPrintReceipt:
		return s.printReceipt(cmd.Data)
	case ActionPrintCashClose:
		return s.printCashClose(cmd.Data)
	case ActionListPrinters:
		return s.listPrinterEntries()
	case ActionSimulateBarcode:
		return s.simulateBarcode(cmd.Data)
	case ActionSimulateWeight:
		return s.simulateWeight(cmd.Data)
	default:
		return reply(errorMessage("unknown action: " + cmd.Action))
	}
}

func (s *Server) openDrawer() *Message {
	drv, msg := lookupDriver[drawerDriver](s, device.CapDrawer)
	if msg != nil {
		return msg
	}
	if err := drv.Open(); err != nil {
		s.logger.Error("drawer open failed", "error", err)
		return reply(errorMessage("drawer open failed"))
	}
	return reply(successMessage(TypeDrawerOpened))
}

func (s *Server) readWeight() *Message {
	drv, msg := lookupDriver[scaleDriver](s, device.CapScale)
	if msg != nil {
		return msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), readWeightTimeout)
	defer cancel()

	weight, err := drv.ReadWeight(ctx)
	if err != nil {
		s.logger.Error("weight read failed", "error", err)
		return reply(errorMessage("weight read failed"))
	}
	return reply(Message{Type: TypeWeight, Weight: &weight})
}

func (s *Server) printReceipt(data json.RawMessage) *Message {
	drv, msg := lookupDriver[printerDriver](s, device.CapPrinter)
	if msg != nil {
		return msg
	}

	var doc printer.Receipt
	if err := json.Unmarshal(data, &doc); err != nil {
		return reply(errorMessage("invalid receipt payload"))
	}
	if err := drv.PrintReceipt(doc); err != nil {
		s.logger.Error("receipt print failed", "error", err)
		return reply(errorMessage("receipt print failed"))
	}
	return reply(successMessage(TypeReceiptPrinted))
}

func (s *Server) printCashClose(data json.RawMessage) *Message {
	drv, msg := lookupDriver[printerDriver](s, device.CapPrinter)
	if msg != nil {
		return msg
	}

	var report printer.CashClose
	if err := json.Unmarshal(data, &report); err != nil {
		return reply(errorMessage("invalid cash close payload"))
	}
	if err := drv.PrintCashClose(report); err != nil {
		s.logger.Error("cash close print failed", "error", err)
		return reply(errorMessage("cash close print failed"))
	}
	return reply(successMessage(TypeCashClosePrinted))
}

func (s *Server) listPrinterEntries() *Message {
	found := s.listPrinters()
	entries := make([]PrinterEntry, 0, len(found))
	for _, p := range found {
		entries = append(entries, PrinterEntry{Name: p.Name, Port: p.Port})
	}
	return reply(Message{Type: TypePrinterList, Printers: entries})
}

// simulateBarcode injects a barcode event as if the scanner produced
// it. The event reaches every session via the broadcast path, matching
// real hardware exactly; there is no direct reply.
func (s *Server) simulateBarcode(data json.RawMessage) *Message {
	var payload struct {
		Barcode string `json:"barcode"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Barcode == "" {
		return reply(errorMessage("invalid barcode payload"))
	}

	s.registry.Publish(device.Event{
		Kind:    device.EventBarcode,
		Source:  device.CapScanner,
		Barcode: payload.Barcode,
	})
	return nil
}

// simulateWeight injects a weight event the same way.
func (s *Server) simulateWeight(data json.RawMessage) *Message {
	var payload struct {
		Weight *float64 `json:"weight"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Weight == nil {
		return reply(errorMessage("invalid weight payload"))
	}

	s.registry.Publish(device.Event{
		Kind:   device.EventWeight,
		Source: device.CapScale,
		Weight: *payload.Weight,
	})
	return nil
}

// lookupDriver fetches the registered driver for a capability and
// narrows it to the interface the action needs. A missing capability
// yields the client-facing "<Device> not available" error.
func lookupDriver[T any](s *Server, cap device.Capability) (T, *Message) {
	var zero T

	drv, err := s.registry.Get(cap)
	if err != nil {
		return zero, reply(errorMessage(cap.Label() + " not available"))
	}
	narrowed, ok := drv.(T)
	if !ok {
		s.logger.Error("registered driver does not implement action contract", "capability", cap)
		return zero, reply(errorMessage(cap.Label() + " not available"))
	}
	return narrowed, nil
}

func reply(msg Message) *Message {
	return &msg
}
