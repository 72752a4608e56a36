package gateway

import "encoding/json"

// Inbound command actions.
const (
	ActionOpenDrawer      = "openDrawer"
	ActionReadWeight      = "readWeight"
	ActionGetStatus       = "getStatus"
	ActionPrintReceipt    = "printReceipt"
	ActionPrintCashClose  = "printCashClose"
	ActionListPrinters    = "listPrinters"
	ActionSimulateBarcode = "simulateBarcode"
	ActionSimulateWeight  = "simulateWeight"
)

// Outbound message types.
const (
	TypeConnected       = "connected"
	TypeBarcode         = "barcode"
	TypeWeight          = "weight"
	TypeStatus          = "status"
	TypeDrawerOpened    = "drawerOpened"
	TypeReceiptPrinted  = "receiptPrinted"
	TypeCashClosePrinted = "cashClosePrinted"
	TypePrinterList     = "printerList"
	TypeError           = "error"
)

// Command is one inbound control-plane message. Data is decoded lazily
// by the action that needs it.
type Command struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Message is one outbound control-plane message. The payload fields are
// flattened next to Type; omitempty keeps each message to its own
// fields on the wire.
type Message struct {
	Type     string            `json:"type"`
	Devices  []string          `json:"devices,omitempty"`
	Barcode  string            `json:"barcode,omitempty"`
	Weight   *float64          `json:"weight,omitempty"`
	Status   map[string]string `json:"status,omitempty"`
	Success  *bool             `json:"success,omitempty"`
	Printers []PrinterEntry    `json:"printers,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// PrinterEntry is one enumerated printer in a printerList message.
type PrinterEntry struct {
	Name string `json:"name"`
	Port string `json:"port"`
}

func successMessage(msgType string) Message {
	ok := true
	return Message{Type: msgType, Success: &ok}
}

func errorMessage(text string) Message {
	return Message{Type: TypeError, Message: text}
}
