// Package printer renders sale receipts and cash-close reports to
// ESC/POS and transmits them to a thermal printer over a serial device
// or a raw TCP (jetdirect) socket.
//
// Documents are buffered whole and written in a single call, so a
// failed transmission never reports partial output as success. Text is
// folded to printable ASCII and truncated to the configured column
// width before rendering, matching what the printer's default code page
// can actually reproduce.
package printer
