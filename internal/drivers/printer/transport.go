package printer

import (
	"io"
	"net"
	"strings"
	"time"

	"github.com/nerrad567/till-bridge/internal/drivers/serialio"
)

// dialTimeout bounds the TCP connect to a networked printer.
const dialTimeout = 3 * time.Second

// dial opens the configured printer endpoint. A "host:port" address is
// treated as a raw jetdirect socket; anything else is a serial device
// path.
func dial(endpoint string, baud int, open serialio.Opener) (io.WriteCloser, error) {
	if isNetworkAddress(endpoint) {
		return net.DialTimeout("tcp", endpoint, dialTimeout)
	}
	return open(endpoint, baud)
}

// isNetworkAddress reports whether endpoint looks like host:port rather
// than a device path. Device paths either carry no colon ("/dev/usb/lp0",
// "COM3") or, on Windows, a drive-letter colon followed by a backslash.
func isNetworkAddress(endpoint string) bool {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil || host == "" || port == "" {
		return false
	}
	return !strings.ContainsAny(endpoint, `/\`)
}
