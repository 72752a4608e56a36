// Package gateway is the control-plane server bridging the browser POS
// to the local hardware drivers.
//
// One HTTP listener carries two endpoints: GET /status for discovery
// and liveness, and a WebSocket endpoint over which the POS issues
// commands (open drawer, read weight, print) and receives both the
// correlated replies and unsolicited device events (scans, weight
// changes). The gatekeeper checks origin and shared key before any
// session is created.
//
// Lifecycle follows the infrastructure pattern:
//
//	server, err := gateway.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread safety: all exported methods are safe for concurrent use.
package gateway
