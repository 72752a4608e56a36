// Package device provides the Device Registry for Till Bridge.
//
// The Device Registry is the catalogue of attached point-of-sale
// peripherals, keyed by capability (scale, drawer, scanner, printer).
// Each capability is independently optional: it is present only when its
// configuration flag is enabled and its driver constructed successfully.
// A capability that fails to construct is simply absent — it is not
// retried, not polled, and not created in a failed state.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                      Device Registry                        │
//	│                                                             │
//	│   scale ──┐                                                 │
//	│   drawer ─┼── drivers map[Capability]Driver (read-only     │
//	│   scanner ┤   after startup wiring)                         │
//	│   printer ┘                                                 │
//	│                                                             │
//	│   Publish(Event) ──▶ buffered fan-in ──▶ Events()           │
//	└────────────────────────────────────────────────────────────┘
//	            ▲                                   │
//	            │ drivers emit barcode/weight/error │ gateway broadcasts
//	            │                                   ▼ to all sessions
//
// # Usage
//
//	registry := device.NewRegistry()
//	registry.SetLogger(log)
//
//	if cfg.Devices.Drawer.Enabled {
//	    drv, err := drawer.New(cfg.Devices.Drawer, registry.Publish)
//	    if err != nil {
//	        log.Error("drawer unavailable", "error", err)
//	    } else {
//	        registry.Register(drv)
//	    }
//	}
//
//	// Command dispatch
//	d, err := registry.Get(device.CapDrawer)
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Registration is
// expected to finish before the gateway server starts; afterwards the
// registry is effectively immutable apart from the event stream.
package device
