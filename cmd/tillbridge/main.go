// Till Bridge - local POS hardware gateway
//
// This is the main entry point for the Till Bridge gateway. It runs on
// the machine physically attached to the till hardware and bridges a
// browser POS to the thermal printer, barcode scanner, digital scale,
// and cash drawer over a local WebSocket control plane.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/till-bridge/internal/device"
	"github.com/nerrad567/till-bridge/internal/drivers/drawer"
	"github.com/nerrad567/till-bridge/internal/drivers/printer"
	"github.com/nerrad567/till-bridge/internal/drivers/scale"
	"github.com/nerrad567/till-bridge/internal/drivers/scanner"
	"github.com/nerrad567/till-bridge/internal/drivers/serialio"
	"github.com/nerrad567/till-bridge/internal/gateway"
	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
	"github.com/nerrad567/till-bridge/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Till Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Initialise device registry and attach hardware
	registry := device.NewRegistry()
	registry.SetLogger(log)
	defer func() {
		log.Info("closing device registry")
		registry.Close()
	}()

	if err := attachDevices(cfg, registry, log); err != nil {
		return fmt.Errorf("attaching devices: %w", err)
	}
	log.Info("device registry initialised", "devices", registry.Count())

	// Start the gateway server
	server, err := gateway.New(gateway.Deps{
		Config:   cfg.Gateway,
		Security: cfg.Security,
		Logger:   log,
		Registry: registry,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}
	defer func() {
		log.Info("stopping gateway")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing gateway", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Till Bridge stopped")
	return nil
}

// attachDevices constructs every enabled driver and registers it. A
// driver whose transport cannot be opened still registers (it reports
// not-connected and retries later); a driver whose configuration is
// invalid aborts startup.
func attachDevices(cfg *config.Config, registry *device.Registry, log *logging.Logger) error {
	devices := cfg.Devices

	if devices.Scale.Enabled {
		drv := scale.New(devices.Scale, registry.Publish, serialio.Open, log.Component("scale"))
		if err := registry.Register(drv); err != nil {
			return fmt.Errorf("scale: %w", err)
		}
		log.Info("scale attached", "port", devices.Scale.Port, "baud", devices.Scale.Baud)
	}

	if devices.Drawer.Enabled {
		drv, err := drawer.New(devices.Drawer, registry.Publish, serialio.Open, log.Component("drawer"))
		if err != nil {
			return fmt.Errorf("drawer: %w", err)
		}
		if err := registry.Register(drv); err != nil {
			return fmt.Errorf("drawer: %w", err)
		}
		log.Info("drawer attached", "port", devices.Drawer.Port)
	}

	if devices.Scanner.Enabled {
		drv := scanner.New(devices.Scanner, registry.Publish, log.Component("scanner"))
		if err := registry.Register(drv); err != nil {
			return fmt.Errorf("scanner: %w", err)
		}
	}

	if devices.Printer.Enabled {
		drv, err := printer.New(devices.Printer, registry.Publish, serialio.Open, log.Component("printer"))
		if err != nil {
			return fmt.Errorf("printer: %w", err)
		}
		if err := registry.Register(drv); err != nil {
			return fmt.Errorf("printer: %w", err)
		}
		log.Info("printer attached",
			"family", devices.Printer.Family,
			"interface", devices.Printer.Interface,
			"columns", devices.Printer.Columns,
		)
	}

	return nil
}

// getConfigPath returns the configuration file path.
// Uses TILLBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TILLBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
