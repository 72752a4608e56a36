package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Till Bridge.
// All configuration has hardcoded defaults, optionally overridden by a YAML
// file, optionally overridden by environment variables. The gateway is
// deployed next to the till, so an env-only setup (no file at all) is a
// first-class citizen.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Security SecurityConfig `yaml:"security"`
	Devices  DevicesConfig  `yaml:"devices"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig contains the HTTP/WebSocket listener settings.
type GatewayConfig struct {
	Host      string              `yaml:"host"`
	Port      int                 `yaml:"port"`
	Timeouts  GatewayTimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig     `yaml:"websocket"`
}

// GatewayTimeoutConfig contains HTTP timeout settings in seconds.
type GatewayTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket session settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// SecurityConfig contains the connection gatekeeper settings.
type SecurityConfig struct {
	// SharedKey, when non-empty, must be presented by every client on
	// connect (query parameter "key" or X-Gateway-Key header).
	SharedKey string `yaml:"shared_key"`

	// AllowedOrigins is the origin allow-list. An entry of "*" admits any
	// origin. Matching is by prefix, so "http://localhost" covers any port.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DevicesConfig contains per-capability device settings. A capability whose
// Enabled flag is false is never constructed and is absent from the registry.
type DevicesConfig struct {
	Scale   ScaleConfig   `yaml:"scale"`
	Drawer  DrawerConfig  `yaml:"drawer"`
	Scanner ScannerConfig `yaml:"scanner"`
	Printer PrinterConfig `yaml:"printer"`
}

// ScaleConfig contains serial scale settings.
type ScaleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`

	// PollByte is the single-byte weight request sent before each read.
	// Default 0x05 (ENQ), the Toledo/Filizola convention.
	PollByte byte `yaml:"poll_byte"`

	// ReadTimeoutMs bounds the wait for a fresh reading after a poll.
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// DrawerConfig contains cash drawer settings.
type DrawerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`

	// KickSequence is the drawer kick command as a list of hex bytes,
	// e.g. ["1B", "70", "00", "19", "FA"] (ESC p 0 25ms 250ms).
	KickSequence []string `yaml:"kick_sequence"`
}

// ScannerConfig contains barcode scanner settings.
type ScannerConfig struct {
	Enabled bool `yaml:"enabled"`

	// DebounceMs is the inter-character quiet window that terminates a
	// scan burst when the scanner sends no explicit Enter. Tuning
	// parameter, not a semantic contract.
	DebounceMs int `yaml:"debounce_ms"`
}

// PrinterConfig contains thermal printer settings.
type PrinterConfig struct {
	Enabled bool `yaml:"enabled"`

	// Family selects the command dialect. "epson" and "generic" share the
	// same ESC/POS core.
	Family string `yaml:"family"`

	// Interface is the printer endpoint: a serial device path
	// ("/dev/usb/lp0", "COM3"), a "host:port" raw TCP address, or empty
	// for a configured-but-unprobed printer.
	Interface string `yaml:"interface"`

	// Columns is the character width: 32 (58mm paper) or 48 (80mm paper).
	Columns int `yaml:"columns"`

	// Baud applies when Interface is a serial device path.
	Baud int `yaml:"baud"`

	// CurrencyPrefix is the literal prefix for monetary figures.
	CurrencyPrefix string `yaml:"currency_prefix"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds configuration from defaults, an optional YAML file, and
// environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults); a missing file is not an error
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TILLBRIDGE_SECTION_KEY
// For example: TILLBRIDGE_PORT, TILLBRIDGE_SCALE_PORT, TILLBRIDGE_SHARED_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file (may not exist)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be parsed or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Env-only deployment; defaults apply.
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 8420,
			Timeouts: GatewayTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				Path:           "/ws",
				MaxMessageSize: 65536,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost", "https://localhost"},
		},
		Devices: DevicesConfig{
			Scale: ScaleConfig{
				Port:          "/dev/ttyUSB0",
				Baud:          4800,
				PollByte:      0x05,
				ReadTimeoutMs: 500,
			},
			Drawer: DrawerConfig{
				Port:         "/dev/ttyUSB1",
				Baud:         9600,
				KickSequence: []string{"1B", "70", "00", "19", "FA"},
			},
			Scanner: ScannerConfig{
				DebounceMs: 55,
			},
			Printer: PrinterConfig{
				Family:         "epson",
				Columns:        48,
				Baud:           9600,
				CurrencyPrefix: "R$",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TILLBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) { //nolint:gocognit // flat list of optional overrides
	// Gateway
	if v := os.Getenv("TILLBRIDGE_HOST"); v != "" {
		cfg.Gateway.Host = v
	}
	if v, ok := envInt("TILLBRIDGE_PORT"); ok {
		cfg.Gateway.Port = v
	}

	// Debug toggle forces the log level
	if envBool("TILLBRIDGE_DEBUG") {
		cfg.Logging.Level = "debug"
	}

	// Security
	if v := os.Getenv("TILLBRIDGE_SHARED_KEY"); v != "" {
		cfg.Security.SharedKey = v
	}
	if v := os.Getenv("TILLBRIDGE_ALLOWED_ORIGINS"); v != "" {
		cfg.Security.AllowedOrigins = splitAndTrim(v)
	}

	// Scale
	if v, ok := envFlag("TILLBRIDGE_SCALE_ENABLED"); ok {
		cfg.Devices.Scale.Enabled = v
	}
	if v := os.Getenv("TILLBRIDGE_SCALE_PORT"); v != "" {
		cfg.Devices.Scale.Port = v
	}
	if v, ok := envInt("TILLBRIDGE_SCALE_BAUD"); ok {
		cfg.Devices.Scale.Baud = v
	}
	if v, ok := envInt("TILLBRIDGE_SCALE_TIMEOUT_MS"); ok {
		cfg.Devices.Scale.ReadTimeoutMs = v
	}

	// Drawer
	if v, ok := envFlag("TILLBRIDGE_DRAWER_ENABLED"); ok {
		cfg.Devices.Drawer.Enabled = v
	}
	if v := os.Getenv("TILLBRIDGE_DRAWER_PORT"); v != "" {
		cfg.Devices.Drawer.Port = v
	}
	if v, ok := envInt("TILLBRIDGE_DRAWER_BAUD"); ok {
		cfg.Devices.Drawer.Baud = v
	}
	if v := os.Getenv("TILLBRIDGE_DRAWER_KICK"); v != "" {
		cfg.Devices.Drawer.KickSequence = splitAndTrim(v)
	}

	// Scanner
	if v, ok := envFlag("TILLBRIDGE_SCANNER_ENABLED"); ok {
		cfg.Devices.Scanner.Enabled = v
	}
	if v, ok := envInt("TILLBRIDGE_SCANNER_DEBOUNCE_MS"); ok {
		cfg.Devices.Scanner.DebounceMs = v
	}

	// Printer
	if v, ok := envFlag("TILLBRIDGE_PRINTER_ENABLED"); ok {
		cfg.Devices.Printer.Enabled = v
	}
	if v := os.Getenv("TILLBRIDGE_PRINTER_FAMILY"); v != "" {
		cfg.Devices.Printer.Family = v
	}
	if v := os.Getenv("TILLBRIDGE_PRINTER_INTERFACE"); v != "" {
		cfg.Devices.Printer.Interface = v
	}
	if v, ok := envInt("TILLBRIDGE_PRINTER_COLUMNS"); ok {
		cfg.Devices.Printer.Columns = v
	}
	if v, ok := envInt("TILLBRIDGE_PRINTER_BAUD"); ok {
		cfg.Devices.Printer.Baud = v
	}
	if v := os.Getenv("TILLBRIDGE_CURRENCY_PREFIX"); v != "" {
		cfg.Devices.Printer.CurrencyPrefix = v
	}

	// Logging
	if v := os.Getenv("TILLBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TILLBRIDGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 1 and 65535")
	}

	if len(c.Security.AllowedOrigins) == 0 {
		errs = append(errs, "security.allowed_origins must not be empty (use \"*\" to allow all)")
	}

	if c.Devices.Scale.Enabled {
		if c.Devices.Scale.Port == "" {
			errs = append(errs, "devices.scale.port is required when the scale is enabled")
		}
		if c.Devices.Scale.Baud <= 0 {
			errs = append(errs, "devices.scale.baud must be positive")
		}
		if c.Devices.Scale.ReadTimeoutMs <= 0 {
			errs = append(errs, "devices.scale.read_timeout_ms must be positive")
		}
	}

	if c.Devices.Drawer.Enabled {
		if c.Devices.Drawer.Port == "" {
			errs = append(errs, "devices.drawer.port is required when the drawer is enabled")
		}
		if c.Devices.Drawer.Baud <= 0 {
			errs = append(errs, "devices.drawer.baud must be positive")
		}
		if _, err := c.Devices.Drawer.KickBytes(); err != nil {
			errs = append(errs, fmt.Sprintf("devices.drawer.kick_sequence: %v", err))
		}
	}

	if c.Devices.Scanner.Enabled && c.Devices.Scanner.DebounceMs <= 0 {
		errs = append(errs, "devices.scanner.debounce_ms must be positive")
	}

	if c.Devices.Printer.Enabled {
		switch strings.ToLower(c.Devices.Printer.Family) {
		case "epson", "generic":
		default:
			errs = append(errs, fmt.Sprintf("devices.printer.family %q is not recognised (epson, generic)", c.Devices.Printer.Family))
		}
		if c.Devices.Printer.Columns != 32 && c.Devices.Printer.Columns != 48 {
			errs = append(errs, "devices.printer.columns must be 32 (58mm) or 48 (80mm)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// KickBytes parses the drawer kick sequence hex list into raw bytes.
func (d DrawerConfig) KickBytes() ([]byte, error) {
	if len(d.KickSequence) == 0 {
		return nil, fmt.Errorf("empty kick sequence")
	}

	out := make([]byte, 0, len(d.KickSequence))
	for _, item := range d.KickSequence {
		s := strings.TrimPrefix(strings.TrimSpace(item), "0x")
		if len(s) == 1 {
			s = "0" + s
		}
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != 1 {
			return nil, fmt.Errorf("invalid hex byte %q", item)
		}
		out = append(out, b[0])
	}
	return out, nil
}

// ScaleReadTimeout returns the scale read bound as a Duration.
func (c *Config) ScaleReadTimeout() time.Duration {
	return time.Duration(c.Devices.Scale.ReadTimeoutMs) * time.Millisecond
}

// ScannerDebounce returns the scanner quiet window as a Duration.
func (c *Config) ScannerDebounce() time.Duration {
	return time.Duration(c.Devices.Scanner.DebounceMs) * time.Millisecond
}

// GetReadTimeout returns the gateway read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Gateway.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the gateway write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Gateway.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the gateway idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Gateway.Timeouts.Idle) * time.Second
}

// envInt reads an integer environment variable.
func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// envBool reads a boolean environment variable, false when unset or invalid.
func envBool(name string) bool {
	v, _ := envFlag(name)
	return v
}

// envFlag reads a boolean environment variable, reporting whether it was set.
func envFlag(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// splitAndTrim splits a comma-separated value, dropping empty entries.
func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
