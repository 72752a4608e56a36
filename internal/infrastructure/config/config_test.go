package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
gateway:
  host: "0.0.0.0"
  port: 9000
security:
  shared_key: "till-key"
  allowed_origins: ["http://localhost"]
devices:
  drawer:
    enabled: true
    port: "/dev/ttyS0"
    baud: 9600
  printer:
    enabled: true
    family: "epson"
    columns: 32
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.Port != 9000 {
		t.Errorf("Gateway.Port = %d, want 9000", cfg.Gateway.Port)
	}

	if cfg.Security.SharedKey != "till-key" {
		t.Errorf("Security.SharedKey = %q, want %q", cfg.Security.SharedKey, "till-key")
	}

	if !cfg.Devices.Drawer.Enabled {
		t.Error("Devices.Drawer.Enabled = false, want true")
	}

	if cfg.Devices.Printer.Columns != 32 {
		t.Errorf("Devices.Printer.Columns = %d, want 32", cfg.Devices.Printer.Columns)
	}

	// Defaults survive a partial file
	if cfg.Devices.Scale.Baud != 4800 {
		t.Errorf("Devices.Scale.Baud = %d, want default 4800", cfg.Devices.Scale.Baud)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults for missing file", err)
	}

	if cfg.Gateway.Port != 8420 {
		t.Errorf("Gateway.Port = %d, want default 8420", cfg.Gateway.Port)
	}

	if cfg.Devices.Scanner.DebounceMs != 55 {
		t.Errorf("Scanner.DebounceMs = %d, want default 55", cfg.Devices.Scanner.DebounceMs)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TILLBRIDGE_PORT", "9911")
	t.Setenv("TILLBRIDGE_SHARED_KEY", "env-key")
	t.Setenv("TILLBRIDGE_ALLOWED_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("TILLBRIDGE_DRAWER_ENABLED", "true")
	t.Setenv("TILLBRIDGE_DRAWER_KICK", "1B,70,01,32,FA")
	t.Setenv("TILLBRIDGE_DEBUG", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.Port != 9911 {
		t.Errorf("Gateway.Port = %d, want 9911", cfg.Gateway.Port)
	}

	if cfg.Security.SharedKey != "env-key" {
		t.Errorf("SharedKey = %q, want env-key", cfg.Security.SharedKey)
	}

	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "http://b.local" {
		t.Errorf("AllowedOrigins = %v, want two trimmed entries", cfg.Security.AllowedOrigins)
	}

	if !cfg.Devices.Drawer.Enabled {
		t.Error("Drawer.Enabled = false, want true from env")
	}

	kick, err := cfg.Devices.Drawer.KickBytes()
	if err != nil {
		t.Fatalf("KickBytes() error = %v", err)
	}
	want := []byte{0x1B, 0x70, 0x01, 0x32, 0xFA}
	if len(kick) != len(want) {
		t.Fatalf("KickBytes() = %v, want %v", kick, want)
	}
	for i := range want {
		if kick[i] != want[i] {
			t.Errorf("KickBytes()[%d] = %#x, want %#x", i, kick[i], want[i])
		}
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug via TILLBRIDGE_DEBUG", cfg.Logging.Level)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
devices:
  printer:
    enabled: true
    family: "dotmatrix"
    columns: 40
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}

	if !strings.Contains(err.Error(), "devices.printer.family") {
		t.Errorf("error = %v, want mention of printer family", err)
	}
	if !strings.Contains(err.Error(), "columns") {
		t.Errorf("error = %v, want mention of printer columns", err)
	}
}

func TestKickBytes_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		sequence []string
	}{
		{name: "empty", sequence: nil},
		{name: "not hex", sequence: []string{"1B", "zz"}},
		{name: "too wide", sequence: []string{"1B70"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DrawerConfig{KickSequence: tt.sequence}
			if _, err := d.KickBytes(); err == nil {
				t.Errorf("KickBytes(%v) expected error, got nil", tt.sequence)
			}
		})
	}
}

func TestKickBytes_AcceptsPrefixedAndShortHex(t *testing.T) {
	d := DrawerConfig{KickSequence: []string{"0x1B", "70", "0", "19", "fa"}}
	got, err := d.KickBytes()
	if err != nil {
		t.Fatalf("KickBytes() error = %v", err)
	}
	want := []byte{0x1B, 0x70, 0x00, 0x19, 0xFA}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("KickBytes()[%d] = %#x, want %#x", i, got[i], want[i])
		}
	}
}
