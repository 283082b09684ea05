package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VIP_API_URL", "VIP_API_TOKEN", "VIP_USERNAME", "VIP_PASSWORD", "VIP_API_TIMEOUT",
		"STATE_BACKEND", "STATE_PATH", "PRINTER_HOST", "PRINTER_PORT",
		"PRINTER_DIAL_TIMEOUT", "PRINTER_WRITE_TIMEOUT", "PRINTER_DRAIN_TIMEOUT",
		"PRINTER_SNMP_COMMUNITY", "SCAN_QUIET", "SCANNER_DEVICE", "SCANNER_BAUD",
		"CONSOLE_ADDR", "LOG_DIR",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	d := t.TempDir()
	p := writeFile(t, d, ".env", "VIP_API_URL=https://api.example.uz\n")

	cfg, err := Load(p, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.APITimeout != DefaultAPITimeout {
		t.Fatalf("APITimeout mismatch: %v", cfg.APITimeout)
	}
	if cfg.ScanQuiet != 100*time.Millisecond {
		t.Fatalf("ScanQuiet mismatch: %v", cfg.ScanQuiet)
	}
	if cfg.StateBackend != BackendFile || cfg.StatePath != DefaultStatePath {
		t.Fatalf("state mismatch: %q %q", cfg.StateBackend, cfg.StatePath)
	}
	if cfg.PrinterPort != 0 || cfg.PrinterHost != "" {
		t.Fatalf("printer override should be empty: %q:%d", cfg.PrinterHost, cfg.PrinterPort)
	}
	if cfg.ScannerBaud != DefaultScannerBaud {
		t.Fatalf("ScannerBaud mismatch: %d", cfg.ScannerBaud)
	}
}

func TestLoadSupportsColonAndAliasKeys(t *testing.T) {
	clearEnv(t)
	d := t.TempDir()
	p := writeFile(t, d, ".env", "URL: https://api.example.uz\nTOKEN: abc\nscan.quiet: 150\n")

	cfg, err := Load(p, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.APIURL != "https://api.example.uz" {
		t.Fatalf("APIURL mismatch: %q", cfg.APIURL)
	}
	if cfg.APIToken != "abc" {
		t.Fatalf("APIToken mismatch: %q", cfg.APIToken)
	}
	if cfg.ScanQuiet != 150*time.Millisecond {
		t.Fatalf("ScanQuiet mismatch: %v", cfg.ScanQuiet)
	}
}

func TestLoadPriorityEnvOverFileOverToml(t *testing.T) {
	clearEnv(t)
	d := t.TempDir()
	envPath := writeFile(t, d, ".env", "VIP_API_URL=https://file.example.uz\nPRINTER_PORT=9101\n")
	tomlPath := writeFile(t, d, "boxscan.toml", `
[api]
url = "https://toml.example.uz"
timeout = "20s"

[state]
backend = "sqlite"

[printer]
host = "10.0.0.5"
port = 6101
drain_timeout = "1s"
`)
	t.Setenv("PRINTER_HOST", "10.0.0.9")

	cfg, err := Load(envPath, tomlPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.APIURL != "https://file.example.uz" {
		t.Fatalf("APIURL mismatch: %q", cfg.APIURL)
	}
	if cfg.PrinterHost != "10.0.0.9" {
		t.Fatalf("PrinterHost mismatch: %q", cfg.PrinterHost)
	}
	if cfg.PrinterPort != 9101 {
		t.Fatalf("PrinterPort mismatch: %d", cfg.PrinterPort)
	}
	if cfg.APITimeout != 20*time.Second {
		t.Fatalf("APITimeout mismatch: %v", cfg.APITimeout)
	}
	if cfg.PrinterDrainTimeout != time.Second {
		t.Fatalf("PrinterDrainTimeout mismatch: %v", cfg.PrinterDrainTimeout)
	}
	if cfg.StateBackend != BackendSQLite || !strings.HasSuffix(cfg.StatePath, ".db") {
		t.Fatalf("state mismatch: %q %q", cfg.StateBackend, cfg.StatePath)
	}
}

func TestLoadMissingFilesNeedEnv(t *testing.T) {
	clearEnv(t)
	d := t.TempDir()
	if _, err := Load(filepath.Join(d, "missing.env"), filepath.Join(d, "missing.toml")); err == nil {
		t.Fatalf("expected error without VIP_API_URL")
	}

	t.Setenv("VIP_API_URL", "http://127.0.0.1:3000")
	if _, err := Load(filepath.Join(d, "missing.env"), filepath.Join(d, "missing.toml")); err != nil {
		t.Fatalf("Load error: %v", err)
	}
}

func TestLoadLocalSkipsAPI(t *testing.T) {
	clearEnv(t)
	d := t.TempDir()
	cfg, err := LoadLocal(filepath.Join(d, "missing.env"), "")
	if err != nil {
		t.Fatalf("LoadLocal error: %v", err)
	}
	if cfg.PrinterDialTimeout != DefaultPrinterDialTimeout || cfg.SNMPCommunity != DefaultSNMPCommunity {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}

	t.Setenv("STATE_BACKEND", "redis")
	if _, err := LoadLocal(filepath.Join(d, "missing.env"), ""); err == nil {
		t.Fatalf("expected backend error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Config{
		APIURL:       "https://api.example.uz",
		StateBackend: BackendFile,
		ScanQuiet:    DefaultScanQuiet,
		ScannerBaud:  DefaultScannerBaud,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base invalid: %v", err)
	}

	cases := map[string]func(*Config){
		"url":      func(c *Config) { c.APIURL = "not a url" },
		"backend":  func(c *Config) { c.StateBackend = "redis" },
		"port":     func(c *Config) { c.PrinterPort = 70000 },
		"quiet":    func(c *Config) { c.ScanQuiet = 0 },
		"password": func(c *Config) { c.APIUsername = "op" },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
