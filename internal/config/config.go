package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPITimeout          = 15 * time.Second
	DefaultPrinterDialTimeout  = 5 * time.Second
	DefaultPrinterWriteTimeout = 10 * time.Second
	DefaultPrinterDrainTimeout = 750 * time.Millisecond
	DefaultScanQuiet           = 100 * time.Millisecond
	DefaultScannerBaud         = 9600
	DefaultStatePath           = "state/boxscan.json"
	DefaultSNMPCommunity       = "public"

	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	APIURL      string
	APIToken    string
	APIUsername string
	APIPassword string
	APITimeout  time.Duration

	StateBackend string
	StatePath    string

	// PrinterHost/PrinterPort override the operator-saved printer when set.
	PrinterHost         string
	PrinterPort         int
	PrinterDialTimeout  time.Duration
	PrinterWriteTimeout time.Duration
	PrinterDrainTimeout time.Duration
	SNMPCommunity       string

	ScanQuiet     time.Duration
	ScannerDevice string
	ScannerBaud   int

	ConsoleAddr string
	LogDir      string
}

// fileConfig is the optional TOML layer. Durations are strings ("15s").
type fileConfig struct {
	API struct {
		URL      string `toml:"url"`
		Token    string `toml:"token"`
		Username string `toml:"username"`
		Password string `toml:"password"`
		Timeout  string `toml:"timeout"`
	} `toml:"api"`
	State struct {
		Backend string `toml:"backend"`
		Path    string `toml:"path"`
	} `toml:"state"`
	Printer struct {
		Host          string `toml:"host"`
		Port          int    `toml:"port"`
		DialTimeout   string `toml:"dial_timeout"`
		WriteTimeout  string `toml:"write_timeout"`
		DrainTimeout  string `toml:"drain_timeout"`
		SNMPCommunity string `toml:"snmp_community"`
	} `toml:"printer"`
	Scanner struct {
		Quiet  string `toml:"quiet"`
		Device string `toml:"device"`
		Baud   int    `toml:"baud"`
	} `toml:"scanner"`
	Console struct {
		Addr string `toml:"addr"`
	} `toml:"console"`
	Log struct {
		Dir string `toml:"dir"`
	} `toml:"log"`
}

// Load resolves every key as: process env, then .env file, then TOML file,
// then defaults. Missing files are not an error.
func Load(envPath, tomlPath string) (Config, error) {
	return load(envPath, tomlPath, true)
}

// LoadLocal is Load for printer-only tools: the API settings may be absent.
func LoadLocal(envPath, tomlPath string) (Config, error) {
	return load(envPath, tomlPath, false)
}

func load(envPath, tomlPath string, needAPI bool) (Config, error) {
	if strings.TrimSpace(envPath) == "" {
		envPath = ".env"
	}

	fileVals, err := readEnvFile(envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config env parse (%s): %w", envPath, err)
	}

	var fc fileConfig
	if strings.TrimSpace(tomlPath) != "" {
		if _, err := toml.DecodeFile(tomlPath, &fc); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config toml parse (%s): %w", tomlPath, err)
		}
	}

	get := func(tomlVal string, keys ...string) string {
		// Aliases apply to the file only; the environment is read by primary key.
		vals := make([]string, 0, len(keys)+2)
		vals = append(vals, os.Getenv(keys[0]))
		for _, k := range keys {
			vals = append(vals, fileVals[k])
		}
		vals = append(vals, tomlVal)
		return firstNonEmpty(vals...)
	}

	cfg := Config{
		APIURL:        get(fc.API.URL, "VIP_API_URL", "API_URL", "URL"),
		APIToken:      get(fc.API.Token, "VIP_API_TOKEN", "API_TOKEN", "TOKEN"),
		APIUsername:   get(fc.API.Username, "VIP_USERNAME", "USERNAME"),
		APIPassword:   get(fc.API.Password, "VIP_PASSWORD", "PASSWORD"),
		StateBackend:  strings.ToLower(get(fc.State.Backend, "STATE_BACKEND")),
		StatePath:     get(fc.State.Path, "STATE_PATH", "STATE_FILE"),
		PrinterHost:   get(fc.Printer.Host, "PRINTER_HOST"),
		SNMPCommunity: get(fc.Printer.SNMPCommunity, "PRINTER_SNMP_COMMUNITY", "SNMP_COMMUNITY"),
		ScannerDevice: get(fc.Scanner.Device, "SCANNER_DEVICE"),
		ConsoleAddr:   get(fc.Console.Addr, "CONSOLE_ADDR"),
		LogDir:        get(fc.Log.Dir, "LOG_DIR"),
	}

	durations := []struct {
		dst  *time.Duration
		raw  string
		name string
		def  time.Duration
	}{
		{&cfg.APITimeout, get(fc.API.Timeout, "VIP_API_TIMEOUT", "API_TIMEOUT"), "VIP_API_TIMEOUT", DefaultAPITimeout},
		{&cfg.PrinterDialTimeout, get(fc.Printer.DialTimeout, "PRINTER_DIAL_TIMEOUT"), "PRINTER_DIAL_TIMEOUT", DefaultPrinterDialTimeout},
		{&cfg.PrinterWriteTimeout, get(fc.Printer.WriteTimeout, "PRINTER_WRITE_TIMEOUT"), "PRINTER_WRITE_TIMEOUT", DefaultPrinterWriteTimeout},
		{&cfg.PrinterDrainTimeout, get(fc.Printer.DrainTimeout, "PRINTER_DRAIN_TIMEOUT"), "PRINTER_DRAIN_TIMEOUT", DefaultPrinterDrainTimeout},
		{&cfg.ScanQuiet, get(fc.Scanner.Quiet, "SCAN_QUIET"), "SCAN_QUIET", DefaultScanQuiet},
	}
	for _, d := range durations {
		v, err := parseDuration(d.raw, d.def)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = v
	}

	ints := []struct {
		dst  *int
		raw  string
		file int
		name string
		def  int
	}{
		{&cfg.PrinterPort, get("", "PRINTER_PORT"), fc.Printer.Port, "PRINTER_PORT", 0},
		{&cfg.ScannerBaud, get("", "SCANNER_BAUD"), fc.Scanner.Baud, "SCANNER_BAUD", DefaultScannerBaud},
	}
	for _, n := range ints {
		v, err := parseInt(n.raw, n.file, n.def)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", n.name, err)
		}
		*n.dst = v
	}

	if cfg.StateBackend == "" {
		cfg.StateBackend = BackendFile
	}
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
		if cfg.StateBackend == BackendSQLite {
			cfg.StatePath = strings.TrimSuffix(DefaultStatePath, ".json") + ".db"
		}
	}
	if cfg.SNMPCommunity == "" {
		cfg.SNMPCommunity = DefaultSNMPCommunity
	}

	validate := cfg.Validate
	if !needAPI {
		validate = cfg.validateLocal
	}
	if err := validate(); err != nil {
		abs, _ := filepath.Abs(envPath)
		return Config{}, fmt.Errorf("config invalid (%s): %w", abs, err)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("VIP_API_URL bo'sh")
	}
	u, err := url.Parse(strings.TrimSpace(c.APIURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("VIP_API_URL noto'g'ri (example: https://api.example.uz)")
	}
	if (c.APIUsername == "") != (c.APIPassword == "") {
		return errors.New("VIP_USERNAME va VIP_PASSWORD birga berilishi kerak")
	}
	return c.validateLocal()
}

func (c Config) validateLocal() error {
	switch c.StateBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("STATE_BACKEND noto'g'ri: %q (file|sqlite)", c.StateBackend)
	}
	if c.PrinterPort < 0 || c.PrinterPort > 65535 {
		return fmt.Errorf("PRINTER_PORT noto'g'ri: %d", c.PrinterPort)
	}
	if c.ScanQuiet <= 0 {
		return errors.New("SCAN_QUIET musbat bo'lishi kerak")
	}
	if c.ScannerBaud <= 0 {
		return fmt.Errorf("SCANNER_BAUD noto'g'ri: %d", c.ScannerBaud)
	}
	return nil
}

// readEnvFile parses the file with godotenv and normalizes keys, so
// "vip.api-url" and "VIP_API_URL" land on the same entry.
func readEnvFile(path string) (map[string]string, error) {
	raw, err := godotenv.Read(path)
	if err != nil {
		return map[string]string{}, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[normalizeKey(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

func parseInt(raw string, fileVal, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		return strconv.Atoi(raw)
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return def, nil
}

func normalizeKey(k string) string {
	k = strings.TrimSpace(strings.ToUpper(k))
	repl := strings.NewReplacer(" ", "_", ".", "_", "-", "_")
	return repl.Replace(k)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
