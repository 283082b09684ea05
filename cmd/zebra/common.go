package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"boxscan/internal/config"
	"boxscan/internal/printer"
	"boxscan/internal/session"
)

type commonFlags struct {
	envPath  string
	tomlPath string
	host     string
	port     int
}

func addCommon(fs *flag.FlagSet, withPrinter bool) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.envPath, "env", ".env", "dotenv file")
	fs.StringVar(&c.tomlPath, "config", "boxscan.toml", "optional TOML config file")
	if withPrinter {
		fs.StringVar(&c.host, "host", "", "printer host or IP")
		fs.IntVar(&c.port, "port", 0, "printer raw port (default 9100)")
	}
	return c
}

// env is what every subcommand works against.
type env struct {
	cfg   config.Config
	store session.Store
	log   *log.Logger
}

func (c *commonFlags) open() (*env, error) {
	cfg, err := config.LoadLocal(c.envPath, c.tomlPath)
	if err != nil {
		return nil, err
	}
	store, err := session.Open(cfg.StateBackend, cfg.StatePath)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, store: store, log: log.New(os.Stderr, "[zebra] ", log.LstdFlags)}, nil
}

func (e *env) Close() error { return e.store.Close() }

func (e *env) transport() *printer.Transport {
	return printer.NewTransport(printer.Options{
		DialTimeout:  e.cfg.PrinterDialTimeout,
		WriteTimeout: e.cfg.PrinterWriteTimeout,
		DrainTimeout: e.cfg.PrinterDrainTimeout,
	}, e.log)
}

func (e *env) lockDir() string {
	return filepath.Join(filepath.Dir(e.cfg.StatePath), "locks")
}

// target picks the printer: flags, then config override, then the session.
func (e *env) target(c *commonFlags) (printer.Target, error) {
	host, port := strings.TrimSpace(c.host), c.port
	if host == "" {
		host = strings.TrimSpace(e.cfg.PrinterHost)
		if port == 0 {
			port = e.cfg.PrinterPort
		}
	}
	if host == "" {
		saved, err := e.store.Printer()
		if err != nil {
			return printer.Target{}, err
		}
		host = saved.Host
		if port == 0 {
			port = saved.Port
		}
	}
	return printer.Target{Host: host, Port: port}, nil
}
