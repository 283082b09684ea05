package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	DefaultPrinterHost = "192.168.68.0"
	DefaultPrinterPort = 9100
)

// OpenBox is the box currently being filled on this workstation.
// BoxID is zero until the server id is known.
type OpenBox struct {
	BoxNo string `json:"boxNo"`
	BoxID int64  `json:"boxId,omitempty"`
}

type PrinterConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultPrinter() PrinterConfig {
	return PrinterConfig{Host: DefaultPrinterHost, Port: DefaultPrinterPort}
}

func (p PrinterConfig) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p PrinterConfig) Validate() error {
	if strings.TrimSpace(p.Host) == "" {
		return errors.New("printer host bo'sh")
	}
	if strings.ContainsAny(p.Host, " \t/") {
		return fmt.Errorf("printer host noto'g'ri: %q", p.Host)
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("printer port noto'g'ri: %d", p.Port)
	}
	return nil
}

// Snapshot is the on-disk shape of the file backend. Nil fields were never set.
type Snapshot struct {
	OpenBox        *OpenBox       `json:"open_box,omitempty"`
	ScannerVisible *bool          `json:"scanner_visible,omitempty"`
	Printer        *PrinterConfig `json:"printer,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
}

// Store persists the workstation session across restarts. Writes are
// last-write-wins.
type Store interface {
	OpenBox() (OpenBox, bool, error)
	SetOpenBox(box OpenBox) error
	ClearOpenBox() error
	ScannerVisible() (bool, error)
	SetScannerVisible(visible bool) error
	// Printer returns the saved printer, or DefaultPrinter when none is saved.
	Printer() (PrinterConfig, error)
	SetPrinter(cfg PrinterConfig) error
	Close() error
}

func normalizeOpenBox(box OpenBox) (OpenBox, error) {
	box.BoxNo = strings.TrimSpace(box.BoxNo)
	if box.BoxNo == "" {
		return OpenBox{}, errors.New("box raqami bo'sh")
	}
	return box, nil
}

func normalizePrinter(cfg PrinterConfig) (PrinterConfig, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if err := cfg.Validate(); err != nil {
		return PrinterConfig{}, err
	}
	return cfg, nil
}
