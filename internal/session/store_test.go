package session

import (
	"os"
	"path/filepath"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	d := t.TempDir()

	file, err := Open("file", filepath.Join(d, "state", "session.json"))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	db, err := Open("sqlite", filepath.Join(d, "state", "session.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{"file": file, "sqlite": db}
}

func TestStoreOpenBoxRoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		if _, ok, err := s.OpenBox(); err != nil || ok {
			t.Fatalf("%s: empty store open box: ok=%v err=%v", name, ok, err)
		}
		if err := s.SetOpenBox(OpenBox{BoxNo: "  BX-100 ", BoxID: 7}); err != nil {
			t.Fatalf("%s: SetOpenBox error: %v", name, err)
		}
		got, ok, err := s.OpenBox()
		if err != nil || !ok {
			t.Fatalf("%s: OpenBox ok=%v err=%v", name, ok, err)
		}
		if got.BoxNo != "BX-100" || got.BoxID != 7 {
			t.Fatalf("%s: open box mismatch: %+v", name, got)
		}
		if err := s.ClearOpenBox(); err != nil {
			t.Fatalf("%s: ClearOpenBox error: %v", name, err)
		}
		if _, ok, _ := s.OpenBox(); ok {
			t.Fatalf("%s: open box still present after clear", name)
		}
	}
}

func TestStoreRejectsEmptyBoxNo(t *testing.T) {
	for name, s := range openStores(t) {
		if err := s.SetOpenBox(OpenBox{BoxNo: "  "}); err == nil {
			t.Fatalf("%s: expected error for empty box number", name)
		}
	}
}

func TestStorePrinterDefaultsAndOverride(t *testing.T) {
	for name, s := range openStores(t) {
		got, err := s.Printer()
		if err != nil {
			t.Fatalf("%s: Printer error: %v", name, err)
		}
		if got.Host != "192.168.68.0" || got.Port != 9100 {
			t.Fatalf("%s: default printer mismatch: %+v", name, got)
		}

		if err := s.SetPrinter(PrinterConfig{Host: " 10.1.2.3 ", Port: 6101}); err != nil {
			t.Fatalf("%s: SetPrinter error: %v", name, err)
		}
		got, _ = s.Printer()
		if got.Host != "10.1.2.3" || got.Port != 6101 {
			t.Fatalf("%s: printer mismatch: %+v", name, got)
		}
		if got.Addr() != "10.1.2.3:6101" {
			t.Fatalf("%s: addr mismatch: %s", name, got.Addr())
		}

		if err := s.SetPrinter(PrinterConfig{Host: "10.1.2.3", Port: 0}); err == nil {
			t.Fatalf("%s: expected port validation error", name)
		}
		if err := s.SetPrinter(PrinterConfig{Host: "", Port: 9100}); err == nil {
			t.Fatalf("%s: expected host validation error", name)
		}
		got, _ = s.Printer()
		if got.Port != 6101 {
			t.Fatalf("%s: rejected config overwrote saved one: %+v", name, got)
		}
	}
}

func TestStoreScannerVisible(t *testing.T) {
	for name, s := range openStores(t) {
		if v, err := s.ScannerVisible(); err != nil || v {
			t.Fatalf("%s: default visible=%v err=%v", name, v, err)
		}
		if err := s.SetScannerVisible(true); err != nil {
			t.Fatalf("%s: SetScannerVisible error: %v", name, err)
		}
		if v, _ := s.ScannerVisible(); !v {
			t.Fatalf("%s: visible not persisted", name)
		}
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	p := filepath.Join(t.TempDir(), "session.json")
	if err := NewFileStore(p).SetOpenBox(OpenBox{BoxNo: "BX-7"}); err != nil {
		t.Fatalf("SetOpenBox error: %v", err)
	}

	snap, err := NewFileStore(p).Read()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if snap.OpenBox == nil || snap.OpenBox.BoxNo != "BX-7" {
		t.Fatalf("open box mismatch: %+v", snap.OpenBox)
	}
	if snap.UpdatedAt == "" {
		t.Fatalf("updated_at empty")
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("redis", "x"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
