package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// FileStore keeps the session as one JSON document. Writers serialize on a
// flock'd sidecar and replace the file atomically.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: strings.TrimSpace(path)}
}

func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *FileStore) Read() (Snapshot, error) {
	if s == nil || s.path == "" {
		return Snapshot{}, errors.New("session state path bo'sh")
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	var out Snapshot
	if err := json.Unmarshal(b, &out); err != nil {
		return Snapshot{}, fmt.Errorf("session state json parse: %w", err)
	}
	return out, nil
}

func (s *FileStore) Update(mutator func(*Snapshot)) error {
	if s == nil || s.path == "" {
		return errors.New("session state path bo'sh")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir session dir: %w", err)
	}

	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("lock session state: %w", err)
	}
	defer unlock()

	cur := Snapshot{}
	if b, err := os.ReadFile(s.path); err == nil {
		_ = json.Unmarshal(b, &cur)
	}

	if mutator != nil {
		mutator(&cur)
	}
	cur.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	b, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp session state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename session state: %w", err)
	}
	return nil
}

func (s *FileStore) OpenBox() (OpenBox, bool, error) {
	snap, err := s.Read()
	if err != nil || snap.OpenBox == nil || snap.OpenBox.BoxNo == "" {
		return OpenBox{}, false, err
	}
	return *snap.OpenBox, true, nil
}

func (s *FileStore) SetOpenBox(box OpenBox) error {
	box, err := normalizeOpenBox(box)
	if err != nil {
		return err
	}
	return s.Update(func(snap *Snapshot) { snap.OpenBox = &box })
}

func (s *FileStore) ClearOpenBox() error {
	return s.Update(func(snap *Snapshot) { snap.OpenBox = nil })
}

func (s *FileStore) ScannerVisible() (bool, error) {
	snap, err := s.Read()
	if err != nil || snap.ScannerVisible == nil {
		return false, err
	}
	return *snap.ScannerVisible, nil
}

func (s *FileStore) SetScannerVisible(visible bool) error {
	return s.Update(func(snap *Snapshot) { snap.ScannerVisible = &visible })
}

func (s *FileStore) Printer() (PrinterConfig, error) {
	snap, err := s.Read()
	if err != nil {
		return DefaultPrinter(), err
	}
	if snap.Printer == nil {
		return DefaultPrinter(), nil
	}
	return *snap.Printer, nil
}

func (s *FileStore) SetPrinter(cfg PrinterConfig) error {
	cfg, err := normalizePrinter(cfg)
	if err != nil {
		return err
	}
	return s.Update(func(snap *Snapshot) { snap.Printer = &cfg })
}

func (s *FileStore) Close() error { return nil }

func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, err
	}
	unlock := func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}
	return unlock, nil
}
