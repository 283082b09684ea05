package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const (
	keyOpenBox        = "open_box"
	keyScannerVisible = "scanner_visible"
	keyPrinter        = "printer"
)

// SQLiteStore keeps session values as JSON in a key/value table.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir session dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS session_state (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create session_state schema: %w", err)
	}
	return nil
}

// get decodes key into dest and reports whether the key was present.
func (s *SQLiteStore) get(key string, dest any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM session_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) set(key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO session_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, string(b))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM session_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) OpenBox() (OpenBox, bool, error) {
	var box OpenBox
	ok, err := s.get(keyOpenBox, &box)
	if err != nil || !ok || box.BoxNo == "" {
		return OpenBox{}, false, err
	}
	return box, true, nil
}

func (s *SQLiteStore) SetOpenBox(box OpenBox) error {
	box, err := normalizeOpenBox(box)
	if err != nil {
		return err
	}
	return s.set(keyOpenBox, box)
}

func (s *SQLiteStore) ClearOpenBox() error {
	return s.delete(keyOpenBox)
}

func (s *SQLiteStore) ScannerVisible() (bool, error) {
	var visible bool
	_, err := s.get(keyScannerVisible, &visible)
	return visible, err
}

func (s *SQLiteStore) SetScannerVisible(visible bool) error {
	return s.set(keyScannerVisible, visible)
}

func (s *SQLiteStore) Printer() (PrinterConfig, error) {
	var cfg PrinterConfig
	ok, err := s.get(keyPrinter, &cfg)
	if err != nil || !ok {
		return DefaultPrinter(), err
	}
	return cfg, nil
}

func (s *SQLiteStore) SetPrinter(cfg PrinterConfig) error {
	cfg, err := normalizePrinter(cfg)
	if err != nil {
		return err
	}
	return s.set(keyPrinter, cfg)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
