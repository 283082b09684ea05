package session

import (
	"fmt"
	"strings"
)

// Open returns the store for backend "file" or "sqlite".
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("session backend noma'lum: %q", backend)
	}
}
