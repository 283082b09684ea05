package labelprint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"syscall"
	"time"
)

var lockNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// withPrinterLock serializes jobs for one printer address across every
// process on this host (workstation UI and the zebra tool).
func withPrinterLock(ctx context.Context, dir, addr string, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "boxscan")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("lock dir ochilmadi: %w", err)
	}

	path := filepath.Join(dir, "printer-"+lockNameSanitizer.ReplaceAllString(addr, "_")+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return fmt.Errorf("lock file ochilmadi: %w", err)
	}
	defer f.Close()

	deadline := time.Now().Add(timeout)
	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			return fmt.Errorf("lock xato: %w", err)
		}
		if time.Now().After(deadline) {
			return ErrPrinterBusy
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}()

	return fn()
}
