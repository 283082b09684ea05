package scanbuf

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/tarm/serial"
)

const serialReadTimeout = 250 * time.Millisecond

// Feed copies raw bytes from r into buf until ctx ends, r reports io.EOF or
// r fails. A zero-byte read with a nil error is skipped.
func Feed(ctx context.Context, r io.Reader, buf *Buffer) error {
	chunk := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := r.Read(chunk)
		if n > 0 {
			buf.Append(string(chunk[:n]))
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// OpenSerial opens a serial barcode scanner. Reads time out every 250ms so
// Feed can observe cancellation.
func OpenSerial(device string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        strings.TrimSpace(device),
		Baud:        baud,
		ReadTimeout: serialReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// RunSerial keeps a serial scanner attached to buf, reopening the port after
// open or read failures until ctx ends.
func RunSerial(ctx context.Context, device string, baud int, buf *Buffer, lg *log.Logger) {
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	lg.Printf("start: device=%s baud=%d", strings.TrimSpace(device), baud)
	for {
		if ctx.Err() != nil {
			return
		}

		port, err := OpenSerial(device, baud)
		if err != nil {
			lg.Printf("open error: %v", err)
			if !sleepWithContext(ctx, 900*time.Millisecond) {
				return
			}
			continue
		}

		lg.Printf("port opened: device=%s baud=%d", device, baud)
		err = Feed(ctx, &idlePort{r: port, timeout: serialReadTimeout}, buf)
		_ = port.Close()
		lg.Printf("port closed: device=%s err=%v", device, err)

		if !sleepWithContext(ctx, 400*time.Millisecond) {
			return
		}
	}
}

// A run of instant empty reads means the device went away.
const maxInstantEOF = 3

// idlePort hides the (0, io.EOF) a serial port returns when a read times
// out with nothing received.
type idlePort struct {
	r       io.Reader
	timeout time.Duration
	instant int
}

func (p *idlePort) Read(b []byte) (int, error) {
	started := time.Now()
	n, err := p.r.Read(b)
	if n > 0 || !errors.Is(err, io.EOF) {
		p.instant = 0
		return n, err
	}
	if time.Since(started) >= p.timeout/4 {
		p.instant = 0
		return 0, nil
	}
	p.instant++
	if p.instant >= maxInstantEOF {
		return 0, io.EOF
	}
	return 0, nil
}

// FeedLines commits one scan per line of r. A line that arrives while the
// field is held waits until it is released.
func FeedLines(ctx context.Context, r io.Reader, buf *Buffer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(stripControl(sc.Text()))
		if line == "" {
			continue
		}
		for !buf.Change(line) {
			if !sleepWithContext(ctx, 50*time.Millisecond) {
				return nil
			}
		}
		buf.Commit()
		if ctx.Err() != nil {
			return nil
		}
	}
	return sc.Err()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
