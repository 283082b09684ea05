package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const DefaultPort = 9100

var ErrEmptyPayload = errors.New("payload bo'sh")

type FailureKind int

const (
	FailNone FailureKind = iota
	FailConnect
	FailWrite
	FailPrematureClose
)

func (k FailureKind) String() string {
	switch k {
	case FailConnect:
		return "connect"
	case FailWrite:
		return "write"
	case FailPrematureClose:
		return "premature_close"
	default:
		return "none"
	}
}

// Error is a failed print job.
type Error struct {
	Kind FailureKind
	Addr string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case FailConnect:
		return fmt.Sprintf("connection failed: %s: %v", e.Addr, e.Err)
	case FailWrite:
		return fmt.Sprintf("write failed: %s: %v", e.Addr, e.Err)
	case FailPrematureClose:
		if e.Err == nil {
			return fmt.Sprintf("printer closed connection early: %s", e.Addr)
		}
		return fmt.Sprintf("printer closed connection early: %s: %v", e.Addr, e.Err)
	default:
		return fmt.Sprintf("printer error: %s: %v", e.Addr, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Target is a raw-socket printer endpoint.
type Target struct {
	Host string
	Port int
}

func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(strings.TrimSpace(t.Host), strconv.Itoa(port))
}

type Options struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// DrainTimeout bounds the wait for the printer to close after the
	// payload is written. Expiry is not a failure.
	DrainTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 750 * time.Millisecond
	}
	return o
}

type Result struct {
	Addr    string
	Bytes   int
	Trail   []State
	Elapsed time.Duration
}

// Transport delivers payloads over one fresh TCP connection per job. It
// never retries.
type Transport struct {
	opts Options
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
	log  *log.Logger
}

func NewTransport(opts Options, lg *log.Logger) *Transport {
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	opts = opts.withDefaults()
	d := &net.Dialer{Timeout: opts.DialTimeout}
	return &Transport{opts: opts, dial: d.DialContext, log: lg}
}

func (t *Transport) Options() Options { return t.opts }

// Send writes payload to target and reports success only when the whole
// payload was written and the printer did not drop the connection first.
func (t *Transport) Send(ctx context.Context, target Target, payload []byte) (Result, error) {
	addr := target.Addr()
	if len(payload) == 0 {
		t.log.Printf("send rejected: addr=%s empty payload", addr)
		return Result{Addr: addr}, &Error{Kind: FailWrite, Addr: addr, Err: ErrEmptyPayload}
	}
	started := time.Now()
	m := NewMachine()
	res := Result{Addr: addr}
	finish := func(err error) (Result, error) {
		res.Trail = m.Trail()
		res.Elapsed = time.Since(started)
		if err != nil {
			t.log.Printf("send failed: addr=%s kind=%s bytes=%d/%d err=%v", addr, m.Failure(), res.Bytes, len(payload), err)
		} else {
			t.log.Printf("send ok: addr=%s bytes=%d took=%s", addr, res.Bytes, res.Elapsed.Round(time.Millisecond))
		}
		return res, err
	}

	if strings.TrimSpace(target.Host) == "" {
		m.Fire(EvDial)
		m.Fire(EvConnectFailed)
		return finish(&Error{Kind: FailConnect, Addr: addr, Err: errors.New("printer host bo'sh")})
	}
	m.Fire(EvDial)
	dialCtx, cancel := context.WithTimeout(ctx, t.opts.DialTimeout)
	conn, err := t.dial(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		m.Fire(EvConnectFailed)
		return finish(&Error{Kind: FailConnect, Addr: addr, Err: err})
	}
	m.Fire(EvConnected)
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	peer := make(chan error, 1)
	go watchPeer(conn, peer)

	_ = conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	n, werr := writeAll(conn, payload)
	res.Bytes = n

	// The printer may have gone away while the kernel still accepted bytes.
	select {
	case perr := <-peer:
		m.Fire(peerEvent(perr))
		return finish(&Error{Kind: FailPrematureClose, Addr: addr, Err: peerCause(perr)})
	default:
	}

	if werr != nil {
		if isReset(werr) {
			m.Fire(EvPeerReset)
			return finish(&Error{Kind: FailPrematureClose, Addr: addr, Err: werr})
		}
		if ctx.Err() != nil {
			werr = ctx.Err()
		}
		m.Fire(EvWriteFailed)
		return finish(&Error{Kind: FailWrite, Addr: addr, Err: werr})
	}
	m.Fire(EvWritten)

	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	deadline := time.Now().Add(t.opts.DrainTimeout)
	drain := time.NewTimer(t.opts.DrainTimeout)
	defer drain.Stop()
	select {
	case perr := <-peer:
		if isReset(perr) {
			m.Fire(EvPeerReset)
			return finish(&Error{Kind: FailPrematureClose, Addr: addr, Err: perr})
		}
		// A printer that closes without reading leaves our bytes unacknowledged
		// and answers them with a reset.
		if uerr := confirmAcked(ctx, conn, deadline); uerr != nil {
			m.Fire(EvUnacked)
			return finish(&Error{Kind: FailPrematureClose, Addr: addr, Err: uerr})
		}
		m.Fire(EvPeerClosed)
	case <-drain.C:
	case <-ctx.Done():
	}

	_ = conn.Close()
	if m.Fire(EvClosed) != ClosedSuccess {
		return finish(&Error{Kind: m.Failure(), Addr: addr, Err: errors.New("unexpected state " + m.State().String())})
	}
	return finish(nil)
}

type sendQueue struct {
	Unacked int
	Err     error
}

// confirmAcked waits until the peer has acknowledged everything written.
// Platforms without send-queue introspection report success.
func confirmAcked(ctx context.Context, conn net.Conn, deadline time.Time) error {
	for {
		q, ok := readSendQueue(conn)
		if !ok {
			return nil
		}
		if q.Err != nil {
			return q.Err
		}
		if q.Unacked == 0 {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%d bytes unacknowledged", q.Unacked)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func writeAll(w io.Writer, payload []byte) (int, error) {
	total := 0
	for total < len(payload) {
		n, err := w.Write(payload[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// watchPeer reads until the connection ends and reports why. Printers on
// port 9100 rarely talk back, so any read result is just drained.
func watchPeer(conn net.Conn, out chan<- error) {
	buf := make([]byte, 512)
	for {
		if _, err := conn.Read(buf); err != nil {
			out <- err
			return
		}
	}
}

func peerEvent(err error) Event {
	if isReset(err) {
		return EvPeerReset
	}
	return EvPeerClosed
}

func peerCause(err error) error {
	if errors.Is(err, io.EOF) {
		return errors.New("peer closed before write completed")
	}
	return err
}

func isReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}
