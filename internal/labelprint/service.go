package labelprint

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"boxscan/internal/label"
	"boxscan/internal/printer"
	"boxscan/internal/session"
)

var ErrPrinterBusy = errors.New("printer band (boshqa ish yuborilmoqda)")

type Generator interface {
	Generate(ctx context.Context, p label.Params) (label.Payload, error)
}

type Sender interface {
	Send(ctx context.Context, target printer.Target, payload []byte) (printer.Result, error)
}

// PrinterSource yields the printer to use for the next job.
type PrinterSource interface {
	Printer() (session.PrinterConfig, error)
}

type Outcome struct {
	JobID   string
	BoxNo   string
	Addr    string
	Bytes   int
	Elapsed time.Duration
}

// Service runs generate-then-print. The printer address is read from the
// session for every job, so edits apply to the next label.
type Service struct {
	gen      Generator
	sender   Sender
	printers PrinterSource
	log      *log.Logger

	override    *session.PrinterConfig
	lockDir     string
	lockTimeout time.Duration
}

func New(gen Generator, sender Sender, printers PrinterSource, lg *log.Logger) *Service {
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	return &Service{
		gen:         gen,
		sender:      sender,
		printers:    printers,
		log:         lg,
		lockTimeout: 8 * time.Second,
	}
}

// WithOverride pins the printer, ignoring the session value. An empty host
// leaves the session in charge.
func (s *Service) WithOverride(host string, port int) *Service {
	host = strings.TrimSpace(host)
	if host == "" {
		return s
	}
	if port == 0 {
		port = session.DefaultPrinterPort
	}
	s.override = &session.PrinterConfig{Host: host, Port: port}
	return s
}

// WithLockDir sets where per-printer lock files live.
func (s *Service) WithLockDir(dir string) *Service {
	s.lockDir = dir
	return s
}

// Target resolves the printer for the next job.
func (s *Service) Target() (printer.Target, error) {
	if s.override != nil {
		return printer.Target{Host: s.override.Host, Port: s.override.Port}, nil
	}
	cfg, err := s.printers.Printer()
	if err != nil {
		return printer.Target{}, err
	}
	return printer.Target{Host: cfg.Host, Port: cfg.Port}, nil
}

// Submit generates the label and sends it. A generation failure of any kind
// means nothing is sent.
func (s *Service) Submit(ctx context.Context, p label.Params) (Outcome, error) {
	jobID := uuid.NewString()
	s.log.Printf("job start: id=%s box=%s volume=%s", jobID, p.BoxNo, label.FormatVolume(p.Volume))

	payload, err := s.gen.Generate(ctx, p)
	if err != nil {
		s.log.Printf("job aborted: id=%s stage=generate err=%v", jobID, err)
		return Outcome{JobID: jobID, BoxNo: p.BoxNo}, err
	}
	if !printer.LooksLikeZPL(payload.ZPL) {
		s.log.Printf("job warn: id=%s payload does not look like ^XA..^XZ", jobID)
	}
	return s.send(ctx, jobID, payload.BoxNo, []byte(payload.ZPL))
}

// SendRaw delivers an already built payload, used for test labels.
func (s *Service) SendRaw(ctx context.Context, payload []byte) (Outcome, error) {
	return s.send(ctx, uuid.NewString(), "", payload)
}

func (s *Service) send(ctx context.Context, jobID, boxNo string, payload []byte) (Outcome, error) {
	out := Outcome{JobID: jobID, BoxNo: boxNo}
	target, err := s.Target()
	if err != nil {
		s.log.Printf("job aborted: id=%s stage=printer-config err=%v", jobID, err)
		return out, err
	}
	out.Addr = target.Addr()

	err = withPrinterLock(ctx, s.lockDir, out.Addr, s.lockTimeout, func() error {
		res, err := s.sender.Send(ctx, target, payload)
		out.Bytes = res.Bytes
		out.Elapsed = res.Elapsed
		return err
	})
	if err != nil {
		s.log.Printf("job failed: id=%s addr=%s err=%v", jobID, out.Addr, err)
		return out, err
	}
	s.log.Printf("job done: id=%s addr=%s bytes=%d", jobID, out.Addr, out.Bytes)
	return out, nil
}
