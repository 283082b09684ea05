package workflow

import (
	"context"
	"errors"
	"sync"

	"boxscan/internal/label"
	"boxscan/internal/labelprint"
	"boxscan/internal/resolve"
	"boxscan/internal/scanbuf"
)

type LabelPhase int

const (
	PhaseScanCode LabelPhase = iota
	PhaseForm
	PhaseSubmitting
)

func (p LabelPhase) String() string {
	switch p {
	case PhaseForm:
		return "form"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "scan_code"
	}
}

// Printer generates and prints one label.
type Printer interface {
	Submit(ctx context.Context, p label.Params) (labelprint.Outcome, error)
}

type LabelView struct {
	Phase  LabelPhase
	Input  string
	Code   string
	Kind   resolve.Kind
	Params label.Params
}

// LabelScreen resolves a box or tracking code, lets the operator edit the
// label form and prints it.
type LabelScreen struct {
	observers

	ctx     context.Context
	deps    Deps
	printer Printer
	input   *scanbuf.Buffer

	mu    sync.Mutex
	phase LabelPhase
	code  string
	kind  resolve.Kind
	form  *label.Form
	gen   uint64
}

func NewLabelScreen(ctx context.Context, deps Deps, p Printer) *LabelScreen {
	s := &LabelScreen{ctx: ctx, deps: deps, printer: p}
	s.input = scanbuf.New(deps.Quiet, deps.Sched, s.onScan)
	return s
}

func (s *LabelScreen) Input() *scanbuf.Buffer { return s.input }

func (s *LabelScreen) View() LabelView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := LabelView{Phase: s.phase, Code: s.code, Kind: s.kind}
	if s.form != nil {
		v.Params = s.form.Params()
	}
	v.Input = s.input.Value()
	return v
}

func (s *LabelScreen) Leave() {
	s.mu.Lock()
	s.gen++
	s.closeFormLocked()
	s.mu.Unlock()
	s.input.Release()
	s.input.Clear()
	s.changed()
}

func (s *LabelScreen) onScan(ev scanbuf.Event) {
	s.input.Hold()
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	ctx, cancel := withTimeout(s.ctx)
	res, err := s.deps.Resolver.Detail(ctx, ev.Code)
	cancel()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.input.Release()
		return
	}
	var n *Notice
	switch {
	case err != nil:
		x := noticef(LevelError, s.deps.now(), "%s", describe(err))
		n = &x
	case res.Kind == resolve.KindNotFound:
		x := noticef(LevelWarn, s.deps.now(), msgBoxNotFound, res.Code)
		n = &x
	case res.Detail != nil:
		s.form = label.FormFromDetail(*res.Detail)
		s.code = res.Code
		s.kind = res.Kind
		s.phase = PhaseForm
	}
	s.mu.Unlock()

	if n != nil {
		// The field stays usable for the next code.
		s.input.Release()
		s.input.Clear()
		s.notify(*n)
	}
	s.changed()
}

// SetField edits one form value from operator text.
func (s *LabelScreen) SetField(field, raw string) error {
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.changed()
	}()
	if s.form == nil || s.phase != PhaseForm {
		return errors.New("forma ochiq emas")
	}
	return s.form.Set(field, raw)
}

// Cancel closes the form without printing.
func (s *LabelScreen) Cancel() {
	s.mu.Lock()
	s.closeFormLocked()
	s.mu.Unlock()
	s.input.Release()
	s.input.Clear()
	s.changed()
}

// Submit validates the form and prints the label. An invalid form stays
// open; any other outcome closes it and empties the field.
func (s *LabelScreen) Submit() (labelprint.Outcome, error) {
	s.mu.Lock()
	if s.form == nil || s.phase != PhaseForm {
		s.mu.Unlock()
		return labelprint.Outcome{}, errors.New("forma ochiq emas")
	}
	p := s.form.Params()
	if err := p.Validate(); err != nil {
		s.mu.Unlock()
		var ve *label.ValidationError
		errors.As(err, &ve)
		s.notify(noticef(LevelWarn, s.deps.now(), "%s", validationMessage(ve, p.Volume)))
		return labelprint.Outcome{}, err
	}
	s.phase = PhaseSubmitting
	gen := s.gen
	s.mu.Unlock()
	s.changed()

	ctx, cancel := withTimeout(s.ctx)
	out, err := s.printer.Submit(ctx, p)
	cancel()

	s.mu.Lock()
	if gen == s.gen {
		s.closeFormLocked()
	}
	s.mu.Unlock()
	s.input.Release()
	s.input.Clear()

	if err != nil {
		s.deps.logger().Printf("label failed: box=%s err=%v", p.BoxNo, err)
		s.notify(noticef(LevelError, s.deps.now(), "%s", describe(err)))
	} else {
		s.notify(noticef(LevelInfo, s.deps.now(), msgLabelPrinted, out.BoxNo))
	}
	s.changed()
	return out, err
}

func (s *LabelScreen) closeFormLocked() {
	s.form = nil
	s.code = ""
	s.kind = resolve.KindNone
	s.phase = PhaseScanCode
}
