package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"boxscan/internal/assign"
	"boxscan/internal/resolve"
	"boxscan/internal/scanbuf"
	"boxscan/internal/session"
	"boxscan/internal/vipapi"
)

type BoxPhase int

const (
	// PhaseScanBox waits for a box number.
	PhaseScanBox BoxPhase = iota
	// PhaseConfirm shows a found box and asks whether to start filling it.
	PhaseConfirm
	// PhaseTracking assigns every scan to the open box.
	PhaseTracking
)

func (p BoxPhase) String() string {
	switch p {
	case PhaseConfirm:
		return "confirm"
	case PhaseTracking:
		return "tracking"
	default:
		return "scan_box"
	}
}

// BoxView is a copy of the box screen state.
type BoxView struct {
	Phase          BoxPhase
	Input          string
	Busy           bool
	OpenBox        session.OpenBox
	HasOpenBox     bool
	Box            *vipapi.Box
	ScannerVisible bool
}

// BoxScreen fills one box at a time: scan the box, confirm, scan trackings,
// finish. All remote results are checked against the screen generation and
// dropped when the operator has moved on.
type BoxScreen struct {
	observers

	ctx   context.Context
	deps  Deps
	input *scanbuf.Buffer

	mu      sync.Mutex
	phase   BoxPhase
	open    session.OpenBox
	hasOpen bool
	box     *vipapi.Box
	visible bool
	busy    bool
	gen     uint64
}

func NewBoxScreen(ctx context.Context, deps Deps) *BoxScreen {
	s := &BoxScreen{ctx: ctx, deps: deps}
	s.input = scanbuf.New(deps.Quiet, deps.Sched, s.onScan)
	return s
}

// Input is the capture field feeding this screen.
func (s *BoxScreen) Input() *scanbuf.Buffer { return s.input }

func (s *BoxScreen) View() BoxView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := BoxView{
		Phase:          s.phase,
		Busy:           s.busy,
		OpenBox:        s.open,
		HasOpenBox:     s.hasOpen,
		ScannerVisible: s.visible,
	}
	if s.box != nil {
		b := *s.box
		b.Waybills = append([]vipapi.Tracking(nil), s.box.Waybills...)
		v.Box = &b
	}
	v.Input = s.input.Value()
	return v
}

// Restore reloads the open box saved by a previous run and resolves it again.
func (s *BoxScreen) Restore() error {
	lg := s.deps.logger()
	visible, err := s.deps.Session.ScannerVisible()
	if err != nil {
		lg.Printf("restore: scanner visibility read failed: %v", err)
	}
	open, ok, err := s.deps.Session.OpenBox()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	lg.Printf("restore: open box=%s id=%d visible=%v", open.BoxNo, open.BoxID, visible)

	s.mu.Lock()
	s.open, s.hasOpen, s.visible = open, true, visible
	s.mu.Unlock()

	s.lookupBox(open.BoxNo, s.currentGen())
	if visible {
		s.mu.Lock()
		if s.box != nil && s.phase == PhaseConfirm {
			s.phase = PhaseTracking
		}
		s.mu.Unlock()
		s.changed()
	}
	return nil
}

// Leave invalidates every result still in flight and empties the field.
func (s *BoxScreen) Leave() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	s.input.Clear()
	s.changed()
}

func (s *BoxScreen) currentGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *BoxScreen) onScan(ev scanbuf.Event) {
	gen := s.currentGen()
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()

	if phase == PhaseTracking {
		s.assignTracking(ev.Code, gen)
		return
	}
	s.lookupBox(ev.Code, gen)
}

func (s *BoxScreen) lookupBox(code string, gen uint64) {
	s.begin()
	ctx, cancel := withTimeout(s.ctx)
	res, err := s.deps.Resolver.Box(ctx, code)
	cancel()

	s.mu.Lock()
	if gen != s.gen {
		s.busy = false
		s.mu.Unlock()
		s.input.Release()
		return
	}
	s.busy = false
	var notice *Notice
	switch {
	case err != nil:
		s.dropOpenBoxLocked()
		n := noticef(LevelError, s.deps.now(), "%s", describe(err))
		notice = &n
	case res.Kind == resolve.KindNotFound:
		s.dropOpenBoxLocked()
		n := noticef(LevelWarn, s.deps.now(), msgBoxNotFound, res.Code)
		notice = &n
	case res.Kind == resolve.KindBox:
		s.box = res.Box
		s.open = session.OpenBox{BoxNo: res.Box.BoxNo, BoxID: res.Box.ID}
		s.hasOpen = true
		if s.phase == PhaseScanBox {
			s.phase = PhaseConfirm
		}
		if err := s.deps.Session.SetOpenBox(s.open); err != nil {
			s.deps.logger().Printf("session: open box save failed: %v", err)
		}
	}
	s.mu.Unlock()

	s.input.Release()
	if notice != nil || res.Kind == resolve.KindBox {
		s.input.Clear()
	}
	if notice != nil {
		s.notify(*notice)
	}
	s.changed()
}

// dropOpenBoxLocked forgets the open box locally and in the session.
func (s *BoxScreen) dropOpenBoxLocked() {
	s.box = nil
	s.open = session.OpenBox{}
	s.hasOpen = false
	s.phase = PhaseScanBox
	if err := s.deps.Session.ClearOpenBox(); err != nil {
		s.deps.logger().Printf("session: open box clear failed: %v", err)
	}
}

func (s *BoxScreen) assignTracking(code string, gen uint64) {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()

	s.begin()
	ctx, cancel := withTimeout(s.ctx)
	rep := s.deps.Assign.Assign(ctx, open, code)
	cancel()

	s.input.Clear()
	s.applyReport(rep, gen)
}

// Remove unassigns a listed tracking from the open box.
func (s *BoxScreen) Remove(trackingNumber string) error {
	gen := s.currentGen()
	s.mu.Lock()
	open, box := s.open, s.box
	s.mu.Unlock()
	if box == nil {
		return assign.ErrNoBox
	}
	t, ok := box.Waybill(strings.TrimSpace(trackingNumber))
	if !ok {
		return assign.ErrNotAssigned
	}

	s.begin()
	ctx, cancel := withTimeout(s.ctx)
	rep := s.deps.Assign.Unassign(ctx, open, t)
	cancel()
	s.applyReport(rep, gen)
	return rep.Err
}

// applyReport releases the field and replaces the box with the server's
// view. Local waybills are never patched.
func (s *BoxScreen) applyReport(rep assign.Report, gen uint64) {
	s.input.Release()
	now := s.deps.now()
	s.mu.Lock()
	s.busy = false
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	var n Notice
	switch {
	case rep.Err != nil:
		n = noticef(LevelError, now, "%s", assignFailure(rep.Err))
	case rep.Box == nil:
		n = noticef(LevelWarn, now, "%s", describe(rep.RefetchErr))
	default:
		s.box = rep.Box
		s.open.BoxID = rep.Box.ID
		if rep.Unassign {
			n = noticef(LevelInfo, now, msgTrackingRemoved, rep.TrackingNumber)
		} else {
			n = noticef(LevelInfo, now, msgTrackingAdded, rep.TrackingNumber)
		}
	}
	s.mu.Unlock()
	s.notify(n)
	s.changed()
}

// assignFailure prefers the server reason and falls back to the generic
// tracking message.
func assignFailure(err error) string {
	var he *vipapi.HTTPError
	switch {
	case errors.As(err, &he) && he.Message != "":
		return he.Message
	case errors.Is(err, assign.ErrNotAssigned), errors.Is(err, assign.ErrNoBox):
		return describe(err)
	case errors.Is(err, vipapi.ErrUnauthorized):
		return msgUnauthorized
	}
	return msgTrackingFailed
}

// StartScanning accepts the found box and switches the field to trackings.
func (s *BoxScreen) StartScanning() error {
	s.mu.Lock()
	if s.box == nil || !s.hasOpen {
		s.mu.Unlock()
		return assign.ErrNoBox
	}
	s.phase = PhaseTracking
	s.visible = true
	s.mu.Unlock()

	if err := s.deps.Session.SetScannerVisible(true); err != nil {
		s.deps.logger().Printf("session: scanner visibility save failed: %v", err)
	}
	s.input.Clear()
	s.changed()
	return nil
}

// ScanNewBox abandons the found box and waits for another box number.
func (s *BoxScreen) ScanNewBox() {
	s.mu.Lock()
	s.gen++
	s.dropOpenBoxLocked()
	s.visible = false
	s.mu.Unlock()
	if err := s.deps.Session.SetScannerVisible(false); err != nil {
		s.deps.logger().Printf("session: scanner visibility save failed: %v", err)
	}
	s.input.Clear()
	s.changed()
}

// Refresh fetches the open box again.
func (s *BoxScreen) Refresh() {
	s.mu.Lock()
	code, ok := s.open.BoxNo, s.hasOpen
	s.mu.Unlock()
	if !ok {
		return
	}
	s.lookupBox(code, s.currentGen())
}

// Finish activates the open box. The screen is reset as soon as the call is
// issued; the returned error is the server's answer.
func (s *BoxScreen) Finish() error {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if open.BoxID == 0 {
		return assign.ErrNoBox
	}

	ctx, cancel := withTimeout(s.ctx)
	defer cancel()
	err := s.deps.Assign.Finish(ctx, open.BoxID, s.reset)
	if err != nil {
		s.notify(noticef(LevelError, s.deps.now(), "%s", describe(err)))
		return err
	}
	s.notify(noticef(LevelInfo, s.deps.now(), msgBoxFinished, open.BoxNo))
	return nil
}

func (s *BoxScreen) reset() {
	s.mu.Lock()
	s.gen++
	s.dropOpenBoxLocked()
	s.visible = false
	s.mu.Unlock()
	if err := s.deps.Session.SetScannerVisible(false); err != nil {
		s.deps.logger().Printf("session: scanner visibility save failed: %v", err)
	}
	s.input.Clear()
	s.changed()
}

func (s *BoxScreen) begin() {
	s.input.Hold()
	s.mu.Lock()
	s.busy = true
	s.mu.Unlock()
	s.changed()
}
