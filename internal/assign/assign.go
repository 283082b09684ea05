package assign

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"boxscan/internal/session"
	"boxscan/internal/vipapi"
)

var (
	ErrNoBox           = errors.New("ochiq quti yo'q")
	ErrEmptyTracking   = errors.New("trek raqam bo'sh")
	ErrNotAssigned     = errors.New("trek raqam bu qutiga biriktirilmagan")
	ErrAlreadyFinished = errors.New("quti allaqachon yakunlangan")
)

type API interface {
	SetAssignment(ctx context.Context, boxID int64, trackingNumber string, unassign bool) error
	ActivateBox(ctx context.Context, boxID int64) error
	BoxByNumber(ctx context.Context, boxNo string) (*vipapi.Box, error)
}

// Report is the outcome of one assign or unassign. After a successful
// mutation Box holds the server's view of the box, fetched again; local
// state must be replaced from it, never patched.
type Report struct {
	BoxID          int64
	BoxNo          string
	TrackingNumber string
	Unassign       bool

	// Err is the mutation failure, nil on success.
	Err error
	// Box is nil when Err is set or the refetch failed (see RefetchErr).
	Box        *vipapi.Box
	RefetchErr error
}

func (r Report) OK() bool { return r.Err == nil }

// Coordinator issues assignment mutations. Calls are not sequenced; two
// mutations in flight complete in whatever order the server answers.
type Coordinator struct {
	api API
	log *log.Logger

	mu       sync.Mutex
	finished map[int64]bool
}

func New(api API, lg *log.Logger) *Coordinator {
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	return &Coordinator{api: api, log: lg, finished: make(map[int64]bool)}
}

// Assign attaches trackingNumber to the open box. Repeating it is safe.
func (c *Coordinator) Assign(ctx context.Context, box session.OpenBox, trackingNumber string) Report {
	return c.mutate(ctx, box, strings.TrimSpace(trackingNumber), false)
}

// Unassign detaches t from the open box. t must currently reference it.
func (c *Coordinator) Unassign(ctx context.Context, box session.OpenBox, t vipapi.Tracking) Report {
	if box.BoxID != 0 && !t.AssignedTo(box.BoxID) {
		return Report{BoxID: box.BoxID, BoxNo: box.BoxNo, TrackingNumber: t.TrackingNumber, Unassign: true, Err: ErrNotAssigned}
	}
	return c.mutate(ctx, box, strings.TrimSpace(t.TrackingNumber), true)
}

func (c *Coordinator) mutate(ctx context.Context, box session.OpenBox, tn string, unassign bool) Report {
	rep := Report{BoxID: box.BoxID, BoxNo: box.BoxNo, TrackingNumber: tn, Unassign: unassign}
	switch {
	case box.BoxID == 0:
		rep.Err = ErrNoBox
		return rep
	case tn == "":
		rep.Err = ErrEmptyTracking
		return rep
	}

	if err := c.api.SetAssignment(ctx, box.BoxID, tn, unassign); err != nil {
		c.log.Printf("assignment failed: box=%d tracking=%s unassign=%v err=%v", box.BoxID, tn, unassign, err)
		rep.Err = fmt.Errorf("%s: %w", tn, err)
		return rep
	}
	c.log.Printf("assignment ok: box=%d tracking=%s unassign=%v", box.BoxID, tn, unassign)

	fresh, err := c.api.BoxByNumber(ctx, box.BoxNo)
	switch {
	case err != nil:
		rep.RefetchErr = err
	case fresh == nil:
		rep.RefetchErr = fmt.Errorf("box %s refetch: not found", box.BoxNo)
	default:
		rep.Box = fresh
	}
	if rep.RefetchErr != nil {
		c.log.Printf("refetch failed: box=%s err=%v", box.BoxNo, rep.RefetchErr)
	}
	return rep
}

// Finish activates the box once. clear runs right after the call is issued,
// before the server answers, so the workstation is ready for the next box
// whatever the outcome. The returned error is the activation result.
func (c *Coordinator) Finish(ctx context.Context, boxID int64, clear func()) error {
	if boxID == 0 {
		return ErrNoBox
	}
	c.mu.Lock()
	if c.finished[boxID] {
		c.mu.Unlock()
		return ErrAlreadyFinished
	}
	c.finished[boxID] = true
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.api.ActivateBox(ctx, boxID) }()
	if clear != nil {
		clear()
	}

	err := <-done
	if err != nil {
		// A failed activation may be retried after the box is scanned again.
		c.mu.Lock()
		delete(c.finished, boxID)
		c.mu.Unlock()
		c.log.Printf("finish failed: box=%d err=%v", boxID, err)
		return fmt.Errorf("activate box %d: %w", boxID, err)
	}
	c.log.Printf("finish ok: box=%d", boxID)
	return nil
}
