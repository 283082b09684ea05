package assign

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"boxscan/internal/session"
	"boxscan/internal/vipapi"
)

type call struct {
	boxID    int64
	tn       string
	unassign bool
}

// fakeAPI keeps a server-side set of assignments.
type fakeAPI struct {
	mu        sync.Mutex
	assigned  map[string]bool
	calls     []call
	fetches   int
	assignErr error
	fetchErr  error

	activate        chan struct{}
	activateErr     error
	activateStarted chan struct{}
}

func newFake() *fakeAPI {
	return &fakeAPI{assigned: make(map[string]bool)}
}

func (f *fakeAPI) SetAssignment(_ context.Context, boxID int64, tn string, unassign bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{boxID, tn, unassign})
	if f.assignErr != nil {
		return f.assignErr
	}
	if unassign {
		delete(f.assigned, tn)
	} else {
		f.assigned[tn] = true
	}
	return nil
}

func (f *fakeAPI) ActivateBox(_ context.Context, _ int64) error {
	if f.activateStarted != nil {
		close(f.activateStarted)
	}
	if f.activate != nil {
		<-f.activate
	}
	return f.activateErr
}

func (f *fakeAPI) BoxByNumber(_ context.Context, boxNo string) (*vipapi.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	id := int64(7)
	box := &vipapi.Box{ID: id, BoxNo: boxNo}
	for tn := range f.assigned {
		box.Waybills = append(box.Waybills, vipapi.Tracking{TrackingNumber: tn, BoxID: &id})
	}
	return box, nil
}

var open = session.OpenBox{BoxNo: "BX-7", BoxID: 7}

func TestAssignRefetchesAuthoritativeBox(t *testing.T) {
	api := newFake()
	c := New(api, nil)

	rep := c.Assign(context.Background(), open, " TRK-1 ")
	if !rep.OK() {
		t.Fatalf("Assign error: %v", rep.Err)
	}
	if len(api.calls) != 1 || api.calls[0] != (call{7, "TRK-1", false}) {
		t.Fatalf("calls mismatch: %+v", api.calls)
	}
	if api.fetches != 1 || rep.Box == nil {
		t.Fatalf("refetch missing: fetches=%d box=%v", api.fetches, rep.Box)
	}
	if _, ok := rep.Box.Waybill("TRK-1"); !ok {
		t.Fatalf("refetched box missing waybill: %+v", rep.Box)
	}
}

func TestAssignIsIdempotent(t *testing.T) {
	api := newFake()
	c := New(api, nil)

	first := c.Assign(context.Background(), open, "TRK-1")
	second := c.Assign(context.Background(), open, "TRK-1")
	if !first.OK() || !second.OK() {
		t.Fatalf("errors: %v %v", first.Err, second.Err)
	}
	if len(second.Box.Waybills) != 1 {
		t.Fatalf("double assignment visible: %+v", second.Box.Waybills)
	}
}

func TestUnassignRoundTrip(t *testing.T) {
	api := newFake()
	c := New(api, nil)

	rep := c.Assign(context.Background(), open, "TRK-1")
	w, _ := rep.Box.Waybill("TRK-1")

	rep = c.Unassign(context.Background(), open, w)
	if !rep.OK() {
		t.Fatalf("Unassign error: %v", rep.Err)
	}
	if api.calls[1] != (call{7, "TRK-1", true}) {
		t.Fatalf("unassign call mismatch: %+v", api.calls[1])
	}
	if len(rep.Box.Waybills) != 0 {
		t.Fatalf("box not restored: %+v", rep.Box.Waybills)
	}
}

func TestUnassignRequiresReference(t *testing.T) {
	api := newFake()
	c := New(api, nil)

	other := int64(99)
	rep := c.Unassign(context.Background(), open, vipapi.Tracking{TrackingNumber: "TRK-1", BoxID: &other})
	if !errors.Is(rep.Err, ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned, got %v", rep.Err)
	}
	rep = c.Unassign(context.Background(), open, vipapi.Tracking{TrackingNumber: "TRK-1"})
	if !errors.Is(rep.Err, ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned for unassigned tracking, got %v", rep.Err)
	}
	if len(api.calls) != 0 {
		t.Fatalf("remote call made: %+v", api.calls)
	}
}

func TestAssignFailureCarriesTrackingAndReason(t *testing.T) {
	api := newFake()
	api.assignErr = &vipapi.HTTPError{Op: "assign", Status: 400, Message: "Tracking not found"}
	c := New(api, nil)

	rep := c.Assign(context.Background(), open, "TRK-404")
	if rep.OK() {
		t.Fatalf("expected failure")
	}
	if rep.TrackingNumber != "TRK-404" {
		t.Fatalf("tracking mismatch: %q", rep.TrackingNumber)
	}
	if vipapi.Reason(rep.Err) != "Tracking not found" {
		t.Fatalf("reason mismatch: %q", vipapi.Reason(rep.Err))
	}
	if api.fetches != 0 || rep.Box != nil {
		t.Fatalf("refetch after failed mutation")
	}
}

func TestAssignGuards(t *testing.T) {
	c := New(newFake(), nil)
	if rep := c.Assign(context.Background(), session.OpenBox{BoxNo: "BX"}, "TRK"); !errors.Is(rep.Err, ErrNoBox) {
		t.Fatalf("expected ErrNoBox, got %v", rep.Err)
	}
	if rep := c.Assign(context.Background(), open, "  "); !errors.Is(rep.Err, ErrEmptyTracking) {
		t.Fatalf("expected ErrEmptyTracking, got %v", rep.Err)
	}
}

func TestRefetchFailureKeepsMutationSuccess(t *testing.T) {
	api := newFake()
	api.fetchErr = errors.New("timeout")
	rep := New(api, nil).Assign(context.Background(), open, "TRK-1")
	if !rep.OK() || rep.RefetchErr == nil || rep.Box != nil {
		t.Fatalf("report mismatch: %+v", rep)
	}
}

func TestFinishClearsBeforeResponse(t *testing.T) {
	api := newFake()
	api.activate = make(chan struct{})
	api.activateStarted = make(chan struct{})
	c := New(api, nil)

	cleared := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- c.Finish(context.Background(), 7, func() { close(cleared) })
	}()

	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatalf("clear not called while activation pending")
	}
	select {
	case err := <-result:
		t.Fatalf("Finish returned before server answered: %v", err)
	default:
	}

	close(api.activate)
	if err := <-result; err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	if err := c.Finish(context.Background(), 7, nil); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished, got %v", err)
	}
}

func TestFinishFailureAllowsRetry(t *testing.T) {
	api := newFake()
	api.activateErr = errors.New("502")
	c := New(api, nil)

	clears := 0
	if err := c.Finish(context.Background(), 7, func() { clears++ }); err == nil {
		t.Fatalf("expected error")
	}
	if clears != 1 {
		t.Fatalf("clear calls: %d", clears)
	}
	api.activateErr = nil
	if err := c.Finish(context.Background(), 7, nil); err != nil {
		t.Fatalf("retry error: %v", err)
	}
}
