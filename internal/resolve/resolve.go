package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"boxscan/internal/vipapi"
)

type Kind int

const (
	// KindNone: the code was blank and no lookup was made.
	KindNone Kind = iota
	KindBox
	KindTracking
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindTracking:
		return "tracking"
	case KindNotFound:
		return "not_found"
	default:
		return "none"
	}
}

// Result is one lookup outcome. Box is set by Resolver.Box, Detail by
// Resolver.Detail, Tracking by Resolver.Tracking.
type Result struct {
	Kind     Kind
	Code     string
	Box      *vipapi.Box
	Detail   *vipapi.BoxDetail
	Tracking *vipapi.Tracking
}

// TransportError wraps any failure to reach or understand the server.
type TransportError struct {
	Code string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type API interface {
	BoxByNumber(ctx context.Context, boxNo string) (*vipapi.Box, error)
	DetailByCode(ctx context.Context, code string) (*vipapi.BoxDetail, error)
}

// TrackingAPI is implemented by clients that can look tracking numbers up
// on their own.
type TrackingAPI interface {
	TrackingByNumber(ctx context.Context, trackingNumber string) (*vipapi.Tracking, error)
}

var ErrNoTrackingLookup = errors.New("tracking lookup not supported")

// Resolver turns scanned codes into lookup outcomes. Every call goes to the
// server; nothing is cached.
type Resolver struct {
	api API
	log *log.Logger
}

func New(api API, lg *log.Logger) *Resolver {
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	return &Resolver{api: api, log: lg}
}

// Box resolves a code that must be a box number.
func (r *Resolver) Box(ctx context.Context, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{Kind: KindNone}, nil
	}

	box, err := r.api.BoxByNumber(ctx, code)
	if err != nil {
		r.log.Printf("box lookup failed: code=%s err=%v", code, err)
		return Result{Code: code}, &TransportError{Code: code, Err: err}
	}
	if box == nil {
		r.log.Printf("box not found: code=%s", code)
		return Result{Kind: KindNotFound, Code: code}, nil
	}
	r.log.Printf("box found: code=%s id=%d waybills=%d", code, box.ID, len(box.Waybills))
	return Result{Kind: KindBox, Code: code, Box: box}, nil
}

// Detail resolves a code that may be a box or a tracking number.
func (r *Resolver) Detail(ctx context.Context, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{Kind: KindNone}, nil
	}

	d, err := r.api.DetailByCode(ctx, code)
	if err != nil {
		r.log.Printf("detail lookup failed: code=%s err=%v", code, err)
		return Result{Code: code}, &TransportError{Code: code, Err: err}
	}
	if d == nil {
		r.log.Printf("detail not found: code=%s", code)
		return Result{Kind: KindNotFound, Code: code}, nil
	}

	kind := KindBox
	if strings.TrimSpace(d.TrackingNumber) != "" {
		kind = KindTracking
	}
	r.log.Printf("detail found: code=%s kind=%s box=%s", code, kind, d.BoxNo)
	return Result{Kind: kind, Code: code, Detail: d}, nil
}

// Tracking looks a tracking number up directly, without its box.
func (r *Resolver) Tracking(ctx context.Context, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{Kind: KindNone}, nil
	}
	api, ok := r.api.(TrackingAPI)
	if !ok {
		return Result{Code: code}, ErrNoTrackingLookup
	}

	tr, err := api.TrackingByNumber(ctx, code)
	if err != nil {
		r.log.Printf("tracking lookup failed: code=%s err=%v", code, err)
		return Result{Code: code}, &TransportError{Code: code, Err: err}
	}
	if tr == nil {
		r.log.Printf("tracking not found: code=%s", code)
		return Result{Kind: KindNotFound, Code: code}, nil
	}
	r.log.Printf("tracking found: code=%s id=%d", code, tr.ID)
	return Result{Kind: KindTracking, Code: code, Tracking: tr}, nil
}
