package label

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"boxscan/internal/vipapi"
)

// Payload is a generated label ready for the printer.
type Payload struct {
	BoxNo string
	ZPL   string
}

// LogicalError means the service answered but refused to build a label.
type LogicalError struct {
	BoxNo  string
	Reason string
}

func (e *LogicalError) Error() string {
	return fmt.Sprintf("label %s: %s", e.BoxNo, e.Reason)
}

// TransportError wraps failures reaching the label service.
type TransportError struct {
	BoxNo string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("label %s: %v", e.BoxNo, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type API interface {
	GenerateLabel(ctx context.Context, detail vipapi.BoxDetail) (vipapi.GenerateResult, error)
}

type Client struct {
	api API
	log *log.Logger
}

func NewClient(api API, lg *log.Logger) *Client {
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	return &Client{api: api, log: lg}
}

// Generate validates p, then asks the service for ZPL. Invalid params never
// reach the network.
func (c *Client) Generate(ctx context.Context, p Params) (Payload, error) {
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}

	d := p.Detail()
	res, err := c.api.GenerateLabel(ctx, d)
	if err != nil {
		c.log.Printf("generate failed: box=%s err=%v", d.BoxNo, err)
		return Payload{}, &TransportError{BoxNo: d.BoxNo, Err: err}
	}
	if reason := strings.TrimSpace(res.ErrorReason); reason != "" {
		c.log.Printf("generate refused: box=%s reason=%s result=%s", d.BoxNo, reason, res.Result)
		return Payload{}, &LogicalError{BoxNo: d.BoxNo, Reason: reason}
	}
	if strings.TrimSpace(res.ZPL) == "" {
		c.log.Printf("generate empty zpl: box=%s result=%s", d.BoxNo, res.Result)
		return Payload{}, &LogicalError{BoxNo: d.BoxNo, Reason: "ZPL bo'sh"}
	}

	c.log.Printf("generate ok: box=%s volume=%s bytes=%d", d.BoxNo, FormatVolume(d.Volume), len(res.ZPL))
	return Payload{BoxNo: d.BoxNo, ZPL: res.ZPL}, nil
}
