package vipapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxBody = 1 << 20

// Client talks to the VIP box service. It keeps the login cookie in a jar
// and sends a bearer token when one is configured or returned by Login.
type Client struct {
	baseURL string
	http    *http.Client
	log     *log.Logger

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: timeout, Jar: jar},
		log:     log.New(io.Discard, "", 0),
	}
}

func (c *Client) SetLogger(l *log.Logger) {
	if l != nil {
		c.log = l
	}
}

// OnUnauthorized registers a hook fired on every 401 answer.
func (c *Client) OnUnauthorized(f func()) {
	c.mu.Lock()
	c.onUnauthorized = f
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	status, body, err := c.send(ctx, http.MethodPost, "/auth/login", loginRequest{
		Username: strings.TrimSpace(username),
		Password: password,
	})
	if err != nil {
		return err
	}
	if err := c.statusError("login", status, body); err != nil {
		return err
	}

	var payload loginResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("vip login json parse xato: %w", err)
		}
	}
	if t := strings.TrimSpace(payload.Token); t != "" {
		c.mu.Lock()
		c.token = t
		c.mu.Unlock()
	}
	return nil
}

// BoxByNumber returns nil, nil when no box has that number.
func (c *Client) BoxByNumber(ctx context.Context, boxNo string) (*Box, error) {
	var box Box
	found, err := c.lookup(ctx, "box", "/vip/box/details/"+url.PathEscape(strings.TrimSpace(boxNo)), &box)
	if err != nil || !found {
		return nil, err
	}
	if box.ID == 0 && strings.TrimSpace(box.BoxNo) == "" {
		return nil, nil
	}
	return &box, nil
}

// DetailByCode resolves a box or tracking code. nil, nil means not found.
func (c *Client) DetailByCode(ctx context.Context, code string) (*BoxDetail, error) {
	var d BoxDetail
	found, err := c.lookup(ctx, "detail", "/vip/box/details/"+url.PathEscape(strings.TrimSpace(code)), &d)
	if err != nil || !found {
		return nil, err
	}
	if strings.TrimSpace(d.BoxNo) == "" && strings.TrimSpace(d.TrackingNumber) == "" {
		return nil, nil
	}
	return &d, nil
}

// TrackingByNumber returns nil, nil when the tracking does not exist.
func (c *Client) TrackingByNumber(ctx context.Context, trackingNumber string) (*Tracking, error) {
	var t Tracking
	found, err := c.lookup(ctx, "tracking", "/trackings/number/"+url.PathEscape(strings.TrimSpace(trackingNumber)), &t)
	if err != nil || !found {
		return nil, err
	}
	if t.ID == 0 && strings.TrimSpace(t.TrackingNumber) == "" {
		return nil, nil
	}
	return &t, nil
}

// SetAssignment assigns (unassign=false) or removes a tracking on a box.
func (c *Client) SetAssignment(ctx context.Context, boxID int64, trackingNumber string, unassign bool) error {
	path := "/vip/box/" + strconv.FormatInt(boxID, 10) + "/assign-tracking"
	status, body, err := c.send(ctx, http.MethodPatch, path, assignRequest{
		TrackingNumber: strings.TrimSpace(trackingNumber),
		Unassign:       unassign,
	})
	if err != nil {
		return err
	}
	return c.statusError("assign", status, body)
}

func (c *Client) ActivateBox(ctx context.Context, boxID int64) error {
	path := "/vip/box/" + strconv.FormatInt(boxID, 10) + "/activate"
	status, body, err := c.send(ctx, http.MethodPatch, path, nil)
	if err != nil {
		return err
	}
	return c.statusError("activate", status, body)
}

// GenerateLabel asks the 1C bridge for a box label. The caller decides what
// a non-empty ErrorReason means.
func (c *Client) GenerateLabel(ctx context.Context, detail BoxDetail) (GenerateResult, error) {
	status, body, err := c.send(ctx, http.MethodPost, "/vip/box/generate-box/", detail)
	if err != nil {
		return GenerateResult{}, err
	}

	var out GenerateResult
	decodeErr := json.Unmarshal(body, &out)
	if status < 200 || status > 299 {
		he := c.statusError("generate", status, body).(*HTTPError)
		if decodeErr == nil && strings.TrimSpace(out.ErrorReason) != "" {
			he.Message = strings.TrimSpace(out.ErrorReason)
		}
		return GenerateResult{}, he
	}
	if decodeErr != nil {
		return GenerateResult{}, fmt.Errorf("vip generate json parse xato: %w", decodeErr)
	}
	return out, nil
}

func (c *Client) lookup(ctx context.Context, op, path string, out any) (bool, error) {
	status, body, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if err := c.statusError(op, status, body); err != nil {
		return false, err
	}
	if isEmptyBody(body) {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("vip %s json parse xato: %w", op, err)
	}
	return true, nil
}

func (c *Client) send(ctx context.Context, method, path string, in any) (int, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("vip request marshal: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := c.Token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Printf("http error: %s %s id=%s err=%v", method, path, reqID, err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, fmt.Errorf("vip response read: %w", err)
	}
	c.log.Printf("http: %s %s id=%s status=%d took=%s", method, path, reqID, resp.StatusCode, time.Since(started).Round(time.Millisecond))
	return resp.StatusCode, body, nil
}

func (c *Client) statusError(op string, status int, body []byte) error {
	if status >= 200 && status <= 299 {
		return nil
	}
	if status == http.StatusUnauthorized {
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			hook()
		}
	}
	return &HTTPError{Op: op, Status: status, Message: errorMessage(body)}
}

func isEmptyBody(body []byte) bool {
	switch string(bytes.TrimSpace(body)) {
	case "", "null", "{}", `""`:
		return true
	}
	return false
}
