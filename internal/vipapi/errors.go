package vipapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnauthorized = errors.New("vip api: avtorizatsiya talab qilinadi")

// HTTPError is a non-2xx answer. Message is the server's reason when the
// body carried one.
type HTTPError struct {
	Op      string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vip %s http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("vip %s http %d: %s", e.Op, e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	if e.Status == 401 {
		return ErrUnauthorized
	}
	return nil
}

// Reason is the text shown to the operator for a failed call.
func Reason(err error) string {
	var he *HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// errorMessage pulls a human reason out of common error bodies:
// {"message":"..."}, {"message":["a","b"]}, {"error":{"message":"..."}}.
func errorMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return truncate(strings.TrimSpace(string(body)), 300)
	}
	if msg := rawText(payload.Message); msg != "" {
		return msg
	}
	var nested struct {
		Message json.RawMessage `json:"message"`
	}
	if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &nested) == nil {
		if msg := rawText(nested.Message); msg != "" {
			return msg
		}
	}
	return rawText(payload.Error)
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.TrimSpace(strings.Join(list, "; "))
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
