package vipapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBoxByNumber(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method mismatch: %s", r.Method)
		}
		if r.URL.Path != "/vip/box/details/BX-100" {
			t.Fatalf("path mismatch: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("auth header mismatch: %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Fatalf("request id missing")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"boxNo":"BX-100","status":"OPEN","weight":null,"waybillCount":1,"isActive":true,
			"waybills":[{"id":1,"trackingNumber":"TRK-1","weight":1.5,"length":null,"status":"IN_BOX","boxId":7}]}`))
	}))
	defer ts.Close()

	c := New(ts.URL+"/", "tok", time.Second)
	box, err := c.BoxByNumber(context.Background(), " BX-100 ")
	if err != nil {
		t.Fatalf("BoxByNumber error: %v", err)
	}
	if box == nil || box.ID != 7 || box.BoxNo != "BX-100" {
		t.Fatalf("box mismatch: %+v", box)
	}
	w, ok := box.Waybill("trk-1")
	if !ok || !w.AssignedTo(7) {
		t.Fatalf("waybill mismatch: %+v ok=%v", w, ok)
	}
}

func TestLookupNotFoundShapes(t *testing.T) {
	bodies := map[string]struct {
		status int
		body   string
	}{
		"404":   {http.StatusNotFound, `{"message":"Box not found"}`},
		"empty": {http.StatusOK, ``},
		"null":  {http.StatusOK, `null`},
		"blank": {http.StatusOK, `{"boxNo":"","weight":0}`},
	}
	for name, tc := range bodies {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		c := New(ts.URL, "", time.Second)
		d, err := c.DetailByCode(context.Background(), "X")
		ts.Close()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if d != nil {
			t.Fatalf("%s: expected not found, got %+v", name, d)
		}
	}
}

func TestLookupServerErrorIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"db down"}}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL, "", time.Second).BoxByNumber(context.Background(), "BX")
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.Status != 500 || he.Message != "db down" {
		t.Fatalf("http error mismatch: %+v", he)
	}
}

func TestSetAssignmentBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Fatalf("method mismatch: %s", r.Method)
		}
		if r.URL.Path != "/vip/box/7/assign-tracking" {
			t.Fatalf("path mismatch: %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req["trackingNumber"] != "TRK-1" || req["unassign"] != true {
			t.Fatalf("body mismatch: %v", req)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	if err := New(ts.URL, "", time.Second).SetAssignment(context.Background(), 7, "TRK-1", true); err != nil {
		t.Fatalf("SetAssignment error: %v", err)
	}
}

func TestSetAssignmentSurfacesReason(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":400,"message":["Tracking already assigned"]}`))
	}))
	defer ts.Close()

	err := New(ts.URL, "", time.Second).SetAssignment(context.Background(), 7, "TRK-1", false)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := Reason(err); got != "Tracking already assigned" {
		t.Fatalf("reason mismatch: %q", got)
	}
}

func TestActivateBox(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodPatch || r.URL.Path != "/vip/box/9/activate" {
			t.Fatalf("request mismatch: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	if err := New(ts.URL, "", time.Second).ActivateBox(context.Background(), 9); err != nil {
		t.Fatalf("ActivateBox error: %v", err)
	}
	if !called {
		t.Fatalf("server not called")
	}
}

func TestGenerateLabel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/vip/box/generate-box/" {
			t.Fatalf("request mismatch: %s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		var d BoxDetail
		if err := json.Unmarshal(b, &d); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if d.BoxNo != "BX-1" || d.Volume != 0.28 {
			t.Fatalf("detail mismatch: %+v", d)
		}
		_, _ = w.Write([]byte(`{"Результат":"OK","ПричинаОшибки":"","ZplFile":"^XA^XZ"}`))
	}))
	defer ts.Close()

	res, err := New(ts.URL, "", time.Second).GenerateLabel(context.Background(), BoxDetail{
		BoxNo: "BX-1", Weight: 2, WaybillCount: 1, Width: 50, Height: 70, Length: 80, Volume: 0.28,
	})
	if err != nil {
		t.Fatalf("GenerateLabel error: %v", err)
	}
	if res.Result != "OK" || res.ZPL != "^XA^XZ" || res.ErrorReason != "" {
		t.Fatalf("result mismatch: %+v", res)
	}
}

func TestLoginStoresTokenAndCookie(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
			_, _ = w.Write([]byte(`{"token":"jwt-1","user":{"id":1,"username":"op","role":"worker"}}`))
		case "/trackings/number/TRK-1":
			if c, err := r.Cookie("sid"); err != nil || c.Value != "abc" {
				t.Fatalf("cookie missing: %v", err)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer jwt-1" {
				t.Fatalf("auth header mismatch: %q", got)
			}
			_, _ = w.Write([]byte(`{"id":3,"trackingNumber":"TRK-1","boxId":null}`))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	c := New(ts.URL, "", time.Second)
	if err := c.Login(context.Background(), "op", "secret"); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if c.Token() != "jwt-1" {
		t.Fatalf("token mismatch: %q", c.Token())
	}
	tr, err := c.TrackingByNumber(context.Background(), "TRK-1")
	if err != nil {
		t.Fatalf("TrackingByNumber error: %v", err)
	}
	if tr == nil || tr.BoxID != nil {
		t.Fatalf("tracking mismatch: %+v", tr)
	}
}

func TestUnauthorizedHookAndSentinel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthorized"}`))
	}))
	defer ts.Close()

	c := New(ts.URL, "", time.Second)
	fired := 0
	c.OnUnauthorized(func() { fired++ })

	_, err := c.BoxByNumber(context.Background(), "BX")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if fired != 1 {
		t.Fatalf("hook calls: %d", fired)
	}
}
