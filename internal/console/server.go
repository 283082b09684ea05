package console

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"boxscan/internal/label"
	"boxscan/internal/resolve"
	"boxscan/internal/session"
	"boxscan/internal/vipapi"
	"boxscan/internal/workflow"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Server is the operator console: a JSON view of both screens, a remote
// scan feed for handheld browsers and a websocket event stream.
type Server struct {
	box      *workflow.BoxScreen
	label    *workflow.LabelScreen
	store    session.Store
	resolver *resolve.Resolver
	hub      *Hub
	log      *log.Logger
	upgrader websocket.Upgrader
}

func New(box *workflow.BoxScreen, lbl *workflow.LabelScreen, store session.Store, resolver *resolve.Resolver, lg *log.Logger) *Server {
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	s := &Server{
		box:      box,
		label:    lbl,
		store:    store,
		resolver: resolver,
		hub:      NewHub(lg),
		log:      lg,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}

	box.OnNotice(func(n workflow.Notice) { s.hub.Broadcast(Message{Type: "notice", Data: n, At: n.At}) })
	lbl.OnNotice(func(n workflow.Notice) { s.hub.Broadcast(Message{Type: "notice", Data: n, At: n.At}) })
	box.OnChange(func() { s.hub.Broadcast(Message{Type: "box", Data: boxState(box.View())}) })
	lbl.OnChange(func() { s.hub.Broadcast(Message{Type: "label", Data: labelState(lbl.View())}) })
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/scan/{screen}", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/api/box/{action}", s.handleBox).Methods(http.MethodPost)
	r.HandleFunc("/api/label/{action}", s.handleLabel).Methods(http.MethodPost)
	r.HandleFunc("/api/tracking/{number}", s.handleTracking).Methods(http.MethodGet)
	r.HandleFunc("/api/printer", s.handleGetPrinter).Methods(http.MethodGet)
	r.HandleFunc("/api/printer", s.handlePutPrinter).Methods(http.MethodPut)
	r.HandleFunc("/ws/events", s.handleEvents).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		s.hub.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Printf("console listening: addr=%s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type boxStateJSON struct {
	Phase          string           `json:"phase"`
	Input          string           `json:"input"`
	Busy           bool             `json:"busy"`
	OpenBox        *session.OpenBox `json:"openBox,omitempty"`
	Box            *vipapi.Box      `json:"box,omitempty"`
	ScannerVisible bool             `json:"scannerVisible"`
}

type labelStateJSON struct {
	Phase string    `json:"phase"`
	Input string    `json:"input"`
	Code  string    `json:"code,omitempty"`
	Kind  string    `json:"kind"`
	Form  *formJSON `json:"form,omitempty"`
}

type formJSON struct {
	BoxNo        string  `json:"boxNo"`
	Length       float64 `json:"length"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	Weight       float64 `json:"weight"`
	WaybillCount int     `json:"waybillCount"`
	Volume       string  `json:"volume"`
}

func boxState(v workflow.BoxView) boxStateJSON {
	out := boxStateJSON{
		Phase:          v.Phase.String(),
		Input:          v.Input,
		Busy:           v.Busy,
		Box:            v.Box,
		ScannerVisible: v.ScannerVisible,
	}
	if v.HasOpenBox {
		open := v.OpenBox
		out.OpenBox = &open
	}
	return out
}

func labelState(v workflow.LabelView) labelStateJSON {
	out := labelStateJSON{Phase: v.Phase.String(), Input: v.Input, Code: v.Code, Kind: v.Kind.String()}
	if v.Phase != workflow.PhaseScanCode {
		p := v.Params
		out.Form = &formJSON{
			BoxNo:        p.BoxNo,
			Length:       p.Length,
			Width:        p.Width,
			Height:       p.Height,
			Weight:       p.Weight,
			WaybillCount: p.WaybillCount,
			Volume:       label.FormatVolume(p.Volume),
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "subscribers": s.hub.Count()})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.store.Printer()
	if err != nil {
		s.log.Printf("state: printer read failed: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"box":     boxState(s.box.View()),
		"label":   labelState(s.label.View()),
		"printer": cfg,
	})
}

type scanRequest struct {
	Code string `json:"code"`
}

// handleScan types a code into a screen's capture field. The usual debounce
// applies, so a handheld can stream characters or post whole codes.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code bo'sh")
		return
	}

	var accepted bool
	switch mux.Vars(r)["screen"] {
	case "box":
		accepted = s.box.Input().Change(req.Code)
	case "label":
		accepted = s.label.Input().Change(req.Code)
	default:
		writeError(w, http.StatusNotFound, "screen noma'lum")
		return
	}
	if !accepted {
		writeError(w, http.StatusConflict, "maydon band")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

type removeRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

func (s *Server) handleBox(w http.ResponseWriter, r *http.Request) {
	var err error
	switch mux.Vars(r)["action"] {
	case "start":
		err = s.box.StartScanning()
	case "new":
		s.box.ScanNewBox()
	case "refresh":
		s.box.Refresh()
	case "finish":
		err = s.box.Finish()
	case "remove":
		var req removeRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil || strings.TrimSpace(req.TrackingNumber) == "" {
			writeError(w, http.StatusBadRequest, "trackingNumber kerak")
			return
		}
		err = s.box.Remove(req.TrackingNumber)
	default:
		writeError(w, http.StatusNotFound, "action noma'lum")
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, boxState(s.box.View()))
}

type fieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["action"] {
	case "field":
		var req fieldRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := s.label.SetField(req.Field, req.Value); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	case "cancel":
		s.label.Cancel()
	case "submit":
		out, err := s.label.Submit()
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	default:
		writeError(w, http.StatusNotFound, "action noma'lum")
		return
	}
	writeJSON(w, http.StatusOK, labelState(s.label.View()))
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	res, err := s.resolver.Tracking(ctx, mux.Vars(r)["number"])
	switch {
	case errors.Is(err, resolve.ErrNoTrackingLookup):
		writeError(w, http.StatusNotImplemented, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, vipapi.Reason(err))
	case res.Kind != resolve.KindTracking:
		writeError(w, http.StatusNotFound, "trek raqam topilmadi")
	default:
		writeJSON(w, http.StatusOK, res.Tracking)
	}
}

func (s *Server) handleGetPrinter(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.store.Printer()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutPrinter(w http.ResponseWriter, r *http.Request) {
	var cfg session.PrinterConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.store.SetPrinter(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.store.Printer()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Printf("printer updated: addr=%s", saved.Addr())
	s.hub.Broadcast(Message{Type: "printer", Data: saved})
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("ws upgrade failed: %v", err)
		return
	}
	id := uuid.NewString()
	ch := make(chan Message, 16)
	s.hub.Register(id, ch)
	s.log.Printf("ws subscriber joined: id=%s remote=%s", id, r.RemoteAddr)

	// Reader: only used to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.hub.Unregister(id)
		_ = conn.Close()
		s.log.Printf("ws subscriber left: id=%s", id)
	}()

	hello := Message{Type: "box", Data: boxState(s.box.View()), At: time.Now().UTC()}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
