// Package bridge exposes the request/response boundary used by a display
// surface (for example a browser extension popup) over HTTP and WebSocket.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brcs124/2FacTrac/internal/model"
)

// Request kinds understood by the bridge.
const (
	RequestTriggerFetch = "triggerFetchAndGetCode"
	RequestLatestCode   = "getLatestCode"
	RequestSetActiveURL = "setActiveUrl"
)

// Request is a message from the display surface.
type Request struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Response carries an aggregate result. Absent fields encode as null.
type Response struct {
	Code   *string `json:"code"`
	Link   *string `json:"link"`
	Sender *string `json:"sender"`
	Error  string  `json:"error,omitempty"`
}

// NewResponse converts r into its wire form.
func NewResponse(r model.AggregateResult) Response {
	return Response{
		Code:   optional(r.Code),
		Link:   optional(r.Link),
		Sender: optional(r.Sender),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Checker runs checks and holds the latest result.
type Checker interface {
	RunNow(ctx context.Context) (model.AggregateResult, error)
	Latest() model.AggregateResult
	SetTargetDomain(activeURL string)
}

// Handler answers bridge requests.
type Handler struct {
	checker Checker
	logger  *slog.Logger
	timeout time.Duration
}

// NewHandler creates a Handler. timeout bounds a triggered check.
func NewHandler(checker Checker, timeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{checker: checker, logger: logger, timeout: timeout}
}

// Handle answers one request. A failed check still answers with the
// result it retained, plus the error text.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	switch req.Type {
	case RequestTriggerFetch:
		ctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		result, err := h.checker.RunNow(ctx)
		resp := NewResponse(result)
		if err != nil {
			h.logger.Warn("triggered check failed", "err", err)
			resp.Error = err.Error()
		}
		return resp

	case RequestLatestCode:
		return NewResponse(h.checker.Latest())

	case RequestSetActiveURL:
		h.checker.SetTargetDomain(req.URL)
		return NewResponse(h.checker.Latest())

	default:
		return Response{Error: fmt.Sprintf("unknown request type %q", req.Type)}
	}
}

// Routes returns the HTTP routes of the bridge:
//
//	POST /message  one JSON request, one JSON response
//	GET  /ws       WebSocket, one JSON response per JSON request
//	GET  /healthz  liveness
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/message", h.handleMessage)
	mux.HandleFunc("/ws", h.handleUpgrade)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return
	}

	resp := h.Handle(r.Context(), req)
	status := http.StatusOK
	if resp.Error != "" && req.Type != RequestTriggerFetch {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	h.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "err", err)
			}
			return
		}

		resp := h.Handle(r.Context(), req)
		if err := conn.WriteJSON(resp); err != nil {
			h.logger.Debug("websocket write failed", "err", err)
			return
		}
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down.
func Serve(ctx context.Context, addr string, h *Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("bridge listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("bridge server: %w", err)
	}
}
