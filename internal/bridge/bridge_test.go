package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brcs124/2FacTrac/internal/model"
)

type fakeChecker struct {
	result  model.AggregateResult
	err     error
	runs    int
	lastURL string
}

func (f *fakeChecker) RunNow(context.Context) (model.AggregateResult, error) {
	f.runs++
	return f.result, f.err
}

func (f *fakeChecker) Latest() model.AggregateResult { return f.result }

func (f *fakeChecker) SetTargetDomain(activeURL string) { f.lastURL = activeURL }

func newTestHandler(c Checker) *Handler {
	return NewHandler(c, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewResponse_AbsentFieldsAreNull(t *testing.T) {
	data, err := json.Marshal(NewResponse(model.AggregateResult{Code: "482913"}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"code":"482913","link":null,"sender":null}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestHandle(t *testing.T) {
	result := model.AggregateResult{Code: "111222", Sender: "Acme"}

	t.Run("trigger runs a check", func(t *testing.T) {
		c := &fakeChecker{result: result}
		resp := newTestHandler(c).Handle(context.Background(), Request{Type: RequestTriggerFetch})
		if c.runs != 1 {
			t.Errorf("runs = %d, want 1", c.runs)
		}
		if resp.Code == nil || *resp.Code != "111222" {
			t.Errorf("Code = %v", resp.Code)
		}
	})

	t.Run("trigger error keeps result", func(t *testing.T) {
		c := &fakeChecker{result: result, err: errors.New("auth error")}
		resp := newTestHandler(c).Handle(context.Background(), Request{Type: RequestTriggerFetch})
		if resp.Error == "" {
			t.Error("expected error text")
		}
		if resp.Code == nil {
			t.Error("retained code missing")
		}
	})

	t.Run("latest does not check", func(t *testing.T) {
		c := &fakeChecker{result: result}
		resp := newTestHandler(c).Handle(context.Background(), Request{Type: RequestLatestCode})
		if c.runs != 0 {
			t.Errorf("runs = %d, want 0", c.runs)
		}
		if resp.Sender == nil || *resp.Sender != "Acme" {
			t.Errorf("Sender = %v", resp.Sender)
		}
	})

	t.Run("set active url", func(t *testing.T) {
		c := &fakeChecker{}
		newTestHandler(c).Handle(context.Background(), Request{Type: RequestSetActiveURL, URL: "https://example.com/login"})
		if c.lastURL != "https://example.com/login" {
			t.Errorf("lastURL = %q", c.lastURL)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		resp := newTestHandler(&fakeChecker{}).Handle(context.Background(), Request{Type: "nope"})
		if !strings.Contains(resp.Error, "nope") {
			t.Errorf("Error = %q", resp.Error)
		}
	})
}

func TestMessageEndpoint(t *testing.T) {
	c := &fakeChecker{result: model.AggregateResult{Link: "https://example.com/verify"}}
	srv := httptest.NewServer(newTestHandler(c).Routes())
	defer srv.Close()

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"latest", http.MethodPost, `{"type":"getLatestCode"}`, http.StatusOK},
		{"unknown type", http.MethodPost, `{"type":"other"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, `{`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+"/message", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}

	resp, err := http.Post(srv.URL+"/message", "application/json",
		strings.NewReader(`{"type":"getLatestCode"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got Response
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Code != nil || got.Link == nil || *got.Link != "https://example.com/verify" {
		t.Errorf("response = %+v", got)
	}
}

func TestWebSocket(t *testing.T) {
	c := &fakeChecker{result: model.AggregateResult{Code: "482913", Sender: "Acme"}}
	srv := httptest.NewServer(newTestHandler(c).Routes())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Request{Type: RequestTriggerFetch}); err != nil {
		t.Fatal(err)
	}
	var got Response
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Code == nil || *got.Code != "482913" {
		t.Errorf("Code = %v", got.Code)
	}

	if err := conn.WriteJSON(Request{Type: "bogus"}); err != nil {
		t.Fatal(err)
	}
	got = Response{}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Error == "" {
		t.Error("expected an error response for an unknown type")
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&fakeChecker{}).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
