package luxeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type seenRequest struct {
	Method      string
	Path        string
	Auth        string
	ContentType string
	RequestID   string
	Body        string
}

// fakeBackend is a minimal Luxe Suite API: /api/me checks the bearer token,
// /api/refresh-token issues T2, T3, ... and optionally requires the refresh
// cookie set by /api/store-refresh-token.
type fakeBackend struct {
	srv *httptest.Server

	mu            sync.Mutex
	valid         string
	issued        int
	seen          []seenRequest
	refreshStatus int
	refreshBody   string
	requireCookie bool
	refreshGate   chan struct{}

	refreshCalls atomic.Int32
	unauthorized atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{issued: 1}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/refresh-token", fb.handleRefresh)
	mux.HandleFunc("/api/store-refresh-token", fb.handleStoreRefresh)
	mux.HandleFunc("/api/me", fb.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": 7, "email": "owner@luxe.test"}})
	}))
	mux.HandleFunc("/api/always-401", func(w http.ResponseWriter, r *http.Request) {
		fb.record(r, "")
		fb.unauthorized.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
	})
	mux.HandleFunc("/api/subscriptions", fb.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"message":     "pending subscription exists",
			"payment_url": "https://pay.luxe.test/checkout/abc?x=1",
		})
	}))
	mux.HandleFunc("/api/upload", fb.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"content_type": r.Header.Get("Content-Type")})
	}))
	mux.HandleFunc("/api/boom", fb.authed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "oops")
	}))
	mux.HandleFunc("/api/no-content", fb.authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("/api/luxesuite/login", func(w http.ResponseWriter, r *http.Request) {
		fb.record(r, "")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
	})

	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fb.record(r, string(body))

		fb.mu.Lock()
		valid := fb.valid
		fb.mu.Unlock()

		if valid == "" || r.Header.Get("Authorization") != "Bearer "+valid {
			fb.unauthorized.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}
		next(w, r)
	}
}

func (fb *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	fb.refreshCalls.Add(1)

	fb.mu.Lock()
	gate := fb.refreshGate
	fb.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"message": "method not allowed"})
		return
	}
	if fb.requireCookie {
		if c, err := r.Cookie("refresh_token"); err != nil || c.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Refresh token missing"})
			return
		}
	}
	if fb.refreshStatus != 0 {
		writeJSON(w, fb.refreshStatus, map[string]any{"message": fb.refreshBody})
		return
	}

	fb.issued++
	fb.valid = "T" + strconv.Itoa(fb.issued)
	writeJSON(w, http.StatusOK, map[string]any{"access_token": fb.valid})
}

func (fb *fakeBackend) handleStoreRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RefreshToken == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "refresh_token required"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: in.RefreshToken, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (fb *fakeBackend) record(r *http.Request, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.seen = append(fb.seen, seenRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		Auth:        r.Header.Get("Authorization"),
		ContentType: r.Header.Get("Content-Type"),
		RequestID:   r.Header.Get("X-Request-ID"),
		Body:        body,
	})
}

func (fb *fakeBackend) requests(path string) []seenRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	var out []seenRequest
	for _, s := range fb.seen {
		if s.Path == path {
			out = append(out, s)
		}
	}
	return out
}

func (fb *fakeBackend) setValid(token string) {
	fb.mu.Lock()
	fb.valid = token
	fb.mu.Unlock()
}

func (fb *fakeBackend) failRefresh(status int, message string) {
	fb.mu.Lock()
	fb.refreshStatus = status
	fb.refreshBody = message
	fb.mu.Unlock()
}

func (fb *fakeBackend) holdRefresh() chan struct{} {
	gate := make(chan struct{})
	fb.mu.Lock()
	fb.refreshGate = gate
	fb.mu.Unlock()
	return gate
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fb *fakeBackend, mutate func(*Config), build ...func(*Builder)) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = fb.srv.URL
	cfg.AppURL = "https://app.luxesuite.test"
	cfg.OAuth.ClientID = "client-1"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	if mutate != nil {
		mutate(&cfg)
	}

	b := New().WithConfig(cfg).WithLogger(NewLogger("error", io.Discard))
	for _, fn := range build {
		fn(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func nextEvent(t *testing.T, sink *ChannelSink, want EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}
