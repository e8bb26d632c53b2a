package luxeapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/luxesuite/luxeapi/refresh"
)

type meResponse struct {
	Data struct {
		ID    int    `json:"id"`
		Email string `json:"email"`
	} `json:"data"`
}

func TestRefreshThenRetryWithNewToken(t *testing.T) {
	fb := newFakeBackend(t)
	sink := NewChannelSink(32)
	c := newTestClient(t, fb, nil, func(b *Builder) { b.WithEventSink(sink) })
	ctx := context.Background()

	if err := c.SignIn(ctx, "T1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	var me meResponse
	if err := c.Get(ctx, "/api/me", &me); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if me.Data.Email != "owner@luxe.test" {
		t.Fatalf("unexpected body %+v", me)
	}

	seen := fb.requests("/api/me")
	if len(seen) != 2 {
		t.Fatalf("expected original + one retry, got %d", len(seen))
	}
	if seen[0].Auth != "Bearer T1" || seen[1].Auth != "Bearer T2" {
		t.Fatalf("unexpected auth headers %q, %q", seen[0].Auth, seen[1].Auth)
	}
	if seen[0].RequestID == "" || seen[0].RequestID != seen[1].RequestID {
		t.Fatalf("retry must keep the request id: %q vs %q", seen[0].RequestID, seen[1].RequestID)
	}
	if got := fb.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}

	token, ok, err := c.Token(ctx)
	if err != nil || !ok || token != "T2" {
		t.Fatalf("store should hold T2, got %q ok=%v err=%v", token, ok, err)
	}

	nextEvent(t, sink, EventRefreshSucceeded)
	ev := nextEvent(t, sink, EventRequestRetried)
	if ev.Path != "/api/me" || ev.Method != http.MethodGet {
		t.Fatalf("unexpected retried event %+v", ev)
	}

	snap := c.MetricsSnapshot()
	if snap.Counters[MetricRefreshStarted] != 1 || snap.Counters[MetricRequestRetried] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
	if snap.Counters[MetricUnauthorized] != 1 || snap.Counters[MetricRequestSuccess] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, nil)
	ctx := context.Background()

	if err := c.SignIn(ctx, "T1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	gate := fb.holdRefresh()

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Get(ctx, "/api/me", nil)
		}()
	}

	waitFor(t, "all calls to see 401", func() bool { return fb.unauthorized.Load() >= n })
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("expected every call to succeed after retry, got %v", err)
		}
	}
	if got := fb.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh network call, got %d", got)
	}

	retried := 0
	for _, s := range fb.requests("/api/me") {
		if s.Auth == "Bearer T2" {
			retried++
			continue
		}
		if s.Auth != "Bearer T1" {
			t.Fatalf("unexpected token on request: %q", s.Auth)
		}
	}
	if retried != n {
		t.Fatalf("expected %d retries with T2, got %d", n, retried)
	}
}

func TestConcurrentUnauthorizedAllFailTogether(t *testing.T) {
	fb := newFakeBackend(t)
	fb.failRefresh(http.StatusUnauthorized, "Refresh token expired")
	c := newTestClient(t, fb, nil)
	ctx := context.Background()

	if err := c.SignIn(ctx, "T1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	gate := fb.holdRefresh()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Get(ctx, "/api/me", nil)
		}()
	}
	waitFor(t, "all calls to see 401", func() bool { return fb.unauthorized.Load() >= n })
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrSessionTerminated) || !errors.Is(err, refresh.ErrRenewalFailed) {
			t.Fatalf("expected session terminated by refresh failure, got %v", err)
		}
	}
	if got := fb.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
}

func TestRefreshFailureClearsStoreAndReturnsRefreshError(t *testing.T) {
	fb := newFakeBackend(t)
	fb.failRefresh(http.StatusUnauthorized, "Refresh token expired")
	sink := NewChannelSink(32)
	c := newTestClient(t, fb, nil, func(b *Builder) { b.WithEventSink(sink) })
	ctx := context.Background()

	if err := c.SignIn(ctx, "T1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	err := c.Get(ctx, "/api/me", nil)
	if !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated, got %v", err)
	}
	if !errors.Is(err, refresh.ErrRenewalFailed) {
		t.Fatalf("expected the refresh error, got %v", err)
	}
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Message != "Refresh token expired" {
		t.Fatalf("expected the refresh endpoint error, not the original 401: %v", err)
	}

	if _, ok, _ := c.Token(ctx); ok {
		t.Fatal("token store must be cleared")
	}
	if len(fb.requests("/api/me")) != 1 {
		t.Fatal("request must not be retried after refresh failure")
	}

	ev := nextEvent(t, sink, EventSessionTerminated)
	if ev.Success || ev.Path != "/api/me" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if c.MetricsSnapshot().Counters[MetricSessionTerminated] != 1 {
		t.Fatal("expected session terminated metric")
	}
}

func TestSecondUnauthorizedIsTerminal(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, nil)
	ctx := context.Background()

	if err := c.SignIn(ctx, "T1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	err := c.Get(ctx, "/api/always-401", nil)
	if !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated, got %v", err)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 status in chain, got %d", StatusCode(err))
	}
	if got := len(fb.requests("/api/always-401")); got != 2 {
		t.Fatalf("expected exactly two attempts, got %d", got)
	}
	if got := fb.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}
	if _, ok, _ := c.Token(ctx); ok {
		t.Fatal("token store must be cleared")
	}
}

func TestConflictExposesPaymentURL(t *testing.T) {
	fb := newFakeBackend(t)
	fb.setValid("T1")
	c := newTestClient(t, fb, nil)
	ctx := context.Background()
	_ = c.SignIn(ctx, "T1")

	err := c.Post(ctx, "/api/subscriptions", map[string]any{"plan_id": 3}, nil)
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || !apiErr.IsConflict() {
		t.Fatalf("expected 409, got %d", apiErr.Status)
	}
	if apiErr.Message != "pending subscription exists" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
	if got := apiErr.String("payment_url"); got != "https://pay.luxe.test/checkout/abc?x=1" {
		t.Fatalf("payment_url changed: %q", got)
	}
	if fb.refreshCalls.Load() != 0 {
		t.Fatal("409 must not trigger refresh")
	}
	if seen := fb.requests("/api/subscriptions"); len(seen) != 1 || seen[0].Body != `{"plan_id":3}` {
		t.Fatalf("unexpected requests %+v", seen)
	}
}

func TestServerErrorNormalizedAndNotRetried(t *testing.T) {
	fb := newFakeBackend(t)
	fb.setValid("T1")
	c := newTestClient(t, fb, nil)
	ctx := context.Background()
	_ = c.SignIn(ctx, "T1")

	err := c.Get(ctx, "/api/boom", nil)
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
	if apiErr.Message != "HTTP error! status: 500" || string(apiErr.Raw) != "oops" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if len(fb.requests("/api/boom")) != 1 {
		t.Fatal("5xx must not be retried")
	}
}

func TestContentTypeJSONVersusMultipart(t *testing.T) {
	fb := newFakeBackend(t)
	fb.setValid("T1")
	c := newTestClient(t, fb, nil)
	ctx := context.Background()
	_ = c.SignIn(ctx, "T1")

	var out struct {
		ContentType string `json:"content_type"`
	}
	if err := c.Post(ctx, "/api/upload", map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("json post: %v", err)
	}
	if out.ContentType != "application/json" {
		t.Fatalf("JSON request must carry application/json, got %q", out.ContentType)
	}

	form := NewMultipart().Field("name", "Ada").File("resume", "cv.pdf", []byte("%PDF-1.4"))
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/api/upload", Multipart: form}, &out); err != nil {
		t.Fatalf("multipart post: %v", err)
	}
	if !strings.HasPrefix(out.ContentType, "multipart/form-data; boundary=") {
		t.Fatalf("multipart request must keep its boundary content type, got %q", out.ContentType)
	}
}

func TestMultipartBodyReplayedOnRetry(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, nil)
	ctx := context.Background()
	_ = c.SignIn(ctx, "T1")

	form := NewMultipart().Field("name", "Ada").File("resume", "cv.pdf", []byte("resume-bytes"))
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/api/upload", Multipart: form}, nil); err != nil {
		t.Fatalf("Do: %v", err)
	}
	seen := fb.requests("/api/upload")
	if len(seen) != 2 {
		t.Fatalf("expected retry, got %d requests", len(seen))
	}
	if seen[0].Body != seen[1].Body || !strings.Contains(seen[1].Body, "resume-bytes") {
		t.Fatal("retry must resend the identical multipart body")
	}
}

func TestNoAuthRequestSkipsRefresh(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, nil)
	ctx := context.Background()
	_ = c.SignIn(ctx, "T1")

	err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/api/luxesuite/login",
		JSON:   map[string]string{"email": "a@b.c", "password": "x"},
		NoAuth: true,
	}, nil)
	if StatusCode(err) != http.StatusUnauthorized || errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("expected plain 401 APIError, got %v", err)
	}
	if fb.refreshCalls.Load() != 0 {
		t.Fatal("NoAuth request must not refresh")
	}
	if seen := fb.requests("/api/luxesuite/login"); seen[0].Auth != "" {
		t.Fatalf("NoAuth request must not carry a bearer, got %q", seen[0].Auth)
	}
	if _, ok, _ := c.Token(ctx); !ok {
		t.Fatal("NoAuth 401 must not clear the session")
	}
}

func TestNoTokenStillGoesThroughRefresh(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, nil)

	if err := c.Get(context.Background(), "/api/me", nil); err != nil {
		t.Fatalf("expected cookie-less refresh to recover, got %v", err)
	}
	seen := fb.requests("/api/me")
	if seen[0].Auth != "" || seen[1].Auth != "Bearer T2" {
		t.Fatalf("unexpected auth headers %+v", seen)
	}
}

func TestRefreshUsesCookieJar(t *testing.T) {
	fb := newFakeBackend(t)
	fb.mu.Lock()
	fb.requireCookie = true
	fb.mu.Unlock()
	c := newTestClient(t, fb, nil)
	ctx := context.Background()
	_ = c.SignIn(ctx, "T1")

	if err := c.Post(ctx, "/api/store-refresh-token", map[string]string{"refresh_token": "r-1"}, nil); err != nil {
		t.Fatalf("store refresh token: %v", err)
	}
	if err := c.Get(ctx, "/api/me", nil); err != nil {
		t.Fatalf("expected refresh with cookie to succeed, got %v", err)
	}
}

func TestNetworkErrorPropagatesUnchanged(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, nil)
	_ = c.SignIn(context.Background(), "T1")
	fb.srv.Close()

	err := c.Get(context.Background(), "/api/me", nil)
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if errors.Is(err, ErrSessionTerminated) || StatusCode(err) != 0 {
		t.Fatalf("transport error must not be normalized: %v", err)
	}
	if _, ok, _ := c.Token(context.Background()); !ok {
		t.Fatal("transport error must not clear the session")
	}
}

func TestCancelledWaiterKeepsSession(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, nil)
	_ = c.SignIn(context.Background(), "T1")
	gate := fb.holdRefresh()
	defer close(gate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Get(ctx, "/api/me", nil) }()

	waitFor(t, "refresh to start", func() bool { return fb.refreshCalls.Load() == 1 })
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) || errors.Is(err, ErrSessionTerminated) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled call did not return")
	}
	if _, ok, _ := c.Token(context.Background()); !ok {
		t.Fatal("cancellation must not clear the session")
	}
}

func TestEnsureFreshTokenWithinCooldownReusesOutcome(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, func(cfg *Config) { cfg.Refresh.Cooldown = time.Minute })
	ctx := context.Background()

	first, err := c.EnsureFreshToken(ctx)
	if err != nil {
		t.Fatalf("EnsureFreshToken: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := c.EnsureFreshToken(ctx)
		if err != nil || again != first {
			t.Fatalf("expected prior outcome %q, got %q, %v", first, again, err)
		}
	}
	if got := fb.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one network refresh, got %d", got)
	}
	if c.MetricsSnapshot().Counters[MetricRefreshSuppressed] != 3 {
		t.Fatal("expected suppressed refreshes to be counted")
	}

	fb.failRefresh(http.StatusUnauthorized, "expired")
	if err := c.SignIn(ctx, "T9"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if _, err := c.EnsureFreshToken(ctx); !errors.Is(err, refresh.ErrRenewalFailed) {
		t.Fatalf("SignIn must reset the cooldown, got %v", err)
	}
	if _, err := c.EnsureFreshToken(ctx); !errors.Is(err, refresh.ErrCooldown) {
		t.Fatalf("expected prior failure rethrown under cooldown, got %v", err)
	}
	if got := fb.refreshCalls.Load(); got != 2 {
		t.Fatalf("expected two network refreshes, got %d", got)
	}
}

func TestProactiveRefreshBeforeExpiry(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, func(cfg *Config) { cfg.Refresh.ProactiveWindow = time.Minute })
	ctx := context.Background()

	expiring, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(10 * time.Second)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_ = c.SignIn(ctx, expiring)

	if err := c.Get(ctx, "/api/me", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	seen := fb.requests("/api/me")
	if len(seen) != 1 || seen[0].Auth != "Bearer T2" {
		t.Fatalf("expected a single request with the renewed token, got %+v", seen)
	}
	if c.MetricsSnapshot().Counters[MetricProactiveRefresh] != 1 {
		t.Fatal("expected proactive refresh metric")
	}
}

func TestNoContentAndRawOutput(t *testing.T) {
	fb := newFakeBackend(t)
	fb.setValid("T1")
	c := newTestClient(t, fb, nil)
	ctx := context.Background()
	_ = c.SignIn(ctx, "T1")

	var out map[string]any
	if err := c.Delete(ctx, "/api/no-content", &out); err != nil {
		t.Fatalf("204 must decode cleanly: %v", err)
	}

	var raw []byte
	if err := c.Get(ctx, "/api/me", &raw); err != nil {
		t.Fatalf("Get raw: %v", err)
	}
	if !strings.Contains(string(raw), "owner@luxe.test") {
		t.Fatalf("unexpected raw body %s", raw)
	}
}

func TestOversizedResponseIsRejected(t *testing.T) {
	fb := newFakeBackend(t)
	fb.setValid("T1")
	c := newTestClient(t, fb, func(cfg *Config) { cfg.HTTP.MaxResponseBytes = 4 })
	ctx := context.Background()
	_ = c.SignIn(ctx, "T1")

	var raw []byte
	err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/api/me"}, &raw)
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("truncated body leaked into output: %q", raw)
	}
	if _, ok, _ := c.Token(ctx); !ok {
		t.Fatal("oversized response must not clear the session")
	}

	// "oops" is exactly at the limit.
	err = c.Get(ctx, "/api/boom", nil)
	if errors.Is(err, ErrResponseTooLarge) || StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("body at the limit must be read in full, got %v", err)
	}
}

func TestReadLimited(t *testing.T) {
	body, err := readLimited(strings.NewReader("abcd"), 4)
	if err != nil || string(body) != "abcd" {
		t.Fatalf("expected full body, got %q err=%v", body, err)
	}
	if _, err := readLimited(strings.NewReader("abcde"), 4); !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
}

func TestInvalidRequests(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, nil)
	ctx := context.Background()

	cases := []*Request{
		nil,
		{Path: "api/me"},
		{Method: http.MethodPost, Path: "/api/upload", JSON: map[string]string{}, Multipart: NewMultipart()},
		{Method: http.MethodPost, Path: "/api/upload", JSON: func() {}},
	}
	for i, req := range cases {
		if err := c.Do(ctx, req, nil); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("case %d: expected ErrInvalidRequest, got %v", i, err)
		}
	}
	if len(fb.requests("/api/upload")) != 0 {
		t.Fatal("invalid requests must not reach the network")
	}
}

func TestClosedClientRejectsCalls(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(t, fb, nil)
	c.Close()
	c.Close()

	if err := c.Get(context.Background(), "/api/me", nil); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
	if _, err := c.EnsureFreshToken(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestCallStateTransitions(t *testing.T) {
	allowed := []struct{ from, to callState }{
		{stateInitial, stateAwaitingRefresh},
		{stateInitial, stateDone},
		{stateInitial, stateFailed},
		{stateAwaitingRefresh, stateRetrying},
		{stateAwaitingRefresh, stateFailed},
		{stateRetrying, stateDone},
		{stateRetrying, stateFailed},
	}
	for _, tc := range allowed {
		cl := &call{state: tc.from}
		if err := cl.to(tc.to); err != nil || cl.state != tc.to {
			t.Fatalf("%s -> %s should be allowed: %v", tc.from, tc.to, err)
		}
	}

	rejected := []struct{ from, to callState }{
		{stateRetrying, stateAwaitingRefresh},
		{stateInitial, stateRetrying},
		{stateAwaitingRefresh, stateDone},
		{stateDone, stateFailed},
		{stateFailed, stateInitial},
	}
	for _, tc := range rejected {
		cl := &call{state: tc.from}
		if err := cl.to(tc.to); err == nil || cl.state != tc.from {
			t.Fatalf("%s -> %s must be rejected", tc.from, tc.to)
		}
	}
}
