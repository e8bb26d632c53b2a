package luxeapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/luxesuite/luxeapi/oauth"
	"github.com/luxesuite/luxeapi/refresh"
	"github.com/luxesuite/luxeapi/session"
)

// Client is the authenticated Luxe Suite API client.
//
// A Client is safe for concurrent use. Every call shares one token store and
// one refresh coordinator, so concurrent 401s produce a single renewal.
type Client struct {
	cfg         Config
	http        *http.Client
	store       session.Store
	coordinator *refresh.Coordinator
	logger      *slog.Logger
	metrics     *Metrics
	events      *eventDispatcher
	now         func() time.Time
	closed      atomic.Bool
}

// Close stops the event dispatcher after draining queued events. Calls made
// after Close fail with ErrClientClosed.
func (c *Client) Close() {
	if c == nil || c.closed.Swap(true) {
		return
	}
	c.events.Close()
}

// Config returns a copy of the configuration the client was built with.
func (c *Client) Config() Config {
	return cloneConfig(c.cfg)
}

// Tokens returns the access-token store.
func (c *Client) Tokens() session.Store {
	return c.store
}

// HTTPClient returns the underlying client, cookie jar included.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Logger returns the structured logger shared by the pipeline and the
// refresh observer.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// MetricsSnapshot copies the current counters and latency histograms. It
// returns an empty snapshot when metrics are disabled.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped reports events discarded because the dispatcher queue was full.
func (c *Client) EventsDropped() uint64 {
	return c.events.Dropped()
}

// EventSinkPanics reports deliveries the event sink aborted with a panic.
func (c *Client) EventSinkPanics() uint64 {
	return c.events.Panicked()
}

// EnsureFreshToken renews the access token through the shared coordinator.
func (c *Client) EnsureFreshToken(ctx context.Context) (string, error) {
	if c.closed.Load() {
		return "", ErrClientClosed
	}
	return c.coordinator.EnsureFreshToken(ctx)
}

// Token returns the current access token.
func (c *Client) Token(ctx context.Context) (string, bool, error) {
	return c.store.Get(ctx)
}

// SignIn stores token as the current access token and forgets the previous
// refresh outcome, so a failure from an earlier session cannot suppress the
// next renewal.
func (c *Client) SignIn(ctx context.Context, token string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.store.Set(ctx, strings.TrimSpace(token)); err != nil {
		return err
	}
	c.coordinator.Reset()
	return nil
}

// SignOut clears the access token locally.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.metrics.Inc(MetricLogout)
	c.emit(ctx, Event{Type: EventLoggedOut, Success: true})
	return nil
}

// OAuthFlow builds the PKCE login flow for this client's configuration. The
// token exchange uses the client's HTTP client, so cookies set by the
// backend land in the same jar.
func (c *Client) OAuthFlow(verifiers oauth.VerifierStore) (*oauth.Flow, error) {
	return oauth.NewFlow(oauth.Config{
		BaseURL:       c.cfg.BaseURL,
		ClientID:      c.cfg.OAuth.ClientID,
		RedirectURL:   c.cfg.RedirectURL(),
		AuthorizePath: c.cfg.OAuth.AuthorizePath,
		RegisterPath:  c.cfg.OAuth.RegisterPath,
		TokenPath:     c.cfg.OAuth.TokenPath,
		Scopes:        c.cfg.OAuth.Scopes,
		VerifierTTL:   c.cfg.OAuth.VerifierTTL,
		HTTPClient:    c.http,
	}, verifiers)
}

// ShippingFee is the configured flat shipping fee for credit checkouts.
func (c *Client) ShippingFee() float64 {
	return c.cfg.Commerce.ShippingFee
}

func (c *Client) emit(ctx context.Context, ev Event) {
	c.events.Emit(ctx, ev)
}
