package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/luxesuite/luxeapi"
	"github.com/oklog/ulid/v2"
)

// ErrValidation reports input rejected before any request was sent.
var ErrValidation = errors.New("dashboard: validation failed")

// HeaderIdempotencyKey is sent on calls that create billable resources.
const HeaderIdempotencyKey = "Idempotency-Key"

// Doer sends one request through the authenticated pipeline.
type Doer interface {
	Do(ctx context.Context, req *luxeapi.Request, out any) error
}

// Session is the part of *luxeapi.Client the login and logout operations
// need on top of Doer.
type Session interface {
	Doer
	SignIn(ctx context.Context, token string) error
	SignOut(ctx context.Context) error
	EnsureFreshToken(ctx context.Context) (string, error)
}

type configured interface {
	Config() luxeapi.Config
}

// Service exposes the dashboard routes.
type Service struct {
	doer        Doer
	logger      *slog.Logger
	shippingFee float64
	currency    string
	newKey      func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCommerce overrides the shipping fee and currency used by Quote.
func WithCommerce(shippingFee float64, currency string) Option {
	return func(s *Service) {
		s.shippingFee = shippingFee
		if currency != "" {
			s.currency = currency
		}
	}
}

// WithIdempotencyKeys replaces the ULID generator used for Idempotency-Key.
func WithIdempotencyKeys(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newKey = fn
		}
	}
}

// New wraps doer. When doer is a *luxeapi.Client its logger and commerce
// settings are picked up automatically.
func New(doer Doer, opts ...Option) *Service {
	defaults := luxeapi.DefaultConfig()
	s := &Service{
		doer:        doer,
		logger:      slog.Default().With("component", "dashboard"),
		shippingFee: defaults.Commerce.ShippingFee,
		currency:    defaults.Commerce.Currency,
		newKey:      func() string { return ulid.Make().String() },
	}
	if c, ok := doer.(configured); ok {
		cfg := c.Config()
		s.shippingFee = cfg.Commerce.ShippingFee
		if cfg.Commerce.Currency != "" {
			s.currency = cfg.Commerce.Currency
		}
	}
	if c, ok := doer.(interface{ Logger() *slog.Logger }); ok && c.Logger() != nil {
		s.logger = c.Logger().With("component", "dashboard")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) get(ctx context.Context, path string, query url.Values, out any) error {
	return s.doer.Do(ctx, &luxeapi.Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (s *Service) send(ctx context.Context, method, path string, body, out any) error {
	return s.doer.Do(ctx, &luxeapi.Request{Method: method, Path: path, JSON: body}, out)
}

// sendOnce attaches a fresh idempotency key. The pipeline replays the same
// headers after a refresh, so the retry carries the same key.
func (s *Service) sendOnce(ctx context.Context, req *luxeapi.Request, out any) error {
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set(HeaderIdempotencyKey, s.newKey())
	return s.doer.Do(ctx, req, out)
}

func pathID(prefix string, id string, suffix string) string {
	return prefix + "/" + url.PathEscape(id) + suffix
}

func validationError(field, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, msg)
}

// decodeMaybeEnveloped decodes raw as T, unwrapping a top-level {data} object
// when the route sends one.
func decodeMaybeEnveloped[T any](raw []byte) (*T, error) {
	var out T
	if len(bytes.TrimSpace(raw)) == 0 {
		return &out, nil
	}
	var probe map[string]json.RawMessage
	if json.Unmarshal(raw, &probe) == nil {
		if data, ok := probe["data"]; ok {
			raw = data
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", luxeapi.ErrUnexpectedResponse, err)
	}
	return &out, nil
}
