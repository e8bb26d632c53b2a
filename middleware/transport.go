package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation id of one logical call.
const HeaderRequestID = "X-Request-ID"

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Middleware wraps a transport.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain wraps base with mws so that mws[0] is outermost. A nil base means
// http.DefaultTransport.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		base = mws[i](base)
	}
	return base
}

type requestIDContextKey struct{}

// WithRequestID stores id in ctx; RequestID uses it instead of minting one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey{}).(string)
	return id, ok && id != ""
}

// NewRequestID returns a random UUID string.
func NewRequestID() string {
	return uuid.NewString()
}

// RequestID sets X-Request-ID unless the request already has one. The id
// comes from the request context when present, otherwise a new UUID.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get(HeaderRequestID) != "" {
				return next.RoundTrip(r)
			}
			id, ok := RequestIDFromContext(r.Context())
			if !ok {
				id = NewRequestID()
			}
			r = r.Clone(r.Context())
			r.Header.Set(HeaderRequestID, id)
			return next.RoundTrip(r)
		})
	}
}

// UserAgent sets ua on requests that do not carry a User-Agent.
func UserAgent(ua string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if ua == "" {
			return next
		}
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("User-Agent") != "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			r.Header.Set("User-Agent", ua)
			return next.RoundTrip(r)
		})
	}
}

// Logging records method, path, status, and duration at debug level.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if logger == nil {
			return next
		}
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			ctx := r.Context()
			if !logger.Enabled(ctx, slog.LevelDebug) {
				return next.RoundTrip(r)
			}

			start := time.Now()
			resp, err := next.RoundTrip(r)
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", r.Header.Get(HeaderRequestID)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelDebug, "luxeapi round trip failed", attrs...)
				return resp, err
			}
			attrs = append(attrs, slog.Int("status", resp.StatusCode))
			logger.LogAttrs(ctx, slog.LevelDebug, "luxeapi round trip", attrs...)
			return resp, nil
		})
	}
}
