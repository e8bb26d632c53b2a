package luxeapi

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config defines a public type used by luxeapi APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable once passed to [Builder.WithConfig].
type Config struct {
	// BaseURL is the Luxe Suite API origin, e.g. "https://api.luxesuite.example".
	BaseURL string
	// AppURL is the public origin of the dashboard; OAuth redirects land on it.
	AppURL string

	HTTP     HTTPConfig
	Refresh  RefreshConfig
	OAuth    OAuthConfig
	Events   EventsConfig
	Metrics  MetricsConfig
	Commerce CommerceConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig tunes the transport used for API calls.
type HTTPConfig struct {
	RequestTimeout time.Duration
	UserAgent      string
	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig tunes access-token renewal.
type RefreshConfig struct {
	// Path of the cookie-authenticated renewal endpoint.
	Path string
	// Cooldown suppresses a renewal that would start less than Cooldown after
	// the previous one completed. Zero disables the guard.
	Cooldown time.Duration
	// Timeout bounds one renewal call independently of the waiting callers.
	Timeout time.Duration
	// ProactiveWindow renews a JWT access token this long before its exp.
	// Zero keeps renewal purely reactive (on 401).
	ProactiveWindow time.Duration
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig describes the authorization-code + PKCE login.
type OAuthConfig struct {
	ClientID      string
	RedirectPath  string
	AuthorizePath string
	RegisterPath  string
	TokenPath     string
	Scopes        []string
	VerifierTTL   time.Duration
}

// EventsConfig controls the asynchronous session event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process client metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// CommerceConfig carries values the checkout pages need from configuration.
type CommerceConfig struct {
	ShippingFee float64
	Currency    string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration the dashboard ships with. BaseURL
// and OAuth.ClientID still have to be provided.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			RequestTimeout:   30 * time.Second,
			UserAgent:        "luxeapi-go/1",
			MaxResponseBytes: 8 << 20,
		},
		Refresh: RefreshConfig{
			Path:            "/api/refresh-token",
			Cooldown:        time.Second,
			Timeout:         15 * time.Second,
			ProactiveWindow: 0,
		},
		OAuth: OAuthConfig{
			RedirectPath:  "/auth/callback",
			AuthorizePath: "/oauth/authorize",
			RegisterPath:  "/oauth/register",
			TokenPath:     "/oauth/token",
			VerifierTTL:   10 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Commerce: CommerceConfig{
			ShippingFee: 150,
			Currency:    "PHP",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.OAuth.Scopes) > 0 {
		out.OAuth.Scopes = append([]string(nil), cfg.OAuth.Scopes...)
	}
	out.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	out.AppURL = strings.TrimRight(strings.TrimSpace(cfg.AppURL), "/")
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if err := validateOrigin("BaseURL", c.BaseURL); err != nil {
		return err
	}
	if c.AppURL != "" {
		if err := validateOrigin("AppURL", c.AppURL); err != nil {
			return err
		}
	}

	if c.HTTP.RequestTimeout < 0 {
		return errors.New("HTTP RequestTimeout must be >= 0")
	}
	if c.HTTP.MaxResponseBytes <= 0 {
		return errors.New("HTTP MaxResponseBytes must be > 0")
	}

	if !strings.HasPrefix(c.Refresh.Path, "/") {
		return errors.New("Refresh Path must start with /")
	}
	if c.Refresh.Cooldown < 0 {
		return errors.New("Refresh Cooldown must be >= 0")
	}
	if c.Refresh.Timeout < 0 {
		return errors.New("Refresh Timeout must be >= 0")
	}
	if c.Refresh.ProactiveWindow < 0 {
		return errors.New("Refresh ProactiveWindow must be >= 0")
	}

	for name, p := range map[string]string{
		"RedirectPath":  c.OAuth.RedirectPath,
		"AuthorizePath": c.OAuth.AuthorizePath,
		"RegisterPath":  c.OAuth.RegisterPath,
		"TokenPath":     c.OAuth.TokenPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("OAuth " + name + " must start with /")
		}
	}
	if c.OAuth.VerifierTTL <= 0 {
		return errors.New("OAuth VerifierTTL must be > 0")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when enabled")
	}

	if c.Commerce.ShippingFee < 0 {
		return errors.New("Commerce ShippingFee must be >= 0")
	}

	return nil
}

// RedirectURL is the absolute OAuth callback URL.
func (c Config) RedirectURL() string {
	return strings.TrimRight(c.AppURL, "/") + c.OAuth.RedirectPath
}

func (c Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func validateOrigin(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return errors.New(field + " is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New(field + " must use http or https")
	}
	if u.Host == "" {
		return errors.New(field + " must include a host")
	}
	return nil
}
