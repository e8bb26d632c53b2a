package luxeapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvAPIURL          = "LUXE_API_URL"
	EnvAppURL          = "LUXE_APP_URL"
	EnvOAuthClientID   = "LUXE_OAUTH_CLIENT_ID"
	EnvRequestTimeout  = "LUXE_REQUEST_TIMEOUT"
	EnvRefreshCooldown = "LUXE_REFRESH_COOLDOWN"
	EnvProactive       = "LUXE_PROACTIVE_REFRESH"
	EnvShippingFee     = "LUXE_SHIPPING_FEE"
	EnvUserAgent       = "LUXE_USER_AGENT"
	EnvMetricsEnabled  = "LUXE_METRICS_ENABLED"
	EnvEventsEnabled   = "LUXE_EVENTS_ENABLED"
)

// ConfigFromEnv overlays environment variables on DefaultConfig. lookup
// defaults to os.LookupEnv. Malformed values are reported, unset ones keep
// their defaults.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := DefaultConfig()

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvAPIURL); ok {
		cfg.BaseURL = v
	}
	if v, ok := get(EnvAppURL); ok {
		cfg.AppURL = v
	}
	if v, ok := get(EnvOAuthClientID); ok {
		cfg.OAuth.ClientID = v
	}
	if v, ok := get(EnvUserAgent); ok {
		cfg.HTTP.UserAgent = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvRequestTimeout, &cfg.HTTP.RequestTimeout},
		{EnvRefreshCooldown, &cfg.Refresh.Cooldown},
		{EnvProactive, &cfg.Refresh.ProactiveWindow},
	}
	for _, d := range durations {
		v, ok := get(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := get(EnvShippingFee); ok {
		fee, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvShippingFee, err)
		}
		cfg.Commerce.ShippingFee = fee
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{EnvMetricsEnabled, &cfg.Metrics.Enabled},
		{EnvEventsEnabled, &cfg.Events.Enabled},
	}
	for _, b := range bools {
		v, ok := get(b.key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", b.key, err)
		}
		*b.dst = parsed
	}

	return cfg, nil
}
