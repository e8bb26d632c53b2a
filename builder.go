package luxeapi

import (
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/luxesuite/luxeapi/middleware"
	"github.com/luxesuite/luxeapi/refresh"
	"github.com/luxesuite/luxeapi/session"
)

// Builder assembles a Client.
//
// Builder instances are single-use: Build may succeed at most once.
type Builder struct {
	config Config

	store      session.Store
	httpClient *http.Client
	renewer    refresh.Renewer
	logger     *slog.Logger
	eventSink  EventSink
	transport  []middleware.Middleware

	built bool
}

// New describes the new operation and its observable behavior.
//
// New starts from DefaultConfig; BaseURL must still be supplied.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig stores a copy of cfg; later edits to cfg have no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTokenStore describes the withtokenstore operation and its observable behavior.
//
// WithTokenStore replaces the default in-memory store, e.g. with a
// session.RedisStore keyed per end user.
func (b *Builder) WithTokenStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// The client is copied. A cookie jar is added when it has none, and the
// configured transport middleware wraps its Transport.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithRenewer describes the withrenewer operation and its observable behavior.
//
// WithRenewer overrides the default POST to Config.Refresh.Path.
func (b *Builder) WithRenewer(renewer refresh.Renewer) *Builder {
	b.renewer = renewer
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// Setting a sink enables the event dispatcher.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	if sink != nil {
		b.config.Events.Enabled = true
	}
	return b
}

// WithMiddleware describes the withmiddleware operation and its observable behavior.
//
// Extra middleware runs inside the built-in request id, user agent and
// logging adapters.
func (b *Builder) WithMiddleware(mws ...middleware.Middleware) *Builder {
	b.transport = append(b.transport, mws...)
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when configuration validation or dependency
// construction fails.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default().With("component", "luxeapi")
	}

	httpClient, err := b.buildHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		store = session.NewMemoryStore()
	}

	renewer := b.renewer
	if renewer == nil {
		renewer = &endpointRenewer{
			http:     httpClient,
			url:      cfg.endpoint(cfg.Refresh.Path),
			maxBytes: cfg.HTTP.MaxResponseBytes,
		}
	}

	c := &Client{
		cfg:     cfg,
		http:    httpClient,
		store:   store,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		events:  newEventDispatcher(cfg.Events, b.eventSink, logger, time.Now),
		now:     time.Now,
	}

	cooldown := cfg.Refresh.Cooldown
	if cooldown == 0 {
		cooldown = -1
	}
	coordinator, err := refresh.New(renewer, store, refresh.Options{
		Cooldown: cooldown,
		Timeout:  cfg.Refresh.Timeout,
		Observer: &refreshObserver{
			metrics: c.metrics,
			events:  c.events,
			logger:  logger,
		},
	})
	if err != nil {
		c.events.Close()
		return nil, err
	}
	c.coordinator = coordinator

	b.built = true
	return c, nil
}

func (b *Builder) buildHTTPClient(cfg Config, logger *slog.Logger) (*http.Client, error) {
	var hc http.Client
	if b.httpClient != nil {
		hc = *b.httpClient
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	if hc.Timeout == 0 {
		hc.Timeout = cfg.HTTP.RequestTimeout
	}

	mws := []middleware.Middleware{
		middleware.RequestID(),
		middleware.UserAgent(cfg.HTTP.UserAgent),
		middleware.Logging(logger),
	}
	mws = append(mws, b.transport...)
	hc.Transport = middleware.Chain(hc.Transport, mws...)
	return &hc, nil
}
