package luxeapi

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// refreshObserver feeds coordinator activity into metrics, events and logs.
type refreshObserver struct {
	metrics *Metrics
	events  *eventDispatcher
	logger  *slog.Logger
}

func (o *refreshObserver) Started() {
	o.metrics.Inc(MetricRefreshStarted)
}

func (o *refreshObserver) Joined() {
	o.metrics.Inc(MetricRefreshJoined)
}

func (o *refreshObserver) Suppressed(prior error) {
	o.metrics.Inc(MetricRefreshSuppressed)
	ev := Event{Type: EventRefreshSuppressed, Success: prior == nil}
	if prior != nil {
		ev.Error = prior.Error()
	}
	o.emit(ev)
	o.logger.Info("luxeapi refresh suppressed by cooldown", slog.Bool("prior_failed", prior != nil))
}

func (o *refreshObserver) Completed(err error, elapsed time.Duration) {
	o.metrics.Observe(MetricRefreshLatency, elapsed)
	meta := map[string]string{"elapsed_ms": strconv.FormatInt(elapsed.Milliseconds(), 10)}

	if err == nil {
		o.metrics.Inc(MetricRefreshSuccess)
		o.emit(Event{Type: EventRefreshSucceeded, Success: true, Metadata: meta})
		return
	}

	o.metrics.Inc(MetricRefreshFailure)
	o.emit(Event{Type: EventRefreshFailed, Success: false, Error: err.Error(), Metadata: meta})
	o.logger.Warn("luxeapi token refresh failed",
		slog.String("error", err.Error()),
		slog.Duration("elapsed", elapsed),
	)
}

func (o *refreshObserver) emit(ev Event) {
	o.events.Emit(context.Background(), ev)
}
