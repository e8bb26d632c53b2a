package luxeapi

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client counter or histogram.
//
// MetricID values are stable within a release; exporters map them to names.
type MetricID uint16

const (
	// MetricRequestTotal counts pipeline calls, retries excluded.
	MetricRequestTotal MetricID = iota
	// MetricRequestSuccess counts calls that ended with a 2xx.
	MetricRequestSuccess
	// MetricRequestHTTPError counts calls that ended with a normalized APIError.
	MetricRequestHTTPError
	// MetricRequestNetworkError counts calls that failed before a response arrived.
	MetricRequestNetworkError
	// MetricUnauthorized counts 401 responses seen by the pipeline.
	MetricUnauthorized
	// MetricRequestRetried counts requests re-issued after a refresh.
	MetricRequestRetried
	// MetricRefreshStarted counts renewal network calls.
	MetricRefreshStarted
	// MetricRefreshJoined counts callers that attached to a renewal already in flight.
	MetricRefreshJoined
	// MetricRefreshSuccess counts renewals that produced a token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts renewals that failed.
	MetricRefreshFailure
	// MetricRefreshSuppressed counts renewals skipped by the cooldown guard.
	MetricRefreshSuppressed
	// MetricProactiveRefresh counts renewals triggered by an expiring JWT.
	MetricProactiveRefresh
	// MetricSessionTerminated counts sessions ended by a failed refresh or a second 401.
	MetricSessionTerminated
	// MetricLogout counts explicit sign-outs.
	MetricLogout
	// MetricRequestLatency is the end-to-end latency of a pipeline call.
	MetricRequestLatency
	// MetricRefreshLatency is the latency of one renewal network call.
	MetricRefreshLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free client counters.
//
// A nil or disabled *Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and, when latency
// histograms are enabled, the per-bucket histogram counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics value from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Counter IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricRequestLatency, MetricRefreshLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func isHistogram(id MetricID) bool {
	return id == MetricRequestLatency || id == MetricRefreshLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
