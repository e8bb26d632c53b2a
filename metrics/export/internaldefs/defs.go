package internaldefs

import (
	"github.com/luxesuite/luxeapi"
)

// CounterDef maps a client counter to its exported name.
type CounterDef struct {
	ID   luxeapi.MetricID
	Name string
	Help string
}

// HistogramDef maps a client histogram to its exported name.
type HistogramDef struct {
	ID   luxeapi.MetricID
	Name string
	Help string
}

// EventsDroppedName is the counter for events lost to dispatcher backpressure.
const (
	EventsDroppedName = "luxeapi_events_dropped_total"
	EventsDroppedHelp = "Session events dropped due to dispatcher backpressure."
)

// Session gauges read from the client at collection time.
const (
	SessionActiveName = "luxeapi_session_active"
	SessionActiveHelp = "1 while the token store holds an access token."
	SinkPanicsName    = "luxeapi_event_sink_panics_total"
	SinkPanicsHelp    = "Session event deliveries aborted by a panicking sink."
)

var CounterDefs = []CounterDef{
	{ID: luxeapi.MetricRequestTotal, Name: "luxeapi_requests_total", Help: "API calls issued through the pipeline."},
	{ID: luxeapi.MetricRequestSuccess, Name: "luxeapi_request_success_total", Help: "API calls that ended with a 2xx response."},
	{ID: luxeapi.MetricRequestHTTPError, Name: "luxeapi_request_http_error_total", Help: "API calls that ended with a non-2xx response."},
	{ID: luxeapi.MetricRequestNetworkError, Name: "luxeapi_request_network_error_total", Help: "API calls that failed before a response arrived."},
	{ID: luxeapi.MetricUnauthorized, Name: "luxeapi_unauthorized_total", Help: "401 responses on authenticated calls."},
	{ID: luxeapi.MetricRequestRetried, Name: "luxeapi_request_retried_total", Help: "Calls re-issued after a token refresh."},
	{ID: luxeapi.MetricRefreshStarted, Name: "luxeapi_refresh_started_total", Help: "Token renewal network calls."},
	{ID: luxeapi.MetricRefreshJoined, Name: "luxeapi_refresh_joined_total", Help: "Callers that joined a renewal in flight."},
	{ID: luxeapi.MetricRefreshSuccess, Name: "luxeapi_refresh_success_total", Help: "Successful token renewals."},
	{ID: luxeapi.MetricRefreshFailure, Name: "luxeapi_refresh_failure_total", Help: "Failed token renewals."},
	{ID: luxeapi.MetricRefreshSuppressed, Name: "luxeapi_refresh_suppressed_total", Help: "Renewals answered from the cooldown guard."},
	{ID: luxeapi.MetricProactiveRefresh, Name: "luxeapi_refresh_proactive_total", Help: "Renewals triggered by an expiring access token."},
	{ID: luxeapi.MetricSessionTerminated, Name: "luxeapi_session_terminated_total", Help: "Sessions ended by an unrecoverable 401."},
	{ID: luxeapi.MetricLogout, Name: "luxeapi_logout_total", Help: "Explicit sign-outs."},
}

var HistogramDefs = []HistogramDef{
	{ID: luxeapi.MetricRequestLatency, Name: "luxeapi_request_latency_seconds", Help: "End-to-end API call latency, refresh and retry included."},
	{ID: luxeapi.MetricRefreshLatency, Name: "luxeapi_refresh_latency_seconds", Help: "Token renewal network call latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds; the eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundLabels are the le attribute values matching HistogramUpperBounds.
var HistogramBoundLabels = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
