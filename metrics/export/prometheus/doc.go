// Package prometheus exposes luxeapi client metrics as a Prometheus collector.
//
// [NewExporter] accepts a [luxeapi.Client] and returns a prometheus.Collector
// plus an [http.Handler] backed by a private registry. Counter names are
// prefixed luxeapi_*_total; the histograms are luxeapi_request_latency_seconds
// and luxeapi_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register the
//     collector or mount the Handler.
//   - Mutate client state.
package prometheus
