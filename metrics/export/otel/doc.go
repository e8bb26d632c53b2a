// Package otel provides OpenTelemetry metric bindings for luxeapi client
// counters and histograms.
//
// [NewExporter] registers an Int64ObservableCounter for each client counter
// and, per latency histogram, a bucket gauge keyed by the le attribute plus a
// count gauge. A session gauge reports whether the token store holds an
// access token. One callback reads [luxeapi.Client.MetricsSnapshot] per
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
