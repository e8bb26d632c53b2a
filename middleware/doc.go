// Package middleware exposes http.RoundTripper adapters that wrap the
// transport used by luxeapi.Client.
//
// # Adapters
//
//   - [Chain] composes adapters around a base transport.
//   - [RequestID] stamps X-Request-ID on outgoing requests.
//   - [UserAgent] sets a default User-Agent.
//   - [Logging] writes one debug record per round trip.
//
// # Architecture boundaries
//
// Adapters see every attempt, including the replay after a token refresh.
// They do NOT know about tokens or refresh: those decisions live in the
// luxeapi pipeline.
//
// # What this package must NOT do
//
//   - Read, log, or rewrite the Authorization header or cookies.
//   - Retry requests.
//   - Consume response bodies.
package middleware
