// Package luxeapi provides the authenticated HTTP client for the Luxe Suite
// customer API: bearer-token requests, single-flight token refresh on 401,
// one replay per call, and a normalized error shape.
//
// The package is designed for concurrent use: Client methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// luxeapi is the public surface. It exposes [Client], [Builder], [Config],
// [Request], [APIError] and the event and metrics value types. Token
// persistence lives in session, renewal coordination in refresh, JWT
// inspection in jwt, the PKCE login in oauth, and the typed endpoint catalog
// in dashboard.
//
// # What this package must NOT do
//
//   - Interpret business payloads (prices, limits, credits); they pass through.
//   - Retry anything other than a 401 on an authenticated request, and that
//     at most once.
//   - Log or emit token values.
//   - Import dashboard (no import cycles).
package luxeapi
