// Package session holds the client-side access token cell used by the luxeapi
// request pipeline.
//
// # Store contract
//
// A [Store] is a single mutable cell: Get returns the current bearer token,
// Set replaces it wholesale and Clear drops it (logged-out state). Exactly one
// token is current at a time. Implementations must be safe for concurrent use.
//
// # Backends
//
//   - [MemoryStore]: process-local cell, the default.
//   - [RedisStore]: one key per client session, for backends-for-frontends
//     that hold many independent sessions.
//   - [PostgresStore]: durable upsert-per-session table.
//
// # Architecture boundaries
//
// This package stores opaque strings. It does NOT parse tokens, talk to the
// Luxe Suite API, or decide when to refresh. Those responsibilities belong to
// the jwt and refresh packages and to the Client.
//
// # What this package must NOT do
//
//   - Import luxeapi, refresh, or dashboard (no upward imports).
//   - Persist refresh tokens; those live server-side in an HTTP-only cookie.
package session
