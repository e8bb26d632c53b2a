// Package refresh coordinates access-token renewal for the luxeapi client.
//
// # Single flight
//
// [Coordinator.EnsureFreshToken] guarantees that at most one renewal network
// call is in flight. Callers that arrive while a renewal is running attach to
// it and observe the same outcome: the new token on success, the same error on
// failure. Once a flight completes the marker is cleared so a later 401 can
// start a new one.
//
// # Cooldown
//
// A renewal that completed less than [Options.Cooldown] ago is not repeated.
// Callers inside the window get the prior outcome without a network call: the
// prior token, or an error matching both [ErrCooldown] and the prior failure.
//
// # Architecture boundaries
//
// This package owns flight bookkeeping and writes successful tokens to the
// injected session.Store. It does NOT issue API requests, clear the store on
// failure, or decide that a session is over; the request pipeline does that.
//
// # What this package must NOT do
//
//   - Import luxeapi or dashboard.
//   - Retry a failed renewal on its own.
package refresh
