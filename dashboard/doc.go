// Package dashboard is the typed endpoint catalog of the Luxe Suite API.
//
// Every method is a thin wrapper over one backend route: it shapes the
// request, sends it through a [Doer] (normally *luxeapi.Client) and decodes
// the documented response envelope into a Go type.
//
// # Architecture boundaries
//
// Authentication, token refresh and error normalization happen in the luxeapi
// pipeline. Methods here see either a decoded value or the pipeline's error
// (*luxeapi.APIError, luxeapi.ErrSessionTerminated, transport errors) and
// return it unchanged. The only errors produced locally are [ErrValidation]
// for input checked before any network call.
//
// # What this package must NOT do
//
//   - Retry requests or inspect tokens.
//   - Hold per-user state between calls.
//   - Swallow backend errors, except in Logout where the local sign-out
//     already happened.
package dashboard
