// Package oauth implements the authorization-code + PKCE (RFC 7636) login
// used by the Luxe Suite dashboard.
//
// A [Flow] builds the authorize and register URLs, keeps the code verifier in
// a [VerifierStore] between the redirect and the callback, and exchanges the
// returned code for tokens through golang.org/x/oauth2.
//
// # Architecture boundaries
//
// This package stops at the token response. Storing the access token and
// handing the refresh token to the backend cookie endpoint is the caller's
// job (see the dashboard package).
//
// # What this package must NOT do
//
//   - Log verifiers, codes, or tokens.
//   - Call luxeapi.Client; it has no bearer token yet.
package oauth
