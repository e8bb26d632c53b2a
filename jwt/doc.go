// Package jwt reads the claims of Luxe Suite access tokens without verifying
// them.
//
// The client never holds the signing key; signature checks belong to the
// backend. The claims are only used to schedule a proactive refresh shortly
// before the token's exp, so an unverifiable or opaque token simply opts out
// of that optimisation.
package jwt
