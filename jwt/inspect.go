package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNotJWT is returned when the token is not a decodable JWT.
	ErrNotJWT = errors.New("access token is not a jwt")
	// ErrNoExpiry is returned when the token carries no exp claim.
	ErrNoExpiry = errors.New("access token has no expiry")
)

// Claims is the subset of registered claims the client cares about.
type Claims struct {
	Subject   string
	Issuer    string
	ID        string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Inspect decodes token without checking its signature.
func Inspect(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return nil, ErrNotJWT
	}

	var registered jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &registered); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}

	out := &Claims{
		Subject: registered.Subject,
		Issuer:  registered.Issuer,
		ID:      registered.ID,
	}
	if registered.ExpiresAt != nil {
		out.ExpiresAt = registered.ExpiresAt.Time
	}
	if registered.IssuedAt != nil {
		out.IssuedAt = registered.IssuedAt.Time
	}
	return out, nil
}

// Expiry returns the exp claim of token.
func Expiry(token string) (time.Time, error) {
	claims, err := Inspect(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt.IsZero() {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt, nil
}

// ExpiresWithin reports whether token expires before now+window. Tokens that
// cannot be inspected or carry no exp report false.
func ExpiresWithin(token string, window time.Duration, now time.Time) bool {
	exp, err := Expiry(token)
	if err != nil {
		return false
	}
	return !exp.After(now.Add(window))
}
