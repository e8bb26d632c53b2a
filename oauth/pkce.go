package oauth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	// MethodS256 is the only challenge method the backend accepts.
	MethodS256 = "S256"

	minVerifierLen = 43
	maxVerifierLen = 128
)

var (
	// ErrInvalidVerifier reports a verifier outside 43..128 unreserved characters.
	ErrInvalidVerifier = errors.New("invalid code verifier")
	// ErrUnsupportedChallengeMethod reports any method other than S256.
	ErrUnsupportedChallengeMethod = errors.New("unsupported code challenge method")
	// ErrCodeVerificationFailed is returned when a verifier does not hash to
	// the stored challenge.
	ErrCodeVerificationFailed = errors.New("code verification failed")
)

// GenerateVerifier returns 32 random bytes, base64url encoded without
// padding (43 characters).
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// Challenge derives the S256 code challenge for verifier.
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidateVerifier checks the RFC 7636 length and character set.
func ValidateVerifier(verifier string) error {
	if len(verifier) < minVerifierLen || len(verifier) > maxVerifierLen {
		return fmt.Errorf("%w: length %d outside %d..%d", ErrInvalidVerifier, len(verifier), minVerifierLen, maxVerifierLen)
	}
	for i := 0; i < len(verifier); i++ {
		if !unreserved(verifier[i]) {
			return fmt.Errorf("%w: character %q at %d", ErrInvalidVerifier, verifier[i], i)
		}
	}
	return nil
}

// VerifyChallenge checks verifier against challenge.
func VerifyChallenge(verifier, challenge, method string) error {
	if method != MethodS256 {
		return fmt.Errorf("%w: %s", ErrUnsupportedChallengeMethod, method)
	}
	if err := ValidateVerifier(verifier); err != nil {
		return fmt.Errorf("%w: %w", ErrCodeVerificationFailed, err)
	}
	if subtle.ConstantTimeCompare([]byte(Challenge(verifier)), []byte(challenge)) != 1 {
		return ErrCodeVerificationFailed
	}
	return nil
}

func unreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
