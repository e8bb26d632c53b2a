package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/luxesuite/luxeapi"
	"github.com/luxesuite/luxeapi/oauth"
)

// ErrNoSession is returned by operations that need a Session when the
// Service wraps a plain Doer.
var ErrNoSession = errors.New("dashboard: doer does not manage a session")

// Login signs in with email and password on the Luxe Suite domain. The
// response sets the refresh cookie; when it also carries an access token the
// token is stored.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, validationError("credentials", "email and password are required")
	}
	var out LoginResult
	err := s.doer.Do(ctx, &luxeapi.Request{
		Method: http.MethodPost,
		Path:   "/api/luxesuite/login",
		JSON:   map[string]string{"email": email, "password": password},
		NoAuth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken != "" {
		if sess, ok := s.doer.(Session); ok {
			if err := sess.SignIn(ctx, out.AccessToken); err != nil {
				return nil, err
			}
		}
	}
	return &out, nil
}

// Register creates a business account. The raw response body is returned.
func (s *Service) Register(ctx context.Context, reg Registration) (map[string]any, error) {
	if !validEmail(reg.Email) {
		return nil, validationError("email", "valid email is required")
	}
	if strings.TrimSpace(reg.Slug) == "" {
		return nil, validationError("slug", "slug is required")
	}
	out := map[string]any{}
	err := s.doer.Do(ctx, &luxeapi.Request{
		Method: http.MethodPost,
		Path:   "/api/register",
		JSON:   reg,
		NoAuth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentUser returns the signed-in user.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	var out envelope[User]
	if err := s.get(ctx, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// StoreRefreshToken hands the refresh token to the backend, which sets it as
// an HTTP-only cookie in the client's jar.
func (s *Service) StoreRefreshToken(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return validationError("refresh_token", "required")
	}
	return s.doer.Do(ctx, &luxeapi.Request{
		Method: http.MethodPost,
		Path:   "/api/store-refresh-token",
		JSON:   map[string]string{"refresh_token": refreshToken},
		NoAuth: true,
	}, nil)
}

// Logout clears the local token, then asks the backend to drop the refresh
// cookie. Backend failures are logged; the local sign-out stands.
func (s *Service) Logout(ctx context.Context) error {
	if sess, ok := s.doer.(Session); ok {
		if err := sess.SignOut(ctx); err != nil {
			return err
		}
	}
	err := s.doer.Do(ctx, &luxeapi.Request{
		Method: http.MethodPost,
		Path:   "/api/logout",
		NoAuth: true,
	}, nil)
	if err != nil {
		s.logger.WarnContext(ctx, "logout request failed", "error", err)
	}
	return nil
}

// CompleteLogin finishes the PKCE callback: exchange code, store the refresh
// cookie, sign in with the issued access token, then renew it once so the
// stored token comes from the cookie-backed refresh endpoint.
func (s *Service) CompleteLogin(ctx context.Context, flow *oauth.Flow, key, code string) (string, error) {
	sess, ok := s.doer.(Session)
	if !ok {
		return "", ErrNoSession
	}
	if flow == nil {
		return "", fmt.Errorf("%w: nil oauth flow", ErrValidation)
	}
	tok, err := flow.Exchange(ctx, key, code)
	if err != nil {
		return "", err
	}
	if tok.RefreshToken != "" {
		if err := s.StoreRefreshToken(ctx, tok.RefreshToken); err != nil {
			return "", fmt.Errorf("store refresh token: %w", err)
		}
	}
	if err := sess.SignIn(ctx, tok.AccessToken); err != nil {
		return "", err
	}
	fresh, err := sess.EnsureFreshToken(ctx)
	if err != nil {
		return "", err
	}
	return fresh, nil
}
