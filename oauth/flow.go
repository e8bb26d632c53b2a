package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	// ErrVerifierMissing is returned by Exchange when no verifier was saved
	// for the session key, or it expired.
	ErrVerifierMissing = errors.New("pkce code verifier missing")
	// ErrExchangeFailed wraps token endpoint failures.
	ErrExchangeFailed = errors.New("authorization code exchange failed")
	// ErrInvalidConfig is returned by NewFlow when a required setting is missing.
	ErrInvalidConfig = errors.New("invalid oauth config")
)

// Config describes the OAuth client registration.
type Config struct {
	BaseURL       string
	ClientID      string
	RedirectURL   string
	AuthorizePath string
	RegisterPath  string
	TokenPath     string
	Scopes        []string
	VerifierTTL   time.Duration
	// HTTPClient performs the token exchange; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Token is the token endpoint response.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// Flow runs the authorization-code + PKCE login.
type Flow struct {
	authorize oauth2.Config
	register  oauth2.Config
	verifiers VerifierStore
	ttl       time.Duration
	http      *http.Client
}

// NewFlow validates cfg and keeps PKCE verifiers in verifiers between the
// authorize redirect and the callback. BaseURL, ClientID and RedirectURL are
// required; unset paths fall back to the backend defaults.
func NewFlow(cfg Config, verifiers VerifierStore) (*Flow, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	switch {
	case base == "":
		return nil, fmt.Errorf("%w: base url required", ErrInvalidConfig)
	case strings.TrimSpace(cfg.ClientID) == "":
		return nil, fmt.Errorf("%w: client id required", ErrInvalidConfig)
	case strings.TrimSpace(cfg.RedirectURL) == "":
		return nil, fmt.Errorf("%w: redirect url required", ErrInvalidConfig)
	case verifiers == nil:
		return nil, fmt.Errorf("%w: verifier store required", ErrInvalidConfig)
	}
	if cfg.VerifierTTL <= 0 {
		cfg.VerifierTTL = 10 * time.Minute
	}

	authorize := oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURL,
		Scopes:      append([]string(nil), cfg.Scopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + pathOr(cfg.AuthorizePath, "/oauth/authorize"),
			TokenURL:  base + pathOr(cfg.TokenPath, "/oauth/token"),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	register := authorize
	register.Endpoint.AuthURL = base + pathOr(cfg.RegisterPath, "/oauth/register")

	return &Flow{
		authorize: authorize,
		register:  register,
		verifiers: verifiers,
		ttl:       cfg.VerifierTTL,
		http:      cfg.HTTPClient,
	}, nil
}

// AuthorizeURL starts a login for session key and returns the URL to redirect
// the user to.
func (f *Flow) AuthorizeURL(ctx context.Context, key string) (string, error) {
	return f.start(ctx, &f.authorize, key, "")
}

// RegisterURL starts a sign-up for session key. The URL carries a random
// state value.
func (f *Flow) RegisterURL(ctx context.Context, key string) (string, error) {
	return f.start(ctx, &f.register, key, uuid.NewString())
}

func (f *Flow) start(ctx context.Context, cfg *oauth2.Config, key, state string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty session key", ErrInvalidConfig)
	}
	verifier := GenerateVerifier()
	if err := f.verifiers.Save(ctx, key, verifier, f.ttl); err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Exchange trades the callback code for tokens using the verifier saved for
// key. The verifier is deleted once the exchange succeeds.
func (f *Flow) Exchange(ctx context.Context, key, code string) (*Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", ErrExchangeFailed)
	}

	verifier, ok, err := f.verifiers.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVerifierMissing
	}

	if f.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.http)
	}
	tok, err := f.authorize.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, fmt.Errorf("%w: status %d: %w", ErrExchangeFailed, re.Response.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	if err := f.verifiers.Delete(ctx, key); err != nil {
		return nil, err
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, nil
}

func pathOr(p, def string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return def
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
