// Package oauth implements Google sign-in: consent URL, code exchange and
// ID-token verification against Google's published keys.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"

	"journeymap/api/internal/logging"
)

const (
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

var (
	ErrNotConfigured  = errors.New("google sign-in not configured")
	ErrInvalidIDToken = errors.New("invalid google id token")
	ErrMissingIDToken = errors.New("token response has no id_token")
)

// Config describes the OAuth client registered with Google.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Overrides for tests and private deployments.
	AuthURL  string
	TokenURL string
	JWKSURL  string
}

// Identity is the verified subset of an ID token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Provider talks to Google.
type Provider struct {
	oauth    *oauth2.Config
	jwks     *keyfunc.JWKS
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

// NewGoogleProvider fetches Google's JWKS and keeps it refreshed in the
// background until ctx is cancelled.
func NewGoogleProvider(ctx context.Context, cfg Config, logger *logging.Logger) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = defaultJWKSURL
	}
	logger = logging.OrNop(logger).Named("oauth")
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("refresh google jwks failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return NewProvider(cfg, jwks), nil
}

// NewProvider builds a provider around an existing key set.
func NewProvider(cfg Config, jwks *keyfunc.JWKS) *Provider {
	authURL, tokenURL := cfg.AuthURL, cfg.TokenURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		jwks:     jwks,
		audience: cfg.ClientID,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
		now:      time.Now,
	}
}

// AuthURL returns the consent page URL carrying state.
func (p *Provider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange trades an authorization code for tokens and verifies the ID token.
func (p *Provider) Exchange(ctx context.Context, code string) (Identity, error) {
	if strings.TrimSpace(code) == "" {
		return Identity{}, fmt.Errorf("%w: empty authorization code", ErrInvalidIDToken)
	}
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return Identity{}, ErrMissingIDToken
	}
	return p.VerifyIDToken(ctx, raw)
}

type idClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// VerifyIDToken checks signature, audience, issuer and expiry.
func (p *Provider) VerifyIDToken(_ context.Context, raw string) (Identity, error) {
	if p.jwks == nil {
		return Identity{}, ErrNotConfigured
	}
	var claims idClaims
	// Expiry is checked below against p.now so the clock can be pinned in tests.
	parsed, err := p.parser.ParseWithClaims(raw, &claims, p.jwks.Keyfunc)
	if err != nil && !onlyExpiry(err) {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if parsed == nil {
		return Identity{}, ErrInvalidIDToken
	}

	now := p.now()
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(now) {
		return Identity{}, fmt.Errorf("%w: expired", ErrInvalidIDToken)
	}
	if !claims.VerifyAudience(p.audience, true) {
		return Identity{}, fmt.Errorf("%w: audience mismatch", ErrInvalidIDToken)
	}
	if !validIssuer(claims.Issuer) {
		return Identity{}, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIDToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidIDToken)
	}

	return Identity{
		Subject:       claims.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: truthy(claims.EmailVerified),
		Name:          strings.TrimSpace(claims.Name),
		Picture:       claims.Picture,
	}, nil
}

// Close stops the background key refresh.
func (p *Provider) Close() {
	if p != nil && p.jwks != nil {
		p.jwks.EndBackground()
	}
}

func onlyExpiry(err error) bool {
	var ve *jwt.ValidationError
	return errors.As(err, &ve) && ve.Errors == jwt.ValidationErrorExpired
}

func validIssuer(iss string) bool {
	for _, allowed := range googleIssuers {
		if iss == allowed {
			return true
		}
	}
	return false
}

// Google has sent email_verified both as a bool and as the string "true".
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	}
	return false
}
