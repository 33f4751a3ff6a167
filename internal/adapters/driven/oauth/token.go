// Package oauth implements the TokenEndpoint port over golang.org/x/oauth2.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/connectors"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// Ensure Endpoint implements the interface.
var _ driven.TokenEndpoint = (*Endpoint)(nil)

// DefaultTimeout bounds a single token endpoint call.
const DefaultTimeout = 30 * time.Second

// Endpoint exchanges and refreshes tokens for every configured provider.
type Endpoint struct {
	providers  map[domain.ProviderType]domain.ProviderSettings
	handlers   map[domain.ProviderType]connectors.OAuthHandler
	httpClient *http.Client
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithHandler registers the provider's OAuth quirks.
func WithHandler(provider domain.ProviderType, h connectors.OAuthHandler) Option {
	return func(e *Endpoint) { e.handlers[provider] = h }
}

// WithHTTPClient overrides the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Endpoint) { e.httpClient = c }
}

// NewEndpoint creates an Endpoint for the given provider registrations.
func NewEndpoint(providers map[domain.ProviderType]domain.ProviderSettings, opts ...Option) *Endpoint {
	e := &Endpoint{
		providers:  providers,
		handlers:   make(map[domain.ProviderType]connectors.OAuthHandler),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refresh exchanges a refresh token for a new access token.
func (e *Endpoint) Refresh(ctx context.Context, provider domain.ProviderType, refreshToken string) (*domain.TokenGrant, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", domain.ErrReauthRequired)
	}
	conf, err := e.config(provider, "", nil)
	if err != nil {
		return nil, err
	}

	tok, err := conf.TokenSource(e.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, classify(provider, err)
	}
	grant := toGrant(tok)
	if grant.RefreshToken == refreshToken {
		grant.RefreshToken = ""
	}
	return grant, nil
}

// AuthCodeURL builds the consent URL. A non-empty verifier adds a PKCE S256 challenge.
func (e *Endpoint) AuthCodeURL(provider domain.ProviderType, scopes []string, state, redirectURI, verifier string) (string, error) {
	conf, err := e.config(provider, redirectURI, scopes)
	if err != nil {
		return "", err
	}
	var opts []oauth2.AuthCodeOption
	if h, ok := e.handlers[provider]; ok {
		opts = append(opts, h.AuthCodeOptions()...)
	}
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return conf.AuthCodeURL(state, opts...), nil
}

// Exchange trades an authorization code for tokens and, when the provider
// has a handler, looks up the account identifier.
func (e *Endpoint) Exchange(
	ctx context.Context,
	provider domain.ProviderType,
	code, redirectURI, verifier string,
) (*domain.TokenGrant, error) {
	conf, err := e.config(provider, redirectURI, nil)
	if err != nil {
		return nil, err
	}
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	tok, err := conf.Exchange(e.context(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("exchange code for %s: %w", provider, err)
	}
	grant := toGrant(tok)

	if h, ok := e.handlers[provider]; ok {
		id, err := h.AccountIdentifier(ctx, tok.AccessToken)
		if err != nil {
			logger.Warn("looking up %s account identifier: %v", provider, err)
		} else {
			grant.AccountIdentifier = id
		}
	}
	return grant, nil
}

func (e *Endpoint) config(provider domain.ProviderType, redirectURI string, scopes []string) (*oauth2.Config, error) {
	p, ok := e.providers[provider]
	if !ok || !p.IsConfigured() {
		return nil, fmt.Errorf("%w: %s has no client registration", domain.ErrUnsupportedProvider, provider)
	}
	if len(p.Scopes) > 0 {
		scopes = p.Scopes
	}
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: p.AuthURL, TokenURL: p.TokenURL},
		RedirectURL:  redirectURI,
		Scopes:       scopes,
	}, nil
}

func (e *Endpoint) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// classify maps a token endpoint failure onto ErrReauthRequired when the
// refresh token was rejected and ErrTokenRefreshFailed otherwise.
func classify(provider domain.ProviderType, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		switch {
		case re.ErrorCode == "invalid_grant", re.ErrorCode == "unauthorized_client":
			return fmt.Errorf("%w: %s rejected refresh token (%s)", domain.ErrReauthRequired, provider, re.ErrorCode)
		case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusForbidden:
			return fmt.Errorf("%w: %s rejected refresh token (status %d)", domain.ErrReauthRequired, provider, status)
		default:
			return fmt.Errorf("%w: %s token endpoint returned status %d", domain.ErrTokenRefreshFailed, provider, status)
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTokenRefreshFailed, provider, err)
}

func toGrant(tok *oauth2.Token) *domain.TokenGrant {
	grant := &domain.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scopes:       grantedScopes(tok),
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		grant.ExpiresAt = &expiry
	}
	return grant
}

// grantedScopes reads the space separated "scope" field of the token
// response. Nil means the provider did not report scopes.
func grantedScopes(tok *oauth2.Token) []string {
	raw, ok := tok.Extra("scope").(string)
	if !ok {
		return nil
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
