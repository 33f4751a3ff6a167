package driven

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// TokenEndpoint talks to a provider's OAuth2 token endpoint.
//
// Refresh errors are classified:
//   - rejected refresh token (revoked, expired, invalid_grant): wraps domain.ErrReauthRequired
//   - network failure or 5xx: wraps domain.ErrTokenRefreshFailed
type TokenEndpoint interface {
	// Refresh exchanges a refresh token for a new access token.
	Refresh(ctx context.Context, provider domain.ProviderType, refreshToken string) (*domain.TokenGrant, error)

	// AuthCodeURL builds the consent URL for the given capabilities' scopes.
	AuthCodeURL(provider domain.ProviderType, scopes []string, state, redirectURI, verifier string) (string, error)

	// Exchange trades an authorization code for tokens after consent.
	Exchange(ctx context.Context, provider domain.ProviderType, code, redirectURI, verifier string) (*domain.TokenGrant, error)
}
