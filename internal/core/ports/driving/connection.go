package driving

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ConnectionService manages the lifecycle of connected accounts.
type ConnectionService interface {
	// Status reports whether the provider is connected, whether the granted
	// scope is sufficient, and how many items were imported. It never
	// refreshes tokens.
	Status(ctx context.Context, userID string, provider domain.ProviderType) (*domain.ConnectionStatus, error)

	// Connect stores the tokens obtained from a completed consent flow.
	Connect(ctx context.Context, userID string, provider domain.ProviderType,
		grant *domain.TokenGrant) (*domain.ConnectedAccount, error)

	// Disconnect deletes the account and all items imported under it.
	// Returns domain.ErrNotConnected if there is nothing to disconnect.
	Disconnect(ctx context.Context, userID string, provider domain.ProviderType) error

	// BeginConsent returns the consent URL requesting every capability the
	// provider supports.
	BeginConsent(provider domain.ProviderType, state, redirectURI, verifier string) (string, error)

	// CompleteConsent exchanges the authorization code and connects the account.
	CompleteConsent(ctx context.Context, userID string, provider domain.ProviderType,
		code, redirectURI, verifier string) (*domain.ConnectedAccount, error)
}
