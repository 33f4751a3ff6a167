package driving

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// TokenService keeps access tokens usable.
type TokenService interface {
	// EnsureValidToken returns a usable access token, refreshing it if it
	// expires within the safety margin. Returns domain.ErrReauthRequired
	// when the tokens cannot be recovered.
	EnsureValidToken(ctx context.Context, userID string, provider domain.ProviderType) (string, *domain.ConnectedAccount, error)

	// RefreshExpiring proactively refreshes accounts expiring within the
	// configured window and returns how many were refreshed.
	RefreshExpiring(ctx context.Context) (int, error)
}
