package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// AccountStore persists one ConnectedAccount per (user, provider).
// It is the only component that reads or writes token secrets.
type AccountStore interface {
	// Get retrieves the account for a user and provider.
	// Returns domain.ErrNotFound if the user never connected the provider.
	Get(ctx context.Context, userID string, provider domain.ProviderType) (*domain.ConnectedAccount, error)

	// Save creates or replaces the account keyed by (UserID, Provider).
	Save(ctx context.Context, account *domain.ConnectedAccount) error

	// Update atomically reads the account, applies fn and writes the result.
	// No other Update or Save for the same account interleaves with fn.
	// If fn returns an error nothing is written and the error is returned.
	// Returns domain.ErrNotFound if the account does not exist.
	Update(ctx context.Context, userID string, provider domain.ProviderType,
		fn func(*domain.ConnectedAccount) error) (*domain.ConnectedAccount, error)

	// Delete removes the account and every item imported under it in one
	// transaction. Returns domain.ErrNotFound if the account does not exist.
	Delete(ctx context.Context, userID string, provider domain.ProviderType) error

	// ListExpiring returns accounts holding a refresh token whose access
	// token expires before the given time.
	ListExpiring(ctx context.Context, before time.Time) ([]domain.ConnectedAccount, error)
}
