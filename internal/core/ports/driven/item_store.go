package driven

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ItemStore persists imported items.
type ItemStore interface {
	// UpsertItem inserts the item or overwrites the mutable fields of the
	// existing row with the same (UserID, Provider, ProviderItemID).
	// It must be a single storage-level atomic upsert, never read-then-write.
	UpsertItem(ctx context.Context, item domain.Item) (domain.StoredItem, error)

	// CountItems returns how many items of all kinds the account has imported.
	CountItems(ctx context.Context, userID string, provider domain.ProviderType) (int, error)

	// DeleteAllItemsForAccount removes every item the account imported.
	DeleteAllItemsForAccount(ctx context.Context, userID string, provider domain.ProviderType) (int, error)

	// GetItem retrieves one item by its idempotence key.
	// Returns domain.ErrNotFound if absent.
	GetItem(ctx context.Context, kind domain.ItemKind, userID string, provider domain.ProviderType,
		providerItemID string) (domain.Item, error)
}
