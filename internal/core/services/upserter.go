package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Upserter writes normalised items idempotently. Whether the row is new is
// decided by the store's atomic upsert, never by a prior read.
type Upserter struct {
	items driven.ItemStore
	now   func() time.Time
}

// NewUpserter creates an Upserter.
func NewUpserter(items driven.ItemStore) *Upserter {
	return &Upserter{items: items, now: time.Now}
}

// Upsert stamps the item with its owner and timestamps and stores it.
// Returns an error wrapping domain.ErrStorage if the store fails.
func (u *Upserter) Upsert(ctx context.Context, userID string, item domain.Item) (domain.StoredItem, error) {
	h := item.Header()
	if userID == "" || h.ProviderItemID == "" || h.Provider == "" {
		return domain.StoredItem{}, fmt.Errorf("%w: item needs a user, provider and provider item id", domain.ErrInvalidInput)
	}

	now := u.now().UTC()
	h.UserID = userID
	h.FetchedAt = now
	h.UpdatedAt = now

	stored, err := u.items.UpsertItem(ctx, item)
	if err != nil {
		return domain.StoredItem{}, storageError(fmt.Sprintf("upserting %s %s", item.Kind(), h.ProviderItemID), err)
	}
	return stored, nil
}
