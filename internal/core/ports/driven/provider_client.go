package driven

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ProviderClient translates normalised list and fetch requests into
// provider API calls for one item kind.
//
// Every error returned wraps a *domain.ProviderError so callers branch on
// domain.ErrorKind and never on provider status codes.
type ProviderClient interface {
	// Provider returns the provider this client talks to.
	Provider() domain.ProviderType

	// Kind returns the item kind this client imports.
	Kind() domain.ItemKind

	// ListPage returns one page of native item IDs for the selector.
	// An empty cursor requests the first page.
	ListPage(ctx context.Context, bearer domain.Bearer, selector domain.ImportSelector,
		cursor string) (*domain.Page, error)

	// FetchItem retrieves full detail for one native item.
	FetchItem(ctx context.Context, bearer domain.Bearer, nativeID string) (*domain.RawItem, error)

	// Normalise converts provider-native detail into a domain item.
	Normalise(raw *domain.RawItem) (domain.Item, error)
}

// SelectorResolver is implemented by clients that accept human-readable
// selectors (label names, "my own profile") and need to resolve them to
// provider IDs before listing.
type SelectorResolver interface {
	ResolveSelector(ctx context.Context, bearer domain.Bearer,
		selector domain.ImportSelector) (domain.ImportSelector, error)
}

// ProviderRegistry looks up the client for a provider and item kind.
type ProviderRegistry interface {
	// Client returns the client, or domain.ErrUnsupportedProvider.
	Client(provider domain.ProviderType, kind domain.ItemKind) (ProviderClient, error)
}
