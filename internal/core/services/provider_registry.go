package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure ProviderRegistry implements the interface.
var _ driven.ProviderRegistry = (*ProviderRegistry)(nil)

type registryKey struct {
	provider domain.ProviderType
	kind     domain.ItemKind
}

// ProviderRegistry maps (provider, item kind) to the client that imports it.
type ProviderRegistry struct {
	mu      sync.RWMutex
	clients map[registryKey]driven.ProviderClient
}

// NewProviderRegistry creates a registry holding the given clients.
func NewProviderRegistry(clients ...driven.ProviderClient) *ProviderRegistry {
	r := &ProviderRegistry{clients: make(map[registryKey]driven.ProviderClient)}
	for _, c := range clients {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a client.
func (r *ProviderRegistry) Register(c driven.ProviderClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[registryKey{c.Provider(), c.Kind()}] = c
}

// Client returns the client for a provider and item kind.
func (r *ProviderRegistry) Client(provider domain.ProviderType, kind domain.ItemKind) (driven.ProviderClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[registryKey{provider, kind}]
	if !ok {
		return nil, fmt.Errorf("%w: no %s client for %s", domain.ErrUnsupportedProvider, kind, provider)
	}
	return c, nil
}

// Kinds returns the item kinds registered for a provider.
func (r *ProviderRegistry) Kinds(provider domain.ProviderType) []domain.ItemKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var kinds []domain.ItemKind
	for k := range r.clients {
		if k.provider == provider {
			kinds = append(kinds, k.kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
