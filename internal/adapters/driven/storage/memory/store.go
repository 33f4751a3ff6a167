// Package memory provides in-memory implementations of the driven storage
// ports. They are used by tests and by the "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.AccountStore = (*Store)(nil)
	_ driven.ItemStore    = (*Store)(nil)
)

type itemKey struct {
	kind     domain.ItemKind
	userID   string
	provider domain.ProviderType
	id       string
}

// Store is an in-memory account and item store. Item writes are atomic
// upserts under the store mutex; account updates are serialised per account.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.ConnectedAccount
	items    map[itemKey]domain.Item
	locks    map[string]*accountLock
}

// accountLock serialises writes to one account. It is dropped from the map
// once no caller holds or waits for it.
type accountLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.ConnectedAccount),
		items:    make(map[itemKey]domain.Item),
		locks:    make(map[string]*accountLock),
	}
}

// lockAccount blocks until the caller holds the account's lock and returns
// the matching unlock.
func (s *Store) lockAccount(key string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &accountLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// ==================== Account Store ====================

// Get retrieves the account for a user and provider.
func (s *Store) Get(_ context.Context, userID string, provider domain.ProviderType) (*domain.ConnectedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[domain.AccountKey(userID, provider)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneAccount(&a), nil
}

// Save creates or replaces an account.
func (s *Store) Save(_ context.Context, account *domain.ConnectedAccount) error {
	if account == nil || account.UserID == "" || account.Provider == "" {
		return domain.ErrInvalidInput
	}
	defer s.lockAccount(account.Key())()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Key()] = *cloneAccount(account)
	return nil
}

// Update applies fn to the account while holding its lock.
func (s *Store) Update(
	_ context.Context,
	userID string,
	provider domain.ProviderType,
	fn func(*domain.ConnectedAccount) error,
) (*domain.ConnectedAccount, error) {
	key := domain.AccountKey(userID, provider)
	defer s.lockAccount(key)()

	s.mu.RLock()
	current, ok := s.accounts[key]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	working := cloneAccount(&current)
	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.accounts[key] = *cloneAccount(working)
	s.mu.Unlock()
	return working, nil
}

// Delete removes the account and its items together.
func (s *Store) Delete(_ context.Context, userID string, provider domain.ProviderType) error {
	key := domain.AccountKey(userID, provider)
	defer s.lockAccount(key)()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[key]; !ok {
		return domain.ErrNotFound
	}
	s.deleteItemsLocked(userID, provider)
	delete(s.accounts, key)
	return nil
}

// ListExpiring returns refreshable accounts expiring before the given time.
func (s *Store) ListExpiring(_ context.Context, before time.Time) ([]domain.ConnectedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.ConnectedAccount
	for _, a := range s.accounts {
		if a.RefreshToken == "" || a.ExpiresAt == nil || !a.ExpiresAt.Before(before) {
			continue
		}
		result = append(result, *cloneAccount(&a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key() < result[j].Key() })
	return result, nil
}

// ==================== Item Store ====================

// UpsertItem inserts or overwrites an item keyed by its idempotence key.
func (s *Store) UpsertItem(_ context.Context, item domain.Item) (domain.StoredItem, error) {
	h := item.Header()
	if h.UserID == "" || h.ProviderItemID == "" {
		return domain.StoredItem{}, domain.ErrInvalidInput
	}
	key := itemKey{kind: item.Kind(), userID: h.UserID, provider: h.Provider, id: h.ProviderItemID}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.items[key]
	s.items[key] = cloneItem(item)
	return domain.StoredItem{Kind: item.Kind(), ProviderItemID: h.ProviderItemID, Created: !exists}, nil
}

// GetItem retrieves one item by its idempotence key.
func (s *Store) GetItem(
	_ context.Context,
	kind domain.ItemKind,
	userID string,
	provider domain.ProviderType,
	providerItemID string,
) (domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemKey{kind: kind, userID: userID, provider: provider, id: providerItemID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneItem(item), nil
}

// CountItems counts all items imported under an account.
func (s *Store) CountItems(_ context.Context, userID string, provider domain.ProviderType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.items {
		if k.userID == userID && k.provider == provider {
			n++
		}
	}
	return n, nil
}

// DeleteAllItemsForAccount removes all items imported under an account.
func (s *Store) DeleteAllItemsForAccount(_ context.Context, userID string, provider domain.ProviderType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteItemsLocked(userID, provider), nil
}

func (s *Store) deleteItemsLocked(userID string, provider domain.ProviderType) int {
	n := 0
	for k := range s.items {
		if k.userID == userID && k.provider == provider {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// ==================== Helper Functions ====================

func cloneAccount(a *domain.ConnectedAccount) *domain.ConnectedAccount {
	c := *a
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		c.ExpiresAt = &t
	}
	c.GrantedScopes = append([]string(nil), a.GrantedScopes...)
	return &c
}

func cloneItem(item domain.Item) domain.Item {
	switch v := item.(type) {
	case *domain.Email:
		c := *v
		c.To = append([]string(nil), v.To...)
		c.Cc = append([]string(nil), v.Cc...)
		c.Labels = append([]string(nil), v.Labels...)
		return &c
	case *domain.Tweet:
		c := *v
		return &c
	case *domain.DriveFile:
		c := *v
		c.Parents = append([]string(nil), v.Parents...)
		return &c
	default:
		return item
	}
}
