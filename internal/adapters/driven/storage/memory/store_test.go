package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

func newAccount(userID string, provider domain.ProviderType, expiresIn time.Duration) *domain.ConnectedAccount {
	exp := time.Now().Add(expiresIn)
	return &domain.ConnectedAccount{
		UserID:        userID,
		Provider:      provider,
		AccessToken:   "access",
		RefreshToken:  "refresh",
		ExpiresAt:     &exp,
		GrantedScopes: []string{"read-mail"},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newAccount("u1", domain.ProviderGoogle, time.Hour)))

	got, err := store.Get(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)

	_, err = store.Get(ctx, "u1", domain.ProviderTwitter)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Get_ReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newAccount("u1", domain.ProviderGoogle, time.Hour)))

	got, err := store.Get(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	got.AccessToken = "mutated"
	got.GrantedScopes[0] = "mutated"

	again, err := store.Get(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "access", again.AccessToken)
	assert.Equal(t, []string{"read-mail"}, again.GrantedScopes)
}

func TestStore_Update_ErrorLeavesAccountUnchanged(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newAccount("u1", domain.ProviderGoogle, time.Hour)))

	boom := errors.New("boom")
	_, err := store.Update(ctx, "u1", domain.ProviderGoogle, func(a *domain.ConnectedAccount) error {
		a.AccessToken = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
}

func TestStore_Update_Serialised(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newAccount("u1", domain.ProviderGoogle, time.Hour)))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "u1", domain.ProviderGoogle, func(a *domain.ConnectedAccount) error {
				a.GrantedScopes = append(a.GrantedScopes, "x")
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Len(t, got.GrantedScopes, 51)
	assert.Zero(t, heldLocks(store))
}

func TestStore_AccountLocksDroppedWhenReleased(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, user := range []string{"u1", "u2", "u3"} {
		require.NoError(t, store.Save(ctx, newAccount(user, domain.ProviderGoogle, time.Hour)))
		_, err := store.Update(ctx, user, domain.ProviderGoogle, func(*domain.ConnectedAccount) error { return nil })
		require.NoError(t, err)
	}
	require.NoError(t, store.Delete(ctx, "u1", domain.ProviderGoogle))
	_, err := store.Update(ctx, "u2", domain.ProviderGoogle, func(*domain.ConnectedAccount) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	assert.Zero(t, heldLocks(store))
}

func heldLocks(s *Store) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.locks)
}

func TestStore_Update_NotFound(t *testing.T) {
	store := NewStore()
	_, err := store.Update(context.Background(), "u1", domain.ProviderGoogle, func(*domain.ConnectedAccount) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_UpsertItem_Idempotent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	email := &domain.Email{
		ItemHeader: domain.ItemHeader{UserID: "u1", Provider: domain.ProviderGoogle, ProviderItemID: "m1"},
		Subject:    "first",
	}
	stored, err := store.UpsertItem(ctx, email)
	require.NoError(t, err)
	assert.True(t, stored.Created)

	email.Subject = "second"
	stored, err = store.UpsertItem(ctx, email)
	require.NoError(t, err)
	assert.False(t, stored.Created)

	count, err := store.CountItems(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetItem(ctx, domain.ItemKindEmail, "u1", domain.ProviderGoogle, "m1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.(*domain.Email).Subject)
}

func TestStore_SameNativeIDDifferentKinds(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.UpsertItem(ctx, &domain.Email{ItemHeader: domain.ItemHeader{UserID: "u1", Provider: domain.ProviderGoogle, ProviderItemID: "x"}})
	require.NoError(t, err)
	_, err = store.UpsertItem(ctx, &domain.DriveFile{ItemHeader: domain.ItemHeader{UserID: "u1", Provider: domain.ProviderGoogle, ProviderItemID: "x"}})
	require.NoError(t, err)

	count, err := store.CountItems(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_Delete_CascadesItems(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newAccount("u1", domain.ProviderGoogle, time.Hour)))
	require.NoError(t, store.Save(ctx, newAccount("u2", domain.ProviderGoogle, time.Hour)))

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.UpsertItem(ctx, &domain.Email{ItemHeader: domain.ItemHeader{UserID: "u1", Provider: domain.ProviderGoogle, ProviderItemID: id}})
		require.NoError(t, err)
	}
	_, err := store.UpsertItem(ctx, &domain.Email{ItemHeader: domain.ItemHeader{UserID: "u2", Provider: domain.ProviderGoogle, ProviderItemID: "a"}})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "u1", domain.ProviderGoogle))

	count, err := store.CountItems(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = store.CountItems(ctx, "u2", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, store.Delete(ctx, "u1", domain.ProviderGoogle), domain.ErrNotFound)
}

func TestStore_ListExpiring(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	soon := newAccount("u1", domain.ProviderGoogle, 5*time.Minute)
	later := newAccount("u2", domain.ProviderGoogle, 2*time.Hour)
	noRefresh := newAccount("u3", domain.ProviderGoogle, time.Minute)
	noRefresh.RefreshToken = ""
	unknown := newAccount("u4", domain.ProviderGoogle, 0)
	unknown.ExpiresAt = nil

	for _, a := range []*domain.ConnectedAccount{soon, later, noRefresh, unknown} {
		require.NoError(t, store.Save(ctx, a))
	}

	expiring, err := store.ListExpiring(ctx, time.Now().Add(15*time.Minute))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "u1", expiring[0].UserID)
}
