package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// setupTestStore connects to PG_TEST_DSN and clears all tables.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.pool.Exec(ctx, "TRUNCATE connected_accounts, emails, tweets, drive_files")
	require.NoError(t, err)
	return store
}

func TestMigrationNames_Sorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_initial.sql", names[0])
}

func TestAccountStore_SaveGetDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := store.AccountStore()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	require.NoError(t, accounts.Save(ctx, &domain.ConnectedAccount{
		UserID:        "u1",
		Provider:      domain.ProviderGoogle,
		AccessToken:   "at",
		RefreshToken:  "rt",
		ExpiresAt:     &expires,
		GrantedScopes: []string{"a", "b"},
	}))

	got, err := accounts.Get(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "at", got.AccessToken)
	assert.Equal(t, []string{"a", "b"}, got.GrantedScopes)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expires.Equal(*got.ExpiresAt))

	_, err = store.ItemStore().UpsertItem(ctx, &domain.Email{
		ItemHeader: domain.ItemHeader{UserID: "u1", Provider: domain.ProviderGoogle, ProviderItemID: "m1",
			FetchedAt: time.Now(), UpdatedAt: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, accounts.Delete(ctx, "u1", domain.ProviderGoogle))
	_, err = accounts.Get(ctx, "u1", domain.ProviderGoogle)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, accounts.Delete(ctx, "u1", domain.ProviderGoogle), domain.ErrNotFound)

	n, err := store.ItemStore().CountItems(ctx, "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAccountStore_Update(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := store.AccountStore()

	_, err := accounts.Update(ctx, "nobody", domain.ProviderGoogle, func(*domain.ConnectedAccount) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, accounts.Save(ctx, &domain.ConnectedAccount{
		UserID: "u1", Provider: domain.ProviderTwitter, AccessToken: "old",
	}))
	updated, err := accounts.Update(ctx, "u1", domain.ProviderTwitter, func(a *domain.ConnectedAccount) error {
		a.AccessToken = "new"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.AccessToken)

	got, err := accounts.Get(ctx, "u1", domain.ProviderTwitter)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
}

func TestItemStore_UpsertReportsCreated(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	items := store.ItemStore()

	tweet := &domain.Tweet{
		ItemHeader: domain.ItemHeader{UserID: "u1", Provider: domain.ProviderTwitter, ProviderItemID: "t1",
			FetchedAt: time.Now(), UpdatedAt: time.Now()},
		Text: "first",
	}
	first, err := items.UpsertItem(ctx, tweet)
	require.NoError(t, err)
	assert.True(t, first.Created)

	tweet.Text = "second"
	second, err := items.UpsertItem(ctx, tweet)
	require.NoError(t, err)
	assert.False(t, second.Created)

	got, err := items.GetItem(ctx, domain.ItemKindTweet, "u1", domain.ProviderTwitter, "t1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.(*domain.Tweet).Text)

	n, err := items.CountItems(ctx, "u1", domain.ProviderTwitter)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = items.GetItem(ctx, domain.ItemKindTweet, "u1", domain.ProviderTwitter, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
