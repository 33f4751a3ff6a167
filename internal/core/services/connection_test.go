package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

func newConnectionFixture() (*ConnectionService, *memory.Store, *mockTokenEndpoint, *mockPublisher) {
	store := memory.NewStore()
	endpoint := &mockTokenEndpoint{}
	publisher := &mockPublisher{}
	return NewConnectionService(store, store, endpoint, NewScopeGuard(), publisher), store, endpoint, publisher
}

func seedEmails(t *testing.T, store *memory.Store, provider domain.ProviderType, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := store.UpsertItem(context.Background(), &domain.Email{
			ItemHeader: domain.ItemHeader{UserID: testUser, Provider: provider, ProviderItemID: fmt.Sprintf("m%d", i)},
		})
		require.NoError(t, err)
	}
}

func TestConnectionService_DisconnectCascades(t *testing.T) {
	svc, store, _, publisher := newConnectionFixture()
	ctx := context.Background()
	seedAccount(t, store, domain.ProviderGoogle, mailScopes, hourFromNow(), "refresh-0")
	seedEmails(t, store, domain.ProviderGoogle, 5)
	seedAccount(t, store, domain.ProviderMicrosoft, []string{"Mail.Read"}, hourFromNow(), "refresh-m")
	seedEmails(t, store, domain.ProviderMicrosoft, 2)

	before, err := svc.Status(ctx, testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 5, before.ItemCount)

	require.NoError(t, svc.Disconnect(ctx, testUser, domain.ProviderGoogle))

	status, err := svc.Status(ctx, testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, 0, status.ItemCount)

	n, err := store.CountItems(ctx, testUser, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = store.Get(ctx, testUser, domain.ProviderGoogle)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	other, err := svc.Status(ctx, testUser, domain.ProviderMicrosoft)
	require.NoError(t, err)
	assert.True(t, other.Connected)
	assert.Equal(t, 2, other.ItemCount)

	assert.Equal(t, []string{"u1/google:5"}, publisher.disconnected)
}

func TestConnectionService_DisconnectNotConnected(t *testing.T) {
	svc, _, _, publisher := newConnectionFixture()

	err := svc.Disconnect(context.Background(), testUser, domain.ProviderTwitter)

	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Empty(t, publisher.disconnected)
}

func TestConnectionService_StatusNeverRefreshes(t *testing.T) {
	svc, store, endpoint, _ := newConnectionFixture()
	expired := time.Now().Add(-time.Hour)
	seedAccount(t, store, domain.ProviderGoogle, mailScopes, &expired, "refresh-0")

	status, err := svc.Status(context.Background(), testUser, domain.ProviderGoogle)

	require.NoError(t, err)
	assert.True(t, status.Connected)
	require.NotNil(t, status.ExpiresAt)
	assert.True(t, expired.Equal(*status.ExpiresAt))
	assert.Equal(t, 0, endpoint.callCount())
}

func TestConnectionService_StatusCapabilities(t *testing.T) {
	svc, store, _, _ := newConnectionFixture()
	seedAccount(t, store, domain.ProviderGoogle, []string{"read-profile"}, hourFromNow(), "refresh-0")

	status, err := svc.Status(context.Background(), testUser, domain.ProviderGoogle)

	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.False(t, status.ScopeSufficient)
	assert.False(t, status.Capabilities[domain.CapabilityReadMail])
	assert.False(t, status.Capabilities[domain.CapabilityReadFiles])
}

func TestConnectionService_StatusAllGranted(t *testing.T) {
	svc, store, _, _ := newConnectionFixture()
	seedAccount(t, store, domain.ProviderTwitter, []string{"tweet.read", "users.read", "offline.access"}, nil, "refresh-0")

	status, err := svc.Status(context.Background(), testUser, domain.ProviderTwitter)

	require.NoError(t, err)
	assert.True(t, status.ScopeSufficient)
	assert.True(t, status.Capabilities[domain.CapabilityReadTimeline])
	assert.Nil(t, status.ExpiresAt)
}

func TestConnectionService_StatusNotConnected(t *testing.T) {
	svc, _, _, _ := newConnectionFixture()

	status, err := svc.Status(context.Background(), testUser, domain.ProviderMicrosoft)

	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.False(t, status.ScopeSufficient)
}

func TestConnectionService_ConnectKeepsCreatedAtOnReconnect(t *testing.T) {
	svc, store, _, _ := newConnectionFixture()
	ctx := context.Background()
	original := seedAccount(t, store, domain.ProviderGoogle, []string{"email"}, nil, "refresh-0")

	account, err := svc.Connect(ctx, testUser, domain.ProviderGoogle, &domain.TokenGrant{
		AccessToken: "access-new",
		ExpiresAt:   hourFromNow(),
		Scopes:      mailScopes,
	})

	require.NoError(t, err)
	assert.Equal(t, "access-new", account.AccessToken)
	assert.Equal(t, "refresh-0", account.RefreshToken, "reconnect without a new refresh token keeps the old one")
	assert.True(t, original.CreatedAt.Equal(account.CreatedAt))
	assert.Equal(t, mailScopes, account.GrantedScopes)
}

func TestConnectionService_ConnectValidates(t *testing.T) {
	svc, _, _, _ := newConnectionFixture()

	_, err := svc.Connect(context.Background(), testUser, domain.ProviderGoogle, &domain.TokenGrant{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Connect(context.Background(), testUser, "myspace", &domain.TokenGrant{AccessToken: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConnectionService_BeginConsentRequestsAllCapabilities(t *testing.T) {
	svc, _, endpoint, _ := newConnectionFixture()

	url, err := svc.BeginConsent(domain.ProviderMicrosoft, "state-1", "http://127.0.0.1:8765/callback", "verifier")

	require.NoError(t, err)
	assert.Contains(t, url, "state=state-1")
	assert.Equal(t, []string{"User.Read", "Mail.Read", "offline_access"}, endpoint.lastScopes)
}

func TestConnectionService_CompleteConsent(t *testing.T) {
	svc, store, endpoint, _ := newConnectionFixture()
	endpoint.exchangeGrant = &domain.TokenGrant{
		AccessToken:       "access-1",
		RefreshToken:      "refresh-1",
		ExpiresAt:         hourFromNow(),
		AccountIdentifier: "@someone",
	}

	account, err := svc.CompleteConsent(context.Background(), testUser, domain.ProviderTwitter, "code", "http://127.0.0.1/cb", "v")

	require.NoError(t, err)
	assert.Equal(t, "@someone", account.AccountIdentifier)
	assert.Equal(t, []string{"users.read", "tweet.read", "offline.access"}, account.GrantedScopes)

	stored, err := store.Get(context.Background(), testUser, domain.ProviderTwitter)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestConnectionService_CompleteConsentExchangeFails(t *testing.T) {
	svc, store, endpoint, _ := newConnectionFixture()
	endpoint.exchangeErr = errors.New("invalid_grant")

	_, err := svc.CompleteConsent(context.Background(), testUser, domain.ProviderGoogle, "code", "http://127.0.0.1/cb", "v")

	require.Error(t, err)
	_, err = store.Get(context.Background(), testUser, domain.ProviderGoogle)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
