package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// Ensure ConnectionService implements the interface.
var _ driving.ConnectionService = (*ConnectionService)(nil)

// ConnectionService connects, reports on and disconnects provider accounts.
// Status is read-only and never refreshes tokens.
type ConnectionService struct {
	accounts  driven.AccountStore
	items     driven.ItemStore
	endpoint  driven.TokenEndpoint
	guard     *ScopeGuard
	publisher driven.EventPublisher
	now       func() time.Time
}

// NewConnectionService creates a ConnectionService. endpoint and publisher may be nil.
func NewConnectionService(
	accounts driven.AccountStore,
	items driven.ItemStore,
	endpoint driven.TokenEndpoint,
	guard *ScopeGuard,
	publisher driven.EventPublisher,
) *ConnectionService {
	return &ConnectionService{
		accounts:  accounts,
		items:     items,
		endpoint:  endpoint,
		guard:     guard,
		publisher: publisher,
		now:       time.Now,
	}
}

// Status reports whether the provider is connected, whether its granted
// scopes cover every capability it supports, and how many items it imported.
func (s *ConnectionService) Status(
	ctx context.Context,
	userID string,
	provider domain.ProviderType,
) (*domain.ConnectionStatus, error) {
	status := &domain.ConnectionStatus{UserID: userID, Provider: provider}

	account, err := s.accounts.Get(ctx, userID, provider)
	if errors.Is(err, domain.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, storageError("reading account", err)
	}

	count, err := s.items.CountItems(ctx, userID, provider)
	if err != nil {
		return nil, storageError("counting items", err)
	}

	status.Connected = true
	status.AccountIdentifier = account.AccountIdentifier
	status.ExpiresAt = account.ExpiresAt
	status.ItemCount = count
	status.Capabilities = s.guard.Capabilities(account)
	status.ScopeSufficient = len(status.Capabilities) > 0
	for _, granted := range status.Capabilities {
		if !granted {
			status.ScopeSufficient = false
		}
	}
	return status, nil
}

// Connect stores the tokens from a completed consent. Reconnecting replaces
// the tokens and scopes and keeps the original creation time.
func (s *ConnectionService) Connect(
	ctx context.Context,
	userID string,
	provider domain.ProviderType,
	grant *domain.TokenGrant,
) (*domain.ConnectedAccount, error) {
	if userID == "" || !provider.IsValid() {
		return nil, fmt.Errorf("%w: user %q provider %q", domain.ErrInvalidInput, userID, provider)
	}
	if grant == nil || grant.AccessToken == "" {
		return nil, fmt.Errorf("%w: grant has no access token", domain.ErrInvalidInput)
	}

	now := s.now()
	account := &domain.ConnectedAccount{
		UserID:    userID,
		Provider:  provider,
		CreatedAt: now,
	}
	existing, err := s.accounts.Get(ctx, userID, provider)
	switch {
	case err == nil:
		account.CreatedAt = existing.CreatedAt
		account.RefreshToken = existing.RefreshToken
		account.AccountIdentifier = existing.AccountIdentifier
	case !errors.Is(err, domain.ErrNotFound):
		return nil, storageError("reading account", err)
	}

	applyGrant(account, grant, now)
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, storageError("saving account", err)
	}

	logger.Info("connected %s (%s) scopes=%v", account.Key(), account.AccountIdentifier, account.GrantedScopes)
	return account, nil
}

// Disconnect deletes the account and all items imported under it in one
// transaction, then announces it.
func (s *ConnectionService) Disconnect(ctx context.Context, userID string, provider domain.ProviderType) error {
	count, err := s.items.CountItems(ctx, userID, provider)
	if err != nil {
		return storageError("counting items", err)
	}

	if err := s.accounts.Delete(ctx, userID, provider); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrNotConnected, domain.AccountKey(userID, provider))
		}
		return storageError("deleting account", err)
	}

	logger.Info("disconnected %s, removed %d items", domain.AccountKey(userID, provider), count)
	if s.publisher != nil {
		if err := s.publisher.AccountDisconnected(context.WithoutCancel(ctx), userID, provider, count); err != nil {
			logger.Warn("publishing disconnect event: %v", err)
		}
	}
	return nil
}

// BeginConsent returns the provider consent URL for every capability the
// provider supports.
func (s *ConnectionService) BeginConsent(provider domain.ProviderType, state, redirectURI, verifier string) (string, error) {
	if s.endpoint == nil {
		return "", fmt.Errorf("%w: no token endpoint configured", domain.ErrUnsupportedProvider)
	}
	return s.endpoint.AuthCodeURL(provider, s.guard.ConsentScopes(provider), state, redirectURI, verifier)
}

// CompleteConsent exchanges the authorization code and connects the account.
func (s *ConnectionService) CompleteConsent(
	ctx context.Context,
	userID string,
	provider domain.ProviderType,
	code, redirectURI, verifier string,
) (*domain.ConnectedAccount, error) {
	if s.endpoint == nil {
		return nil, fmt.Errorf("%w: no token endpoint configured", domain.ErrUnsupportedProvider)
	}
	grant, err := s.endpoint.Exchange(ctx, provider, code, redirectURI, verifier)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if grant.Scopes == nil {
		grant.Scopes = s.guard.ConsentScopes(provider)
	}
	return s.Connect(ctx, userID, provider, grant)
}
