package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// Ensure TokenRefresher implements the interface.
var _ driving.TokenService = (*TokenRefresher)(nil)

// Refresh outcomes reported to metrics.
const (
	refreshOutcomeRefreshed = "refreshed"
	refreshOutcomeSkipped   = "skipped"
	refreshOutcomeReauth    = "reauth_required"
	refreshOutcomeFailed    = "failed"
)

// TokenRefresher keeps access tokens usable.
//
// Refreshes are serialised per account twice over: a singleflight group
// coalesces concurrent callers in this process, and the refresh itself runs
// inside AccountStore.Update so a second process re-reads the fresh row and
// skips the network call. A shared refresh is not tied to any one caller's
// context; each caller stops waiting when its own context ends.
type TokenRefresher struct {
	accounts driven.AccountStore
	endpoint driven.TokenEndpoint
	metrics  driven.Metrics

	margin time.Duration
	window time.Duration
	now    func() time.Time

	group singleflight.Group
}

// TokenRefresherOption configures a TokenRefresher.
type TokenRefresherOption func(*TokenRefresher)

// WithRefreshMargin sets how close to expiry a token is refreshed.
func WithRefreshMargin(d time.Duration) TokenRefresherOption {
	return func(r *TokenRefresher) { r.margin = d }
}

// WithRefreshWindow sets how far ahead RefreshExpiring looks.
func WithRefreshWindow(d time.Duration) TokenRefresherOption {
	return func(r *TokenRefresher) { r.window = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenRefresherOption {
	return func(r *TokenRefresher) { r.now = now }
}

// WithRefreshMetrics records refresh outcomes.
func WithRefreshMetrics(m driven.Metrics) TokenRefresherOption {
	return func(r *TokenRefresher) { r.metrics = m }
}

// NewTokenRefresher creates a TokenRefresher.
func NewTokenRefresher(accounts driven.AccountStore, endpoint driven.TokenEndpoint, opts ...TokenRefresherOption) *TokenRefresher {
	r := &TokenRefresher{
		accounts: accounts,
		endpoint: endpoint,
		margin:   60 * time.Second,
		window:   15 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureValidToken returns a usable access token for the account.
//
// Errors:
//   - domain.ErrNotConnected: no account for the provider
//   - domain.ErrReauthRequired: no refresh token, or the provider rejected it
//   - domain.ErrTokenRefreshFailed: the refresh call failed and may succeed later
//   - domain.ErrStorage: the account could not be read or written
func (r *TokenRefresher) EnsureValidToken(
	ctx context.Context,
	userID string,
	provider domain.ProviderType,
) (string, *domain.ConnectedAccount, error) {
	account, err := r.load(ctx, userID, provider)
	if err != nil {
		return "", nil, err
	}

	if !account.NeedsRefresh(r.now(), r.margin) {
		return account.AccessToken, account, nil
	}

	if !account.HasRefreshToken() {
		r.observe(provider, refreshOutcomeReauth, 0)
		return "", account, fmt.Errorf("%w: %s has no refresh token", domain.ErrReauthRequired, account.Key())
	}

	refreshed, err := r.refresh(ctx, userID, provider, r.margin, "")
	if err != nil {
		return "", account, err
	}
	return refreshed.AccessToken, refreshed, nil
}

// ForceRefresh refreshes the account if its access token is still the one
// the provider just rejected. If another caller already replaced it, the
// current account is returned without a network call.
func (r *TokenRefresher) ForceRefresh(
	ctx context.Context,
	userID string,
	provider domain.ProviderType,
	rejectedToken string,
) (*domain.ConnectedAccount, error) {
	return r.refresh(ctx, userID, provider, r.margin, rejectedToken)
}

// MarkStale invalidates an access token the provider rejected, regardless of
// its recorded expiry, so the next EnsureValidToken refreshes it.
func (r *TokenRefresher) MarkStale(ctx context.Context, userID string, provider domain.ProviderType, rejectedToken string) error {
	_, err := r.accounts.Update(ctx, userID, provider, func(a *domain.ConnectedAccount) error {
		if a.AccessToken != rejectedToken {
			return nil
		}
		past := r.now().Add(-time.Second)
		a.ExpiresAt = &past
		a.UpdatedAt = r.now()
		return nil
	})
	if err != nil {
		return storageError("marking token stale", err)
	}
	logger.Debug("marked token stale for %s", domain.AccountKey(userID, provider))
	return nil
}

// RefreshExpiring refreshes every account whose token expires within the
// refresh window. Failures for one account do not stop the others.
func (r *TokenRefresher) RefreshExpiring(ctx context.Context) (int, error) {
	accounts, err := r.accounts.ListExpiring(ctx, r.now().Add(r.window))
	if err != nil {
		return 0, storageError("listing expiring accounts", err)
	}

	var errs error
	refreshed := 0
	for i := range accounts {
		a := &accounts[i]
		if _, err := r.refresh(ctx, a.UserID, a.Provider, r.window, ""); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", a.Key(), err))
			continue
		}
		refreshed++
	}
	return refreshed, errs
}

func (r *TokenRefresher) load(ctx context.Context, userID string, provider domain.ProviderType) (*domain.ConnectedAccount, error) {
	account, err := r.accounts.Get(ctx, userID, provider)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotConnected, domain.AccountKey(userID, provider))
	}
	if err != nil {
		return nil, storageError("reading account", err)
	}
	return account, nil
}

// refresh coalesces concurrent refreshes of one account and performs the
// network call inside the store's atomic update. Callers only share a flight
// when they ask for the same margin and the same rejected token.
func (r *TokenRefresher) refresh(
	ctx context.Context,
	userID string,
	provider domain.ProviderType,
	margin time.Duration,
	rejectedToken string,
) (*domain.ConnectedAccount, error) {
	account := domain.AccountKey(userID, provider)
	key := fmt.Sprintf("%s|%s|%s", account, margin, rejectedToken)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.refreshAtomically(context.WithoutCancel(ctx), userID, provider, margin, rejectedToken)
	})

	select {
	case res := <-ch:
		if res.Shared {
			logger.Debug("shared token refresh for %s", account)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ConnectedAccount), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *TokenRefresher) refreshAtomically(
	ctx context.Context,
	userID string,
	provider domain.ProviderType,
	margin time.Duration,
	rejectedToken string,
) (*domain.ConnectedAccount, error) {
	key := domain.AccountKey(userID, provider)
	start := r.now()
	called := false

	updated, err := r.accounts.Update(ctx, userID, provider, func(a *domain.ConnectedAccount) error {
		if rejectedToken != "" {
			if a.AccessToken != rejectedToken {
				return nil
			}
		} else if !a.NeedsRefresh(r.now(), margin) {
			return nil
		}

		if !a.HasRefreshToken() {
			return fmt.Errorf("%w: %s has no refresh token", domain.ErrReauthRequired, key)
		}

		logger.Debug("refreshing access token for %s", key)
		called = true
		grant, err := r.endpoint.Refresh(ctx, provider, a.RefreshToken)
		if err != nil {
			return err
		}
		if grant.ExpiresAt != nil && a.ExpiresAt != nil && grant.ExpiresAt.Before(*a.ExpiresAt) {
			return domain.ErrStaleToken
		}
		applyGrant(a, grant, r.now())
		return nil
	})

	switch {
	case err == nil:
		outcome := refreshOutcomeSkipped
		if called {
			outcome = refreshOutcomeRefreshed
		}
		r.observe(provider, outcome, r.now().Sub(start))
		return updated, nil
	case errors.Is(err, domain.ErrStaleToken):
		r.observe(provider, refreshOutcomeSkipped, r.now().Sub(start))
		return r.load(ctx, userID, provider)
	case errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", domain.ErrNotConnected, key)
	case errors.Is(err, domain.ErrReauthRequired):
		r.observe(provider, refreshOutcomeReauth, r.now().Sub(start))
		logger.Warn("token refresh for %s needs reconsent", key)
		return nil, err
	case errors.Is(err, domain.ErrTokenRefreshFailed):
		r.observe(provider, refreshOutcomeFailed, r.now().Sub(start))
		return nil, err
	case called:
		r.observe(provider, refreshOutcomeFailed, r.now().Sub(start))
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenRefreshFailed, err)
	default:
		return nil, storageError("updating account", err)
	}
}

func (r *TokenRefresher) observe(provider domain.ProviderType, outcome string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.ObserveRefresh(provider, outcome, d)
	}
}

// applyGrant copies a token response onto the account. Fields the provider
// omitted keep their previous values.
func applyGrant(a *domain.ConnectedAccount, g *domain.TokenGrant, now time.Time) {
	a.AccessToken = g.AccessToken
	a.ExpiresAt = g.ExpiresAt
	if g.RefreshToken != "" {
		a.RefreshToken = g.RefreshToken
	}
	if g.TokenType != "" {
		a.TokenType = g.TokenType
	}
	if g.Scopes != nil {
		a.GrantedScopes = g.Scopes
	}
	if g.AccountIdentifier != "" {
		a.AccountIdentifier = g.AccountIdentifier
	}
	a.UpdatedAt = now
}

func storageError(op string, err error) error {
	if errors.Is(err, domain.ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}
