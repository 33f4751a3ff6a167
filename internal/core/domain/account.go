package domain

import (
	"fmt"
	"time"
)

// ConnectedAccount stores the tokens and granted scopes linking one user to
// one provider. There is at most one ConnectedAccount per (UserID, Provider).
//
// Tokens are excluded from JSON and from String so they cannot leak into
// logs or API responses.
type ConnectedAccount struct {
	// UserID identifies the local user.
	UserID string `json:"user_id"`
	// Provider is the external provider.
	Provider ProviderType `json:"provider"`

	// AccountIdentifier is the user's email or handle at the provider.
	// Examples: "user@gmail.com", "1234567890", "user@contoso.com"
	AccountIdentifier string `json:"account_identifier,omitempty"`

	// AccessToken is the bearer token for API access.
	AccessToken string `json:"-"`
	// RefreshToken is used to obtain new access tokens. May be empty.
	RefreshToken string `json:"-"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`
	// ExpiresAt is when the access token expires. Nil means unknown.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// GrantedScopes is the set of scopes the user consented to.
	GrantedScopes []string `json:"granted_scopes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRefreshToken returns true if a refresh token is available.
func (a *ConnectedAccount) HasRefreshToken() bool {
	return a.RefreshToken != ""
}

// IsExpired returns true if the access token is known to have expired.
// An unknown expiry is never considered expired.
func (a *ConnectedAccount) IsExpired(now time.Time) bool {
	if a.ExpiresAt == nil {
		return false
	}
	return !now.Before(*a.ExpiresAt)
}

// NeedsRefresh returns true if the access token is missing or expires
// within margin of now.
func (a *ConnectedAccount) NeedsRefresh(now time.Time, margin time.Duration) bool {
	if a.AccessToken == "" {
		return true
	}
	if a.ExpiresAt == nil {
		return false
	}
	return !now.Add(margin).Before(*a.ExpiresAt)
}

// HasScope reports whether scope was granted.
func (a *ConnectedAccount) HasScope(scope string) bool {
	for _, s := range a.GrantedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Key returns the account's identity as "user/provider".
func (a *ConnectedAccount) Key() string {
	return AccountKey(a.UserID, a.Provider)
}

// String implements fmt.Stringer without revealing tokens.
func (a *ConnectedAccount) String() string {
	expiry := "unknown"
	if a.ExpiresAt != nil {
		expiry = a.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("ConnectedAccount{user=%s provider=%s account=%s expires=%s scopes=%v}",
		a.UserID, a.Provider, a.AccountIdentifier, expiry, a.GrantedScopes)
}

// AccountKey builds the identity key for a user and provider.
func AccountKey(userID string, provider ProviderType) string {
	return userID + "/" + string(provider)
}

// TokenGrant is what a provider's token endpoint returns after a code
// exchange or a refresh.
type TokenGrant struct {
	AccessToken string
	// RefreshToken is empty when the provider did not rotate it.
	RefreshToken string
	TokenType    string
	// ExpiresAt is nil when the provider did not report an expiry.
	ExpiresAt *time.Time
	// Scopes is nil when the provider did not report granted scopes.
	Scopes []string
	// AccountIdentifier is filled in by the caller after consent when known.
	AccountIdentifier string
}

// Bearer is the credential a provider client needs for one request.
type Bearer struct {
	// AccessToken is a currently valid access token.
	AccessToken string
	// Subject is the account identifier at the provider.
	Subject string
}
