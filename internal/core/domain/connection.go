package domain

import "time"

// ScopeVerdict classifies whether an account covers a capability.
type ScopeVerdict int

const (
	// ScopeNotConnected means there is no account for the provider.
	ScopeNotConnected ScopeVerdict = iota
	// ScopeInsufficient means the account exists but lacks the capability.
	ScopeInsufficient
	// ScopeSufficient means the capability is granted.
	ScopeSufficient
)

// String returns the verdict name.
func (v ScopeVerdict) String() string {
	switch v {
	case ScopeSufficient:
		return "sufficient"
	case ScopeInsufficient:
		return "insufficient_needs_reconsent"
	default:
		return "not_connected"
	}
}

// ConnectionStatus answers "is this provider connected, with what scope,
// and how much has been imported".
type ConnectionStatus struct {
	UserID   string       `json:"user_id"`
	Provider ProviderType `json:"provider"`

	Connected bool `json:"connected"`
	// ScopeSufficient is true when every capability the provider supports is granted.
	ScopeSufficient bool `json:"scope_sufficient"`
	// Capabilities maps each provider capability to whether it is granted.
	Capabilities map[Capability]bool `json:"capabilities,omitempty"`

	// ItemCount is the number of items imported under this account, all kinds.
	ItemCount int `json:"item_count"`

	AccountIdentifier string     `json:"account_identifier,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}
