package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// scopeSets lists, per provider and capability, the alternative scope sets
// that grant it. Any one set fully granted is sufficient. Several literals
// are historical variants the providers still hand out.
var scopeSets = map[domain.ProviderType]map[domain.Capability][][]string{
	domain.ProviderGoogle: {
		domain.CapabilityReadMail: {
			{"https://www.googleapis.com/auth/gmail.readonly"},
			{"https://www.googleapis.com/auth/gmail.modify"},
			{"https://mail.google.com/"},
		},
		domain.CapabilityReadFiles: {
			{"https://www.googleapis.com/auth/drive.readonly"},
			{"https://www.googleapis.com/auth/drive"},
			{"https://www.googleapis.com/auth/drive.metadata.readonly"},
		},
		domain.CapabilityReadProfile: {
			{"https://www.googleapis.com/auth/userinfo.email"},
			{"email"},
		},
	},
	domain.ProviderTwitter: {
		domain.CapabilityReadTimeline: {
			{"tweet.read", "users.read"},
		},
		domain.CapabilityReadProfile: {
			{"users.read"},
		},
	},
	domain.ProviderMicrosoft: {
		domain.CapabilityReadMail: {
			{"Mail.Read"},
			{"Mail.ReadWrite"},
		},
		domain.CapabilityReadProfile: {
			{"User.Read"},
		},
	},
}

// offlineScopes are requested at consent so the provider issues a refresh token.
var offlineScopes = map[domain.ProviderType][]string{
	domain.ProviderTwitter:   {"offline.access"},
	domain.ProviderMicrosoft: {"offline_access"},
}

// graphScopePrefix is stripped from Microsoft scopes before matching.
const graphScopePrefix = "https://graph.microsoft.com/"

// ScopeGuard decides whether a connected account's granted scopes cover a
// capability. It is stateless and never performs I/O.
type ScopeGuard struct {
	sets map[domain.ProviderType]map[domain.Capability][][]string
}

// NewScopeGuard creates a ScopeGuard using the built-in scope table.
func NewScopeGuard() *ScopeGuard {
	return &ScopeGuard{sets: scopeSets}
}

// Check classifies the account against a capability. A nil account is
// ScopeNotConnected, which callers must surface differently from
// ScopeInsufficient.
func (g *ScopeGuard) Check(account *domain.ConnectedAccount, capability domain.Capability) domain.ScopeVerdict {
	if account == nil {
		return domain.ScopeNotConnected
	}

	granted := make(map[string]bool, len(account.GrantedScopes))
	for _, s := range account.GrantedScopes {
		granted[normaliseScope(account.Provider, s)] = true
	}

	// A provider may grant the capability name itself.
	if granted[string(capability)] {
		return domain.ScopeSufficient
	}

	for _, set := range g.sets[account.Provider][capability] {
		if containsAll(granted, set) {
			return domain.ScopeSufficient
		}
	}
	return domain.ScopeInsufficient
}

// Require is Check expressed as an error: nil, domain.ErrNotConnected or
// domain.ErrInsufficientScope.
func (g *ScopeGuard) Require(account *domain.ConnectedAccount, capability domain.Capability) error {
	switch g.Check(account, capability) {
	case domain.ScopeSufficient:
		return nil
	case domain.ScopeInsufficient:
		return fmt.Errorf("%w: %s needs %s", domain.ErrInsufficientScope, account.Provider, capability)
	default:
		return domain.ErrNotConnected
	}
}

// Capabilities reports, for every capability the provider can serve,
// whether the account grants it.
func (g *ScopeGuard) Capabilities(account *domain.ConnectedAccount) map[domain.Capability]bool {
	result := make(map[domain.Capability]bool)
	for _, kind := range domain.ProviderKinds[account.Provider] {
		c := domain.CapabilityFor(kind)
		result[c] = g.Check(account, c) == domain.ScopeSufficient
	}
	return result
}

// ConsentScopes returns the scopes to request when connecting a provider:
// the preferred set for each capability it supports, the profile scope,
// and whatever the provider needs to issue a refresh token.
func (g *ScopeGuard) ConsentScopes(provider domain.ProviderType) []string {
	seen := make(map[string]bool)
	var scopes []string
	add := func(ss ...string) {
		for _, s := range ss {
			if !seen[s] {
				seen[s] = true
				scopes = append(scopes, s)
			}
		}
	}

	caps := []domain.Capability{domain.CapabilityReadProfile}
	for _, kind := range domain.ProviderKinds[provider] {
		caps = append(caps, domain.CapabilityFor(kind))
	}
	for _, c := range caps {
		if sets := g.sets[provider][c]; len(sets) > 0 {
			add(sets[0]...)
		}
	}
	add(offlineScopes[provider]...)
	return scopes
}

func normaliseScope(provider domain.ProviderType, scope string) string {
	if provider == domain.ProviderMicrosoft {
		return strings.TrimPrefix(scope, graphScopePrefix)
	}
	return scope
}

func containsAll(granted map[string]bool, set []string) bool {
	for _, s := range set {
		if !granted[s] {
			return false
		}
	}
	return true
}
