package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

func TestScopeGuard_Check(t *testing.T) {
	guard := NewScopeGuard()

	tests := []struct {
		name       string
		account    *domain.ConnectedAccount
		capability domain.Capability
		want       domain.ScopeVerdict
	}{
		{
			name:       "profile only cannot read mail",
			account:    &domain.ConnectedAccount{Provider: domain.ProviderGoogle, GrantedScopes: []string{"read-profile"}},
			capability: domain.CapabilityReadMail,
			want:       domain.ScopeInsufficient,
		},
		{
			name:       "no account is not connected",
			account:    nil,
			capability: domain.CapabilityReadMail,
			want:       domain.ScopeNotConnected,
		},
		{
			name:       "capability literal",
			account:    &domain.ConnectedAccount{Provider: domain.ProviderGoogle, GrantedScopes: []string{"read-mail"}},
			capability: domain.CapabilityReadMail,
			want:       domain.ScopeSufficient,
		},
		{
			name: "gmail readonly",
			account: &domain.ConnectedAccount{Provider: domain.ProviderGoogle,
				GrantedScopes: []string{"https://www.googleapis.com/auth/gmail.readonly"}},
			capability: domain.CapabilityReadMail,
			want:       domain.ScopeSufficient,
		},
		{
			name:       "historical full mail scope",
			account:    &domain.ConnectedAccount{Provider: domain.ProviderGoogle, GrantedScopes: []string{"https://mail.google.com/"}},
			capability: domain.CapabilityReadMail,
			want:       domain.ScopeSufficient,
		},
		{
			name: "drive scope does not read mail",
			account: &domain.ConnectedAccount{Provider: domain.ProviderGoogle,
				GrantedScopes: []string{"https://www.googleapis.com/auth/drive.readonly"}},
			capability: domain.CapabilityReadMail,
			want:       domain.ScopeInsufficient,
		},
		{
			name:       "twitter needs both scopes",
			account:    &domain.ConnectedAccount{Provider: domain.ProviderTwitter, GrantedScopes: []string{"tweet.read"}},
			capability: domain.CapabilityReadTimeline,
			want:       domain.ScopeInsufficient,
		},
		{
			name: "twitter timeline",
			account: &domain.ConnectedAccount{Provider: domain.ProviderTwitter,
				GrantedScopes: []string{"users.read", "tweet.read", "offline.access"}},
			capability: domain.CapabilityReadTimeline,
			want:       domain.ScopeSufficient,
		},
		{
			name: "graph prefixed scope",
			account: &domain.ConnectedAccount{Provider: domain.ProviderMicrosoft,
				GrantedScopes: []string{"https://graph.microsoft.com/Mail.Read"}},
			capability: domain.CapabilityReadMail,
			want:       domain.ScopeSufficient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.Check(tt.account, tt.capability))
		})
	}
}

func TestScopeGuard_Require_DistinguishesRemediation(t *testing.T) {
	guard := NewScopeGuard()
	account := &domain.ConnectedAccount{Provider: domain.ProviderGoogle, GrantedScopes: []string{"read-profile"}}

	insufficient := guard.Require(account, domain.CapabilityReadMail)
	notConnected := guard.Require(nil, domain.CapabilityReadMail)

	assert.True(t, errors.Is(insufficient, domain.ErrInsufficientScope))
	assert.False(t, errors.Is(insufficient, domain.ErrNotConnected))
	assert.True(t, errors.Is(notConnected, domain.ErrNotConnected))
	assert.False(t, errors.Is(notConnected, domain.ErrInsufficientScope))
	assert.NoError(t, guard.Require(&domain.ConnectedAccount{
		Provider: domain.ProviderGoogle, GrantedScopes: []string{"read-mail"},
	}, domain.CapabilityReadMail))
}

func TestScopeGuard_Capabilities(t *testing.T) {
	guard := NewScopeGuard()
	account := &domain.ConnectedAccount{
		Provider:      domain.ProviderGoogle,
		GrantedScopes: []string{"https://www.googleapis.com/auth/gmail.readonly"},
	}

	assert.Equal(t, map[domain.Capability]bool{
		domain.CapabilityReadMail:  true,
		domain.CapabilityReadFiles: false,
	}, guard.Capabilities(account))
}

func TestScopeGuard_ConsentScopes(t *testing.T) {
	guard := NewScopeGuard()

	assert.Equal(t, []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/drive.readonly",
	}, guard.ConsentScopes(domain.ProviderGoogle))
	assert.Equal(t, []string{"users.read", "tweet.read", "offline.access"}, guard.ConsentScopes(domain.ProviderTwitter))
	assert.Equal(t, []string{"User.Read", "Mail.Read", "offline_access"}, guard.ConsentScopes(domain.ProviderMicrosoft))
}
