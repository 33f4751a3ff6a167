package twitter

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/connectors"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// Ensure OAuthHandler implements the interface.
var _ connectors.OAuthHandler = (*OAuthHandler)(nil)

// OAuthHandler implements the Twitter OAuth quirks. Twitter requires PKCE,
// which the token endpoint adds for every provider.
type OAuthHandler struct {
	client *Client
}

// NewOAuthHandler creates a handler that looks accounts up through client.
func NewOAuthHandler(client *Client) *OAuthHandler {
	return &OAuthHandler{client: client}
}

// AuthCodeOptions implements connectors.OAuthHandler.
func (h *OAuthHandler) AuthCodeOptions() []oauth2.AuthCodeOption {
	return nil
}

// AccountIdentifier returns the account's @username.
func (h *OAuthHandler) AccountIdentifier(ctx context.Context, accessToken string) (string, error) {
	user, err := h.client.Me(ctx, domain.Bearer{AccessToken: accessToken})
	if err != nil {
		return "", err
	}
	return "@" + user.Username, nil
}
