package connectors

import (
	"context"

	"golang.org/x/oauth2"
)

// OAuthHandler captures one provider's OAuth quirks
// (e.g., Google's access_type=offline).
type OAuthHandler interface {
	// AuthCodeOptions returns extra parameters for the consent URL.
	AuthCodeOptions() []oauth2.AuthCodeOption

	// AccountIdentifier fetches the account identifier (email/handle) of the
	// token's owner. Used to label which account was connected.
	AccountIdentifier(ctx context.Context, accessToken string) (string, error)
}
