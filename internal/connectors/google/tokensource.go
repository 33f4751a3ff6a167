package google

import (
	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// NewTokenSource creates an oauth2.TokenSource for the bearer token the
// import pipeline already validated. The token is never refreshed here; an
// auth failure surfaces as KindAuthExpired and the pipeline decides.
func NewTokenSource(bearer domain.Bearer) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: bearer.AccessToken,
		TokenType:   "Bearer",
	})
}
