// Package twitter imports a user's timeline from the Twitter API v2 as
// domain.Tweet items.
//
// Listing uses GET /2/users/{id}/tweets with pagination_token cursors;
// detail uses GET /2/tweets/{id}. An empty profile selector resolves to the
// connected account through GET /2/users/me.
//
// # OAuth2 Scopes
//
//   - users.read
//   - tweet.read
//   - offline.access (required for refresh tokens)
package twitter
