// Package outlook imports Outlook mail through Microsoft Graph as
// domain.Email items. Label selectors map onto Outlook categories.
//
// # OAuth2 Scopes
//
//   - User.Read
//   - Mail.Read
//   - offline_access (required for refresh tokens)
package outlook
