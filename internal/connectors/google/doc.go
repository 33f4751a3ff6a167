// Package google provides shared infrastructure for the Gmail and Drive
// clients:
//   - a static TokenSource built from the pipeline's bearer token
//   - service factories for Google API clients
//   - classification of Google API errors (401, 403, 404, 429, 5xx)
//   - rate limiting to respect Google API quotas
//   - the Google OAuth quirks (offline access, userinfo lookup)
//
// # Usage
//
//	svc, err := google.NewGmailService(ctx, bearer, opts)
//	res, err := svc.Users.Messages.List("me").Do()
//	if err != nil {
//		return google.Classify("list messages", err)
//	}
//
// # OAuth2 Scopes
//
// Google clients use these scopes:
//   - https://www.googleapis.com/auth/userinfo.email (non-sensitive)
//   - https://www.googleapis.com/auth/gmail.readonly (restricted)
//   - https://www.googleapis.com/auth/drive.readonly (restricted)
//
// For user-created internal apps, restricted scopes don't require verification.
package google
