// Package connectors holds the provider clients that import content for a
// connected account. Each sub-package talks to one provider API and returns
// errors already classified as *domain.ProviderError.
//
// Clients are registered with the ProviderRegistry at startup.
package connectors
