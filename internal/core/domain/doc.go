// Package domain defines the core business entities for Sercha Connect.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ConnectedAccount: OAuth tokens and granted scopes for one user and provider
//   - ImportSelector: what to import from a provider (labels, profile, folder)
//   - Email, Tweet, DriveFile: normalised provider content
//   - ImportReport: the outcome of one import run
//   - ProviderError, ImportError: the error taxonomy shared by adapters and services
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
