// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - AccountStore: ConnectedAccount persistence, the only place tokens are read or written
//   - ItemStore: idempotent item persistence
//   - ProviderClient: lists and fetches provider content
//   - TokenEndpoint: OAuth2 refresh and code exchange
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EventPublisher: import and disconnect notifications (NATS)
//   - Metrics: run, item and refresh counters (Prometheus)
//   - SchedulerStore: background task state
//   - SelectorResolver: resolves human-readable selectors to provider IDs
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
