// Package services implements the core application services.
//
// Services implement the driving ports and depend only on driven ports:
//
//   - TokenRefresher: keeps access tokens usable, one refresh per account at a time
//   - ScopeGuard: classifies granted scopes against required capabilities
//   - ImportPipeline: paginated list, fetch, normalise and upsert of provider content
//   - Upserter: idempotent item writes
//   - ConnectionService: connect, status and disconnect
//   - Scheduler: proactive background token refresh
//   - SettingsService: typed access to configuration
package services
