package driving

import "github.com/custodia-labs/sercha-connect/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the current settings with defaults applied.
	Get() (*domain.AppSettings, error)

	// Set stores a single setting by dot-notation key after validating it.
	Set(key, value string) error

	// Validate checks the stored settings.
	Validate() error
}
