package domain

import "time"

// StorageDriver selects the account and item store.
type StorageDriver string

const (
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
	StorageMemory   StorageDriver = "memory"
)

// IsValid returns true if the driver is recognised.
func (d StorageDriver) IsValid() bool {
	switch d {
	case StorageSQLite, StoragePostgres, StorageMemory:
		return true
	}
	return false
}

// AppSettings is the typed view of the configuration file.
type AppSettings struct {
	// UserID is the local user imports run for when none is given.
	UserID string

	Storage   StorageSettings
	Import    ImportSettings
	Tokens    TokenSettings
	Scheduler SchedulerConfig
	NATS      NATSSettings
	HTTP      HTTPSettings

	Providers map[ProviderType]ProviderSettings
}

// StorageSettings configures persistence.
type StorageSettings struct {
	Driver StorageDriver
	// Path is the SQLite data directory. Empty uses ~/.sercha-connect/data.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// ImportSettings bounds import runs.
type ImportSettings struct {
	// MaxItems is the default item budget per run.
	MaxItems int
	// Timeout is the default wall-clock budget per run.
	Timeout time.Duration
	// PageSize is the default listing page size.
	PageSize int
	// MaxAttempts bounds retries of a rate-limited or transient call.
	MaxAttempts int
	// BaseBackoff is the first retry delay; each retry doubles it.
	BaseBackoff time.Duration
	// MaxBackoff caps any single retry delay, including provider hints.
	MaxBackoff time.Duration
}

// TokenSettings configures token refresh.
type TokenSettings struct {
	// RefreshMargin refreshes tokens expiring within this window.
	RefreshMargin time.Duration
}

// NATSSettings configures event publishing. An empty URL disables it.
type NATSSettings struct {
	URL    string
	Stream string
}

// HTTPSettings configures the serve command.
type HTTPSettings struct {
	Addr string
}

// ProviderSettings holds the OAuth client registration for one provider.
type ProviderSettings struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	// BaseURL overrides the content API endpoint. Empty uses the provider default.
	BaseURL string
	// Scopes overrides the scopes requested at consent.
	Scopes []string
}

// IsConfigured reports whether the provider has a client registration.
func (p ProviderSettings) IsConfigured() bool {
	return p.ClientID != ""
}

// DefaultAppSettings returns sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		UserID: "default",
		Storage: StorageSettings{
			Driver: StorageSQLite,
		},
		Import: ImportSettings{
			MaxItems:    1000,
			Timeout:     10 * time.Minute,
			PageSize:    100,
			MaxAttempts: 3,
			BaseBackoff: 500 * time.Millisecond,
			MaxBackoff:  30 * time.Second,
		},
		Tokens: TokenSettings{
			RefreshMargin: 60 * time.Second,
		},
		Scheduler: DefaultSchedulerConfig(),
		NATS: NATSSettings{
			Stream: "CONNECT_EVENTS",
		},
		HTTP: HTTPSettings{
			Addr: "127.0.0.1:8080",
		},
		Providers: map[ProviderType]ProviderSettings{
			ProviderGoogle: {
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			ProviderTwitter: {
				AuthURL:  "https://twitter.com/i/oauth2/authorize",
				TokenURL: "https://api.twitter.com/2/oauth2/token",
				BaseURL:  "https://api.twitter.com",
			},
			ProviderMicrosoft: {
				AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
				TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
			},
		},
	}
}
