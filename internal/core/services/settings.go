package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyUserID            = "user.id"
	keyStorageDriver     = "storage.driver"
	keyStoragePath       = "storage.path"
	keyStorageDSN        = "storage.dsn"
	keyImportMaxItems    = "import.max_items"
	keyImportTimeout     = "import.timeout"
	keyImportPageSize    = "import.page_size"
	keyImportMaxAttempts = "import.max_attempts"
	keyImportBaseBackoff = "import.base_backoff"
	keyImportMaxBackoff  = "import.max_backoff"
	keyTokensMargin      = "tokens.refresh_margin"
	keySchedulerEnabled  = "scheduler.enabled"
	keySchedulerInterval = "scheduler.refresh_interval"
	keySchedulerWindow   = "scheduler.refresh_window"
	keyNATSURL           = "nats.url"
	keyNATSStream        = "nats.stream"
	keyHTTPAddr          = "http.addr"
	providerKeyPrefix    = "providers."
	providerClientID     = "client_id"
	providerClientSecret = "client_secret"
	providerAuthURL      = "auth_url"
	providerTokenURL     = "token_url"
	providerBaseURL      = "base_url"
	providerScopes       = "scopes"
)

type settingType int

const (
	settingString settingType = iota
	settingInt
	settingDuration
	settingBool
	settingList
)

// settingTypes lists every fixed key and how its value is parsed.
var settingTypes = map[string]settingType{
	keyUserID:            settingString,
	keyStorageDriver:     settingString,
	keyStoragePath:       settingString,
	keyStorageDSN:        settingString,
	keyImportMaxItems:    settingInt,
	keyImportTimeout:     settingDuration,
	keyImportPageSize:    settingInt,
	keyImportMaxAttempts: settingInt,
	keyImportBaseBackoff: settingDuration,
	keyImportMaxBackoff:  settingDuration,
	keyTokensMargin:      settingDuration,
	keySchedulerEnabled:  settingBool,
	keySchedulerInterval: settingDuration,
	keySchedulerWindow:   settingDuration,
	keyNATSURL:           settingString,
	keyNATSStream:        settingString,
	keyHTTPAddr:          settingString,
}

var providerSettingTypes = map[string]settingType{
	providerClientID:     settingString,
	providerClientSecret: settingString,
	providerAuthURL:      settingString,
	providerTokenURL:     settingString,
	providerBaseURL:      settingString,
	providerScopes:       settingList,
}

// SettingsService gives typed access to configuration.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get returns the current settings with defaults applied.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		UserID: s.getString(keyUserID, d.UserID),
		Storage: domain.StorageSettings{
			Driver: domain.StorageDriver(s.getString(keyStorageDriver, string(d.Storage.Driver))),
			Path:   s.configStore.GetString(keyStoragePath),
			DSN:    s.configStore.GetString(keyStorageDSN),
		},
		Import: domain.ImportSettings{
			MaxItems:    s.getInt(keyImportMaxItems, d.Import.MaxItems),
			Timeout:     s.getDuration(keyImportTimeout, d.Import.Timeout),
			PageSize:    s.getInt(keyImportPageSize, d.Import.PageSize),
			MaxAttempts: s.getInt(keyImportMaxAttempts, d.Import.MaxAttempts),
			BaseBackoff: s.getDuration(keyImportBaseBackoff, d.Import.BaseBackoff),
			MaxBackoff:  s.getDuration(keyImportMaxBackoff, d.Import.MaxBackoff),
		},
		Tokens: domain.TokenSettings{
			RefreshMargin: s.getDuration(keyTokensMargin, d.Tokens.RefreshMargin),
		},
		Scheduler: domain.SchedulerConfig{
			Enabled:         s.getBool(keySchedulerEnabled, d.Scheduler.Enabled),
			RefreshInterval: s.getDuration(keySchedulerInterval, d.Scheduler.RefreshInterval),
			RefreshWindow:   s.getDuration(keySchedulerWindow, d.Scheduler.RefreshWindow),
			TickInterval:    d.Scheduler.TickInterval,
		},
		NATS: domain.NATSSettings{
			URL:    s.configStore.GetString(keyNATSURL),
			Stream: s.getString(keyNATSStream, d.NATS.Stream),
		},
		HTTP: domain.HTTPSettings{
			Addr: s.getString(keyHTTPAddr, d.HTTP.Addr),
		},
		Providers: make(map[domain.ProviderType]domain.ProviderSettings),
	}

	for _, p := range domain.AllProviderTypes() {
		def := d.Providers[p]
		prefix := providerKeyPrefix + string(p) + "."
		ps := domain.ProviderSettings{
			ClientID:     s.configStore.GetString(prefix + providerClientID),
			ClientSecret: s.configStore.GetString(prefix + providerClientSecret),
			AuthURL:      s.getString(prefix+providerAuthURL, def.AuthURL),
			TokenURL:     s.getString(prefix+providerTokenURL, def.TokenURL),
			BaseURL:      s.getString(prefix+providerBaseURL, def.BaseURL),
			Scopes:       s.configStore.GetStringSlice(prefix + providerScopes),
		}
		settings.Providers[p] = ps
	}

	return settings, nil
}

// Set parses and stores one setting by key.
func (s *SettingsService) Set(key, value string) error {
	typ, err := lookupSettingType(key)
	if err != nil {
		return err
	}

	var parsed any
	switch typ {
	case settingInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		parsed = int64(n)
	case settingDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s must be a duration like 30s or 10m", domain.ErrInvalidInput, key)
		}
		parsed = value
	case settingBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		parsed = b
	case settingList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		parsed = items
	default:
		parsed = value
	}

	if key == keyStorageDriver && !domain.StorageDriver(value).IsValid() {
		return fmt.Errorf("%w: unknown storage driver %q", domain.ErrInvalidInput, value)
	}
	return s.configStore.Set(key, parsed)
}

// Validate checks the stored settings and reports every problem found.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs error
	if settings.UserID == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, keyUserID))
	}
	if !settings.Storage.Driver.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("%w: unknown storage driver %q", domain.ErrInvalidInput, settings.Storage.Driver))
	}
	if settings.Storage.Driver == domain.StoragePostgres && settings.Storage.DSN == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s is required for postgres", domain.ErrInvalidInput, keyStorageDSN))
	}
	if settings.Import.PageSize > domain.MaxPageSize {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s exceeds %d", domain.ErrInvalidInput, keyImportPageSize, domain.MaxPageSize))
	}
	if settings.Import.MaxAttempts < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s must be at least 1", domain.ErrInvalidInput, keyImportMaxAttempts))
	}
	if settings.Import.MaxBackoff < settings.Import.BaseBackoff {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s is below %s", domain.ErrInvalidInput, keyImportMaxBackoff, keyImportBaseBackoff))
	}
	for p, ps := range settings.Providers {
		if ps.ClientSecret != "" && ps.ClientID == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s has a client secret but no client id", domain.ErrInvalidInput, p))
		}
	}
	return errs
}

func lookupSettingType(key string) (settingType, error) {
	if typ, ok := settingTypes[key]; ok {
		return typ, nil
	}
	if rest, ok := strings.CutPrefix(key, providerKeyPrefix); ok {
		provider, field, found := strings.Cut(rest, ".")
		if found && domain.ProviderType(provider).IsValid() {
			if typ, ok := providerSettingTypes[field]; ok {
				return typ, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetInt(key)
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetBool(key)
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if d := s.configStore.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}
