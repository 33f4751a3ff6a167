package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change configuration stored in ~/.sercha-connect/config.toml.

Every key can also be overridden with an environment variable, for example
SERCHA_CONNECT_PROVIDERS_GOOGLE_CLIENT_SECRET.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting",
	Long: `Sets one configuration key.

Examples:
  sercha-connect settings set storage.driver postgres
  sercha-connect settings set import.timeout 10m
  sercha-connect settings set providers.google.client_id 1234.apps.googleusercontent.com`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the settings for problems",
	Args:  cobra.NoArgs,
	RunE:  runSettingsValidate,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Settings == nil {
		return fmt.Errorf("settings: %w", errNotConfigured)
	}
	s, err := services.Settings.Get()
	if err != nil {
		return err
	}

	cmd.Println("General")
	cmd.Printf("  User:              %s\n", s.UserID)
	cmd.Println()
	cmd.Println("Storage")
	cmd.Printf("  Driver:            %s\n", s.Storage.Driver)
	switch s.Storage.Driver {
	case domain.StoragePostgres:
		cmd.Printf("  DSN:               %s\n", maskDSN(s.Storage.DSN))
	case domain.StorageSQLite:
		cmd.Printf("  Path:              %s\n", orDefault(s.Storage.Path, "(config directory)"))
	}
	cmd.Println()
	cmd.Println("Import")
	cmd.Printf("  Max items:         %d\n", s.Import.MaxItems)
	cmd.Printf("  Timeout:           %s\n", s.Import.Timeout)
	cmd.Printf("  Page size:         %d\n", s.Import.PageSize)
	cmd.Printf("  Max attempts:      %d\n", s.Import.MaxAttempts)
	cmd.Printf("  Backoff:           %s to %s\n", s.Import.BaseBackoff, s.Import.MaxBackoff)
	cmd.Println()
	cmd.Println("Tokens")
	cmd.Printf("  Refresh margin:    %s\n", s.Tokens.RefreshMargin)
	cmd.Printf("  Scheduler:         %s\n", enabled(s.Scheduler.Enabled))
	if s.Scheduler.Enabled {
		cmd.Printf("  Refresh every:     %s (window %s)\n", s.Scheduler.RefreshInterval, s.Scheduler.RefreshWindow)
	}
	cmd.Println()
	cmd.Println("Server")
	cmd.Printf("  HTTP address:      %s\n", s.HTTP.Addr)
	cmd.Printf("  NATS:              %s\n", orDefault(s.NATS.URL, "(disabled)"))
	if s.NATS.URL != "" {
		cmd.Printf("  NATS stream:       %s\n", s.NATS.Stream)
	}
	cmd.Println()
	cmd.Println("Providers")

	names := make([]string, 0, len(s.Providers))
	for p := range s.Providers {
		names = append(names, string(p))
	}
	sort.Strings(names)
	for _, name := range names {
		p := s.Providers[domain.ProviderType(name)]
		if !p.IsConfigured() {
			cmd.Printf("  %-18s not configured\n", name+":")
			continue
		}
		cmd.Printf("  %-18s client %s, secret %s\n", name+":", p.ClientID, maskSecret(p.ClientSecret))
		if len(p.Scopes) > 0 {
			cmd.Printf("  %-18s scopes %s\n", "", strings.Join(p.Scopes, " "))
		}
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if services == nil || services.Settings == nil {
		return fmt.Errorf("settings: %w", errNotConfigured)
	}
	if err := services.Settings.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Set %s\n", args[0])
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Settings == nil {
		return fmt.Errorf("settings: %w", errNotConfigured)
	}
	if err := services.Settings.Validate(); err != nil {
		return err
	}
	cmd.Println("Settings are valid")
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "(none)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// maskDSN hides the password in a postgres URL DSN.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
