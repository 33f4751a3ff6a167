// Package cli provides the sercha-connect cobra commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// Options are the global flags handed to the bootstrap function.
type Options struct {
	ConfigDir string
	Verbose   bool
	UserID    string
}

// Services are the core services commands run against.
type Services struct {
	Imports     driving.ImportService
	Connections driving.ConnectionService
	Tokens      driving.TokenService
	Settings    driving.SettingsService
	Scheduler   driving.Scheduler

	// HTTPHandler serves the JSON API for the serve command.
	HTTPHandler http.Handler
	HTTPAddr    string

	// UserID is the configured default user.
	UserID string

	// Close releases stores and connections. May be nil.
	Close func() error
}

// Bootstrap builds Services once global flags are parsed.
type Bootstrap func(ctx context.Context, opts Options) (*Services, error)

var (
	bootstrap Bootstrap
	services  *Services
	options   Options
)

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "sercha-connect",
	Short: "Connect OAuth providers and import their content",
	Long: `sercha-connect links your Google, Twitter and Microsoft accounts and imports
mail, posts and files into local storage.

Connect a provider first, then run imports against it:

  sercha-connect connect google
  sercha-connect import google --kind email --label Newsletters`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&options.ConfigDir, "config", "", "config directory (default ~/.sercha-connect)")
	rootCmd.PersistentFlags().StringVarP(&options.UserID, "user", "u", "", "local user id (default from config)")
}

// SetBootstrap registers the function that wires services.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs ready-made services, bypassing the bootstrap.
func SetServices(s *Services) {
	services = s
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(options.Verbose)
	if cmd.Annotations[skipBootstrap] != "" || services != nil || bootstrap == nil {
		return nil
	}
	s, err := bootstrap(cmd.Context(), options)
	if err != nil {
		return err
	}
	services = s
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipBootstrap] != "" || services == nil || services.Close == nil {
		return nil
	}
	return services.Close()
}

// userID returns the --user flag or the configured default.
func userID() string {
	if options.UserID != "" {
		return options.UserID
	}
	if services != nil && services.UserID != "" {
		return services.UserID
	}
	return domain.DefaultAppSettings().UserID
}

func parseProvider(arg string) (domain.ProviderType, error) {
	p := domain.ProviderType(strings.ToLower(strings.TrimSpace(arg)))
	if !p.IsValid() {
		names := make([]string, 0, len(domain.AllProviderTypes()))
		for _, known := range domain.AllProviderTypes() {
			names = append(names, string(known))
		}
		return "", fmt.Errorf("%w: %q (expected one of %s)", domain.ErrUnsupportedProvider, arg, strings.Join(names, ", "))
	}
	return p, nil
}

var errNotConfigured = errors.New("service not configured")
