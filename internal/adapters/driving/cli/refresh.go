package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh access tokens that are about to expire",
	Long:  `Refreshes every stored access token expiring within the configured refresh window. Accounts whose refresh was rejected keep their tokens and need reconnecting.`,
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Tokens == nil {
		return fmt.Errorf("refresh: %w", errNotConfigured)
	}
	n, err := services.Tokens.RefreshExpiring(cmd.Context())
	cmd.Printf("Refreshed %d token(s)\n", n)
	return err
}
