package cli

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [provider]",
	Short: "Show connection status",
	Long:  `Shows whether each provider is connected, whether its granted permissions cover every import kind, and how many items are stored.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <provider>",
	Short: "Disconnect a provider and delete its imported items",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisconnect,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(disconnectCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if services == nil || services.Connections == nil {
		return fmt.Errorf("status: %w", errNotConfigured)
	}
	providers := domain.AllProviderTypes()
	if len(args) == 1 {
		p, err := parseProvider(args[0])
		if err != nil {
			return err
		}
		providers = []domain.ProviderType{p}
	}

	for i, p := range providers {
		status, err := services.Connections.Status(cmd.Context(), userID(), p)
		if err != nil {
			return err
		}
		if i > 0 {
			cmd.Println()
		}
		printStatus(cmd, status)
	}
	return nil
}

func printStatus(cmd *cobra.Command, s *domain.ConnectionStatus) {
	if !s.Connected {
		cmd.Printf("%s: not connected\n", s.Provider)
		return
	}
	cmd.Printf("%s: connected", s.Provider)
	if s.AccountIdentifier != "" {
		cmd.Printf(" as %s", s.AccountIdentifier)
	}
	cmd.Println()
	if s.ScopeSufficient {
		cmd.Println("  Permissions: sufficient")
	} else {
		cmd.Println("  Permissions: insufficient, reconnect to grant the rest")
	}

	caps := make([]string, 0, len(s.Capabilities))
	for c := range s.Capabilities {
		caps = append(caps, string(c))
	}
	sort.Strings(caps)
	for _, c := range caps {
		mark := "no"
		if s.Capabilities[domain.Capability(c)] {
			mark = "yes"
		}
		cmd.Printf("    %-14s %s\n", c, mark)
	}
	cmd.Printf("  Items: %d\n", s.ItemCount)
	if s.ExpiresAt != nil {
		cmd.Printf("  Token expires: %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
	}
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	if services == nil || services.Connections == nil {
		return fmt.Errorf("disconnect: %w", errNotConfigured)
	}
	provider, err := parseProvider(args[0])
	if err != nil {
		return err
	}
	err = services.Connections.Disconnect(cmd.Context(), userID(), provider)
	if errors.Is(err, domain.ErrNotConnected) {
		cmd.Printf("%s is not connected\n", provider)
		return nil
	}
	if err != nil {
		return err
	}
	cmd.Printf("Disconnected %s and deleted its imported items\n", provider)
	return nil
}
