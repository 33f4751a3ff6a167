package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/oauth"
)

// DefaultCallbackPort is the local port registered as the OAuth redirect.
const DefaultCallbackPort = 8085

var connectFlags struct {
	port      int
	noBrowser bool
	timeout   time.Duration
}

var connectCmd = &cobra.Command{
	Use:   "connect <provider>",
	Short: "Connect a provider account through OAuth consent",
	Long: `Opens the provider's consent page and stores the resulting tokens.

Consent asks for every permission the provider supports. The redirect URI
http://localhost:<port>/callback must be registered with the provider's OAuth client.`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().IntVar(&connectFlags.port, "port", DefaultCallbackPort, "local callback port")
	connectCmd.Flags().BoolVar(&connectFlags.noBrowser, "no-browser", false, "print the consent URL without opening a browser")
	connectCmd.Flags().DurationVar(&connectFlags.timeout, "timeout", 5*time.Minute, "how long to wait for consent")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	if services == nil || services.Connections == nil {
		return fmt.Errorf("connect: %w", errNotConfigured)
	}
	provider, err := parseProvider(args[0])
	if err != nil {
		return err
	}

	state := oauth.NewState()
	verifier := oauth2.GenerateVerifier()
	server := oauth.NewCallbackServer(connectFlags.port, state)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}
	defer func() { _ = server.Stop() }()

	redirectURI := server.RedirectURI()
	authURL, err := services.Connections.BeginConsent(provider, state, redirectURI, verifier)
	if err != nil {
		return err
	}

	cmd.Printf("Open this URL to grant access:\n\n  %s\n\n", authURL)
	if !connectFlags.noBrowser {
		if err := oauth.OpenBrowser(authURL); err != nil {
			cmd.Printf("Could not open a browser (%v); open the URL manually.\n", err)
		}
	}
	cmd.Println("Waiting for consent...")

	ctx, cancel := context.WithTimeout(cmd.Context(), connectFlags.timeout)
	defer cancel()
	code, err := server.Wait(ctx)
	if err != nil {
		return fmt.Errorf("consent: %w", err)
	}

	account, err := services.Connections.CompleteConsent(cmd.Context(), userID(), provider, code, redirectURI, verifier)
	if err != nil {
		return err
	}
	who := account.AccountIdentifier
	if who == "" {
		who = account.UserID
	}
	cmd.Printf("Connected %s as %s\n", provider, who)

	status, err := services.Connections.Status(cmd.Context(), userID(), provider)
	if err != nil {
		return err
	}
	printStatus(cmd, status)
	return nil
}
