package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// shutdownTimeout bounds how long in-flight requests get on shutdown.
const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API and the token refresh scheduler",
	Long: `Serves the HTTP API (imports, status, disconnect, consent, metrics) and runs
the background scheduler that refreshes expiring tokens. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if services == nil || services.HTTPHandler == nil {
		return fmt.Errorf("serve: %w", errNotConfigured)
	}
	addr := serveAddr
	if addr == "" {
		addr = services.HTTPAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           services.HTTPHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		logger.Info("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if services.Scheduler != nil {
		g.Go(func() error {
			err := services.Scheduler.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	if services.Scheduler != nil {
		_ = services.Scheduler.Stop()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
