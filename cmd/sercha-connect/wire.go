package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/events"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/metrics"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/oauth"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/sercha-connect/internal/connectors/google"
	"github.com/custodia-labs/sercha-connect/internal/connectors/google/drive"
	"github.com/custodia-labs/sercha-connect/internal/connectors/google/gmail"
	"github.com/custodia-labs/sercha-connect/internal/connectors/outlook"
	"github.com/custodia-labs/sercha-connect/internal/connectors/twitter"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/services"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// stores is the persistence chosen by storage.driver.
type stores struct {
	accounts  driven.AccountStore
	items     driven.ItemStore
	scheduler driven.SchedulerStore
	ping      func(ctx context.Context) error
	close     func() error
}

func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	st, err := openStores(ctx, settings.Storage)
	if err != nil {
		return nil, err
	}
	closers := []func() error{st.close}

	var publisher driven.EventPublisher = events.Nop{}
	if settings.NATS.URL != "" {
		p, err := events.NewPublisher(settings.NATS.URL, settings.NATS.Stream)
		if err != nil {
			_ = st.close()
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
		publisher = p
		closers = append(closers, func() error { p.Close(); return nil })
	}

	prom := metrics.New()

	googleOpts := google.Options{Endpoint: settings.Providers[domain.ProviderGoogle].BaseURL}
	twitterClient := twitter.NewClient(settings.Providers[domain.ProviderTwitter].BaseURL, nil)
	registry := services.NewProviderRegistry(
		gmail.New(googleOpts),
		drive.New(googleOpts),
		twitterClient,
		outlook.New(),
	)

	endpoint := oauth.NewEndpoint(settings.Providers,
		oauth.WithHandler(domain.ProviderGoogle, google.NewOAuthHandler()),
		oauth.WithHandler(domain.ProviderTwitter, twitter.NewOAuthHandler(twitterClient)),
		oauth.WithHandler(domain.ProviderMicrosoft, outlook.NewOAuthHandler()),
	)

	guard := services.NewScopeGuard()
	tokens := services.NewTokenRefresher(st.accounts, endpoint,
		services.WithRefreshMargin(settings.Tokens.RefreshMargin),
		services.WithRefreshWindow(settings.Scheduler.RefreshWindow),
		services.WithRefreshMetrics(prom),
	)
	pipeline := services.NewImportPipeline(tokens, guard, registry, services.NewUpserter(st.items), settings.Import,
		services.WithEventPublisher(publisher),
		services.WithImportMetrics(prom),
	)
	connections := services.NewConnectionService(st.accounts, st.items, endpoint, guard, publisher)
	scheduler := services.NewScheduler(settings.Scheduler, st.scheduler, tokens)

	handler := httpapi.NewRouter(httpapi.Config{
		Imports:     pipeline,
		Connections: connections,
		Metrics:     prom.Handler(),
		Instrument:  prom.Middleware,
		Ready:       st.ping,
	})

	for p, cfg := range settings.Providers {
		if !cfg.IsConfigured() {
			logger.Debug("provider %s has no client_id, consent will fail until it is set", p)
		}
	}

	return &cli.Services{
		Imports:     pipeline,
		Connections: connections,
		Tokens:      tokens,
		Settings:    settingsService,
		Scheduler:   scheduler,
		HTTPHandler: handler,
		HTTPAddr:    settings.HTTP.Addr,
		UserID:      settings.UserID,
		Close: func() error {
			var errs error
			for i := len(closers) - 1; i >= 0; i-- {
				errs = multierr.Append(errs, closers[i]())
			}
			return errs
		},
	}, nil
}

func openStores(ctx context.Context, cfg domain.StorageSettings) (*stores, error) {
	switch cfg.Driver {
	case domain.StorageMemory:
		s := memory.NewStore()
		logger.Warn("using in-memory storage, nothing is persisted")
		return &stores{
			accounts: s,
			items:    s,
			ping:     func(context.Context) error { return nil },
			close:    func() error { return nil },
		}, nil
	case domain.StoragePostgres:
		s, err := postgres.NewStore(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return &stores{
			accounts: s.AccountStore(),
			items:    s.ItemStore(),
			ping:     s.Ping,
			close:    s.Close,
		}, nil
	case domain.StorageSQLite, "":
		s, err := sqlite.NewStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return &stores{
			accounts:  s.AccountStore(),
			items:     s.ItemStore(),
			scheduler: s.SchedulerStore(),
			ping:      s.Ping,
			close:     s.Close,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", domain.ErrInvalidInput, cfg.Driver)
	}
}
