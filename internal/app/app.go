// Package app initializes and holds the long-lived services of the indexer,
// acting as the dependency injection container shared by all commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scrapsama/scrapsama/internal/config"
	"github.com/scrapsama/scrapsama/internal/fetcher"
	"github.com/scrapsama/scrapsama/internal/indexer"
	"github.com/scrapsama/scrapsama/internal/logging"
	"github.com/scrapsama/scrapsama/internal/solverr"
	"github.com/scrapsama/scrapsama/internal/store/postgres"
)

// App holds the shared services built from configuration: logger, bypass
// client, fetcher, store and indexer. It is initialized once at startup and
// closed once on exit.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher *fetcher.Client
	store   *postgres.Store
	indexer *indexer.Indexer
}

// New builds the full service graph, failing fast on the first service that
// cannot come up. The store connection is verified with a ping before any
// command runs.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	var solver fetcher.Solver
	if cfg.Solverr.Enabled {
		solver = solverr.New(cfg.Solverr.URL, cfg.SolveBudget(), logger)
	}

	fetch, err := fetcher.New(fetcher.Config{
		BypassEnabled: cfg.Solverr.Enabled,
		UserAgent:     cfg.Site.UserAgent,
		Timeout:       cfg.SiteTimeout(),
		MaxParallel:   cfg.Solverr.MaxParallel,
	}, solver, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize fetcher: %w", err)
	}

	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN(),
		MaxConns: cfg.DB.MaxConns,
	}, logger)
	if err != nil {
		fetch.Close()
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	ix, err := indexer.New(fetch, store, cfg.Site.BaseURL, logger)
	if err != nil {
		fetch.Close()
		store.Close()
		return nil, fmt.Errorf("initialize indexer: %w", err)
	}

	logger.Info("application services ready",
		zap.Bool("bypass_enabled", cfg.Solverr.Enabled),
		zap.String("base_url", cfg.Site.BaseURL))

	return &App{cfg: cfg, logger: logger, fetcher: fetch, store: store, indexer: ix}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Fetcher returns the content acquisition client.
func (a *App) Fetcher() *fetcher.Client {
	return a.fetcher
}

// Store returns the catalogue store.
func (a *App) Store() *postgres.Store {
	return a.store
}

// Indexer returns the indexing orchestrator.
func (a *App) Indexer() *indexer.Indexer {
	return a.indexer
}

// Close releases every service in reverse initialization order. The bypass
// session is destroyed before the pool closes so its teardown can still be
// logged.
func (a *App) Close() {
	if a.fetcher != nil {
		a.fetcher.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
