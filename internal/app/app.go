// Package app wires configuration into a ready-to-use sync pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/spidersync/internal/config"
	"github.com/raphaelgruber/spidersync/internal/db"
	"github.com/raphaelgruber/spidersync/internal/index"
	"github.com/raphaelgruber/spidersync/internal/loader"
	"github.com/raphaelgruber/spidersync/internal/metrics"
	"github.com/raphaelgruber/spidersync/internal/service"
)

// App holds the pipeline and the connections it owns.
type App struct {
	Processor *service.Processor
	Metrics   *metrics.Collector

	// Ledger is nil when no SurrealDB URL is configured.
	Ledger *db.Client

	cfg    config.Config
	logger *slog.Logger
}

// New validates cfg and builds the pipeline. The run ledger is connected only
// when configured; failing to reach it is an error.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mc := metrics.NewCollector()

	files, err := loader.New(ctx, loader.Config{
		Type:     cfg.Loader.Type,
		BasePath: cfg.Loader.BasePath,
		Bucket:   cfg.Loader.Bucket,
		Prefix:   cfg.Loader.Prefix,
		Region:   cfg.Loader.Region,
		Endpoint: cfg.Loader.Endpoint,
		BaseURL:  cfg.Loader.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	a := &App{Metrics: mc, cfg: cfg, logger: logger}

	var store service.RunStore
	if cfg.LedgerEnabled() {
		a.Ledger, err = ConnectLedger(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		store = a.Ledger
	}

	a.Processor = service.NewProcessor(service.ProcessorConfig{
		Index: index.New(index.Config{
			Host:     cfg.Elasticsearch.Host,
			User:     cfg.Elasticsearch.User,
			Password: cfg.Elasticsearch.Password,
			Timeout:  cfg.Elasticsearch.Timeout,
		}, mc),
		Assembler:   service.NewAssembler(files, cfg.DocumentBaseURL, mc),
		Runs:        service.NewRunManager(store),
		IndexPrefix: cfg.Elasticsearch.Index,
		Concurrency: cfg.Concurrency,
		Metrics:     mc,
		Logger:      logger,
	})

	logger.Info("sync pipeline ready",
		"index_host", cfg.Elasticsearch.Host,
		"index_prefix", cfg.Elasticsearch.Index,
		"loader", cfg.Loader.Type,
		"concurrency", cfg.Concurrency,
		"ledger", cfg.LedgerEnabled())
	return a, nil
}

// ConnectLedger connects to SurrealDB and initializes the run schema.
func ConnectLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (*db.Client, error) {
	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDB.URL,
		Namespace: cfg.SurrealDB.Namespace,
		Database:  cfg.SurrealDB.Database,
		Username:  cfg.SurrealDB.User,
		Password:  cfg.SurrealDB.Pass,
		AuthLevel: cfg.SurrealDB.AuthLevel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect run ledger: %w", err)
	}
	if err := client.InitSchema(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return client, nil
}

// Close releases the ledger connection.
func (a *App) Close(ctx context.Context) error {
	if a.Ledger != nil {
		return a.Ledger.Close(ctx)
	}
	return nil
}

// WipeLedger deletes all recorded runs. Use for testing only.
func (a *App) WipeLedger(ctx context.Context) error {
	if a.Ledger == nil {
		return nil
	}
	return a.Ledger.WipeData(ctx)
}
