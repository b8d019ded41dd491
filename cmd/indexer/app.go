package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goran-ethernal/TzIndexor/internal/archive"
	"github.com/goran-ethernal/TzIndexor/internal/cache"
	"github.com/goran-ethernal/TzIndexor/internal/commit"
	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/config"
	"github.com/goran-ethernal/TzIndexor/internal/db"
	"github.com/goran-ethernal/TzIndexor/internal/ingest"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/internal/migrations"
	"github.com/goran-ethernal/TzIndexor/internal/protocol"
	"github.com/goran-ethernal/TzIndexor/internal/rpc"
	"github.com/goran-ethernal/TzIndexor/internal/store"
	pkgconfig "github.com/goran-ethernal/TzIndexor/pkg/config"
)

// app holds the wired components shared by the commands that touch the ledger.
type app struct {
	cfg *pkgconfig.Config

	database    *sql.DB
	store       *store.Store
	archive     *archive.Archive
	node        *rpc.Client
	registry    *protocol.Registry
	maintenance db.Maintenance
	pipeline    *ingest.Pipeline
}

func loggingConfig(cfg *pkgconfig.Config) logger.LoggingConfig {
	if cfg.Logging == nil {
		return nil
	}
	return cfg.Logging
}

func componentLogger(cfg *pkgconfig.Config, component string) *logger.Logger {
	return logger.NewComponentLoggerFromConfig(component, loggingConfig(cfg))
}

// newApp loads the configuration, migrates the ledger and wires the pipeline.
func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	if err := migrations.RunMigrations(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a.database, err = db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.store = store.New(a.database, componentLogger(cfg, common.ComponentStore))

	a.archive, err = archive.Open(cfg.Archive, componentLogger(cfg, common.ComponentArchive))
	if err != nil {
		return nil, err
	}

	a.node, err = rpc.NewClient(cfg.Node, componentLogger(cfg, common.ComponentNodeClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create node client: %w", err)
	}

	a.registry = protocol.NewRegistry(a.store, componentLogger(cfg, common.ComponentProtocols))
	if err := a.registry.Seed(ctx, cfg.Protocols); err != nil {
		return nil, fmt.Errorf("failed to seed protocols: %w", err)
	}

	dispatcher := commit.NewDispatcher()
	if err := dispatcher.Validate(commit.FirstProtocol, commit.LastProtocol); err != nil {
		return nil, fmt.Errorf("commit dispatch table: %w", err)
	}

	a.maintenance = db.NewMaintenanceCoordinator(
		cfg.DB.Path,
		a.database,
		cfg.Maintenance,
		componentLogger(cfg, common.ComponentMaintenance),
	)
	a.maintenance.RegisterPruner("archive", a.archive.Prune)

	a.pipeline = ingest.NewPipeline(
		a.store,
		a.registry,
		dispatcher,
		a.archive,
		a.node,
		a.maintenance,
		cache.Options{StrictBalances: cfg.Ledger.StrictBalances},
		componentLogger(cfg, common.ComponentPipeline),
	)

	ok = true
	return a, nil
}

func (a *app) close() {
	var errs []error

	if a.node != nil {
		a.node.Close()
	}
	if a.archive != nil {
		errs = append(errs, a.archive.Close())
	}
	if a.database != nil {
		errs = append(errs, a.database.Close())
	}

	if err := errors.Join(errs...); err != nil {
		logger.GetDefaultLogger().Warnf("Failed to close resources: %v", err)
	}
}
