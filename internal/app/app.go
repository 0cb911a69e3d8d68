// Package app provides application-level wiring and dependency injection
// for the sync server following hexagonal architecture.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"idsync/internal/api"
	"idsync/internal/config"
	"idsync/internal/db/repository"
	"idsync/internal/declarative"
	"idsync/internal/service/housekeeping"
	"idsync/internal/service/sync"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config and the logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App holds the fully-wired application. The API handler serves HTTP, the
// registry accepts connector bindings, and APIKeys backs the auth middleware.
type App struct {
	Systems      *repository.ConnectedSystemRepo
	Objects      *repository.ObjectRepo
	Metaverse    *repository.MetaverseRepo
	Rules        *repository.SyncRuleRepo
	Exports      *repository.PendingExportRepo
	Runs         *repository.RunRepo
	APIKeys      *repository.APIKeyRepo
	Registry     *sync.Registry
	Engine       *sync.Engine
	Housekeeping *housekeeping.Service
	Scheduler    *housekeeping.Scheduler
	Applier      *declarative.Applier
	Handler      *api.Handler
}

// New wires all repositories, the engine and the services from the provided
// deps. When a declarative directory is configured, its documents are
// applied before the app is returned.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	// Repositories (write-pool)
	systems := repository.NewConnectedSystemRepo(deps.WriteDB)
	objects := repository.NewObjectRepo(deps.WriteDB)
	metaverse := repository.NewMetaverseRepo(deps.WriteDB)
	rules := repository.NewSyncRuleRepo(deps.WriteDB)
	exports := repository.NewPendingExportRepo(deps.WriteDB)
	runs := repository.NewRunRepo(deps.WriteDB)

	// Repositories (read-pool): the API only reads runs and exports, and
	// the auth middleware only reads key hashes.
	readRuns := repository.NewRunRepo(deps.ReadDB)
	readExports := repository.NewPendingExportRepo(deps.ReadDB)
	apiKeys := repository.NewAPIKeyRepo(deps.ReadDB)

	registry := sync.NewRegistry()
	engine := sync.NewEngine(sync.Deps{
		Systems:    systems,
		Objects:    objects,
		Metaverse:  metaverse,
		Rules:      rules,
		Exports:    exports,
		Runs:       runs,
		Connectors: registry,
		Logger:     deps.Logger,
	})

	sweep := housekeeping.NewService(metaverse, objects, systems, deps.Logger)
	applier := declarative.NewApplier(systems, rules, deps.Logger)

	a := &App{
		Systems:      systems,
		Objects:      objects,
		Metaverse:    metaverse,
		Rules:        rules,
		Exports:      exports,
		Runs:         runs,
		APIKeys:      apiKeys,
		Registry:     registry,
		Engine:       engine,
		Housekeeping: sweep,
		Scheduler:    housekeeping.NewScheduler(sweep, deps.Logger),
		Applier:      applier,
		Handler: api.NewHandler(api.Deps{
			Systems:   systems,
			Objects:   objects,
			Metaverse: metaverse,
			Rules:     rules,
			Exports:   readExports,
			Runs:      readRuns,
			Engine:    engine,
			Sweeper:   sweep,
			Logger:    deps.Logger,
		}),
	}

	if cfg.DeclarativeDir != "" {
		state, err := declarative.LoadDirectory(cfg.DeclarativeDir)
		if err != nil {
			return nil, fmt.Errorf("load declarative config: %w", err)
		}
		report, err := applier.Apply(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("apply declarative config: %w", err)
		}
		deps.Logger.Info("declarative config applied",
			"systems_created", report.SystemsCreated,
			"object_types_created", report.ObjectTypesCreated,
			"policies_applied", report.PoliciesApplied,
			"rules_created", report.RulesCreated,
			"rules_updated", report.RulesUpdated)
	}

	if !cfg.IsProduction() {
		if err := seedDemo(ctx, a, deps.Logger); err != nil {
			deps.Logger.Warn("demo seed failed", "error", err)
		}
	}

	return a, nil
}
