package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/typesynth/pkg/api"
	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/config"
	"github.com/openfroyo/typesynth/pkg/dsl"
	"github.com/openfroyo/typesynth/pkg/executor"
	"github.com/openfroyo/typesynth/pkg/policy"
	"github.com/openfroyo/typesynth/pkg/stores"
	"github.com/openfroyo/typesynth/pkg/telemetry"
)

// app holds what a command needs, built from the config file and flags.
type app struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	catalog *catalog.Catalog
	store   *stores.SQLiteStore
	guard   *policy.Engine
	watcher *policy.Loader
}

// appNeeds selects the optional parts of an app.
type appNeeds struct {
	catalog bool
	store   bool
	policy  bool
}

// newApp loads configuration and builds the requested components. The
// returned context carries the telemetry.
func newApp(ctx context.Context, needs appNeeds) (*app, context.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, ctx, err
	}
	if catalogPath != "" {
		cfg.Catalog = catalogPath
	}

	telCfg := cfg.Telemetry
	if verbose {
		telCfg.Logging.Level = "debug"
	} else if telCfg.Logging.Level == "info" {
		telCfg.Logging.Level = "warn"
	}
	tel, err := telemetry.NewTelemetry(&telCfg)
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a := &app{cfg: cfg, tel: tel}
	ctx = tel.WithContext(ctx)

	if needs.catalog {
		if cfg.Catalog == "" {
			a.Close(ctx)
			return nil, ctx, fmt.Errorf("no catalog given: use --catalog or set catalog in the config")
		}
		if a.catalog, err = dsl.Load(cfg.Catalog); err != nil {
			a.Close(ctx)
			return nil, ctx, err
		}
		log.Debug().
			Str("catalog", cfg.Catalog).
			Int("types", len(a.catalog.Types())).
			Int("functions", len(a.catalog.Functions())).
			Msg("Catalog loaded")
	}

	if needs.store && cfg.Store.Enabled {
		if a.store, err = openStore(ctx, cfg.Store.Path); err != nil {
			a.Close(ctx)
			return nil, ctx, err
		}
	}

	if needs.policy && cfg.Policy.Enabled {
		if err := a.initPolicy(ctx); err != nil {
			a.Close(ctx)
			return nil, ctx, err
		}
	}

	return a, ctx, nil
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func (a *app) initPolicy(ctx context.Context) error {
	engine, err := policy.NewEngine(a.tel.Logger.Zerolog())
	if err != nil {
		return err
	}
	a.guard = engine

	if len(a.cfg.Policy.Paths) == 0 {
		return nil
	}
	if a.cfg.Policy.Watch {
		a.watcher, err = policy.WatchEngine(ctx, engine, a.cfg.Policy.Paths)
		return err
	}
	return engine.LoadPolicies(ctx, a.cfg.Policy.Paths)
}

// executor builds a path executor with live query and call clients.
func (a *app) executor() *executor.PathExecutor {
	ec := a.cfg.Execution
	clientOpts := []executor.ClientOption{
		executor.WithHTTPClient(&http.Client{Timeout: ec.Timeout}),
		executor.WithRateLimit(ec.RateLimit),
	}
	opts := []executor.Option{
		executor.WithQueryRunner(executor.NewSPARQLClient(clientOpts...)),
		executor.WithCaller(executor.NewHTTPCaller(clientOpts...)),
	}
	if a.guard != nil {
		opts = append(opts, executor.WithGuard(a.guard))
	}
	return executor.New(opts...)
}

// service builds the API service over the loaded catalog.
func (a *app) service(ctx context.Context) (*api.Service, error) {
	execOpts, err := a.cfg.ExecutorOptions(ctx)
	if err != nil {
		return nil, err
	}
	opts := []api.ServiceOption{
		api.WithSearchOptions(a.cfg.SearchOptions()),
		api.WithExecutionOptions(execOpts),
		api.WithConcurrency(a.cfg.Execution.Concurrency),
		api.WithPlanLimit(a.cfg.Search.Limit),
	}
	if a.store != nil {
		opts = append(opts, api.WithStore(a.store))
	}
	return api.NewService(a.catalog, a.executor(), opts...), nil
}

// Close releases the store, policy watcher and telemetry.
func (a *app) Close(ctx context.Context) {
	if a.watcher != nil {
		_ = a.watcher.StopWatching()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
	if err := a.tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}
