// Package app provides application initialization and dependency injection.
//
// App is the core container that wires the model client, tool registry,
// query pipeline, intent router and turn controller together from a loaded
// configuration. Components receive their dependencies explicitly; nothing
// reads configuration after Setup returns.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataquay/dataquay/internal/config"
	"github.com/dataquay/dataquay/internal/converse"
	"github.com/dataquay/dataquay/internal/log"
	"github.com/dataquay/dataquay/internal/model"
	"github.com/dataquay/dataquay/internal/query"
	"github.com/dataquay/dataquay/internal/session"
	"github.com/dataquay/dataquay/internal/tools"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Client     model.Client
	Registry   *tools.Registry
	Pipeline   *query.Pipeline
	Router     *converse.Router
	Controller *converse.Controller

	// DBPool is nil when transcript persistence is disabled.
	DBPool *pgxpool.Pool
	Store  *session.Store
}

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	a.Client = model.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.ModelID, logger)
	a.Registry = provideRegistry(cfg, logger)

	pipeline, err := provideQueryPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pipeline = pipeline

	loop, err := converse.NewLoop(converse.LoopConfig{
		Client:      a.Client,
		Registry:    a.Registry,
		MaxRounds:   cfg.MaxRounds,
		Temperature: cfg.Temperature,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating tool loop: %w", err)
	}

	a.Router, err = converse.NewRouter(converse.RouterConfig{
		Loop:     loop,
		Database: cfg.Database,
		Table:    cfg.Table,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	var store converse.TranscriptStore
	if cfg.DatabaseURL != "" {
		pool, err := provideDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.DBPool = pool
		a.Store = session.NewStore(pool, logger)
		store = a.Store
	} else {
		logger.Info("transcript persistence disabled, no database URL configured")
	}

	a.Controller, err = converse.NewController(converse.ControllerConfig{
		Router:         a.Router,
		Pipeline:       a.Pipeline,
		Store:          store,
		Database:       cfg.Database,
		OutputLocation: cfg.OutputLocation,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating turn controller: %w", err)
	}

	return a, nil
}

// Close releases all resources held by the application.
func (a *App) Close() {
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
}

// provideRegistry builds the tool registry from the configured endpoints.
// Tools without an endpoint are simply not registered; an empty registry is
// valid and means the model converses without tool declarations.
func provideRegistry(cfg *config.Config, logger log.Logger) *tools.Registry {
	var ts []tools.Tool
	if cfg.ToolCodeInterpreter != "" {
		ts = append(ts, tools.CodeInterpreter(cfg.ToolCodeInterpreter))
	}
	if cfg.ToolWebSearch != "" {
		ts = append(ts, tools.WebSearch(cfg.ToolWebSearch))
	}
	registry := tools.NewRegistry(logger, ts...)
	logger.Info("tools registered", "count", registry.Len())
	return registry
}

// provideQueryPipeline creates the query execution pipeline backed by the
// configured query service.
func provideQueryPipeline(cfg *config.Config, logger log.Logger) (*query.Pipeline, error) {
	pipeline, err := query.NewPipeline(query.Config{
		Client:       query.NewHTTPClient(cfg.QueryServiceURL),
		PollInterval: cfg.PollInterval,
		MaxWait:      cfg.MaxWait,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating query pipeline: %w", err)
	}
	return pipeline, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := session.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
