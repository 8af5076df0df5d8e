package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiusdt/space-analytics/internal/analytics"
	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/radiusdt/space-analytics/internal/dashboard"
	"github.com/radiusdt/space-analytics/internal/database"
	"github.com/radiusdt/space-analytics/internal/dataset"
	"github.com/radiusdt/space-analytics/internal/geo"
	"github.com/radiusdt/space-analytics/internal/httpserver"
	"github.com/radiusdt/space-analytics/internal/metrics"
	"github.com/radiusdt/space-analytics/internal/middleware"
	"github.com/radiusdt/space-analytics/internal/storage"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFile(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting space-analytics",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("actions_storage", cfg.Storage.ActionSource()),
	)

	if cfg.IsProduction() && !cfg.Auth.Enabled {
		logger.Warn("API key auth is disabled in production")
	}

	m := metrics.NewMetrics(cfg.Metrics.Namespace, nil)

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelConnect()

	// Initialize storage backends
	sources, backends, err := buildSources(connectCtx, cfg, logger)
	defer func() {
		for i := len(backends) - 1; i >= 0; i-- {
			backends[i].close()
		}
	}()
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}

	checks := make(map[string]httpserver.HealthCheck, len(backends)+1)
	for _, b := range backends {
		checks[b.name] = b.health
	}

	opts := dashboard.Options{CacheTTL: cfg.Cache.TTL}

	// Try to connect to Redis for the dashboard cache
	if cfg.Cache.Enabled {
		redis, err := database.NewRedisDB(connectCtx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis not available, dashboard caching disabled", zap.Error(err))
		} else {
			defer redis.Close()
			opts.Cache = storage.NewRedisDashboardCache(redis.Client)
			checks["redis"] = redis.Health
		}
	}

	// Initialize geo enrichment
	if cfg.Geo.Enabled {
		provider, err := geo.NewMaxMindProvider(cfg.Geo.DatabasePath)
		if err != nil {
			logger.Warn("failed to initialize geo provider, enrichment disabled", zap.Error(err))
		} else {
			defer provider.Close()
			opts.Enricher = geo.NewEnricher(provider, cfg.Geo.CacheSize, cfg.Geo.CacheTTL, logger, m)
		}
	}

	engine := analytics.NewEngine(cfg.Analytics, logger, m)
	svc := dashboard.NewService(sources, engine, opts, logger, m)

	deps := &httpserver.Dependencies{
		Dashboard:    svc,
		Config:       cfg,
		Logger:       logger,
		Metrics:      m,
		HealthChecks: checks,
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpserver.Wrap(httpserver.NewServer(deps), deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

type batchStore interface {
	storage.ActionStore
	storage.UserStore
	storage.SpaceStore
}

// backend is an opened connection with its close hook and health probe.
type backend struct {
	name   string
	close  func()
	health httpserver.HealthCheck
}

// buildSources connects the configured backends and applies the seed file,
// if any. Opened backends are returned even on error so they get released.
func buildSources(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Sources, []backend, error) {
	var (
		backends []backend
		sources  storage.Sources
		seed     *dataset.Seed
	)

	if cfg.Storage.SeedFile != "" {
		var err error
		if seed, err = dataset.LoadSeed(cfg.Storage.SeedFile); err != nil {
			return sources, nil, err
		}
	}

	store, b, err := openStore(ctx, cfg.Storage.Backend, cfg, logger)
	if b != nil {
		backends = append(backends, *b)
	}
	if err != nil {
		return sources, backends, err
	}
	if err := applySeed(ctx, seed, store, cfg, logger); err != nil {
		return sources, backends, err
	}
	sources = storage.Sources{Actions: store, Users: store, Spaces: store, Name: cfg.Storage.Backend}

	switch actionSource := cfg.Storage.ActionSource(); actionSource {
	case cfg.Storage.Backend:
	case config.BackendClickHouse:
		ch, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			return sources, backends, err
		}
		backends = append(backends, backend{name: "clickhouse", close: func() { _ = ch.Close() }, health: ch.Health})
		actions := storage.NewClickHouseActionStore(ch.Conn)
		if err := actions.Migrate(ctx); err != nil {
			return sources, backends, err
		}
		if seed != nil {
			if err := seed.WriteActions(ctx, actions); err != nil {
				return sources, backends, fmt.Errorf("failed to seed clickhouse: %w", err)
			}
		}
		sources.Actions = actions
		sources.Name = actionSource + "+" + cfg.Storage.Backend
	default:
		actions, b, err := openStore(ctx, actionSource, cfg, logger)
		if b != nil {
			backends = append(backends, *b)
		}
		if err != nil {
			return sources, backends, err
		}
		if err := applySeed(ctx, seed, actions, cfg, logger); err != nil {
			return sources, backends, err
		}
		sources.Actions = actions
		sources.Name = actionSource + "+" + cfg.Storage.Backend
	}

	return sources, backends, nil
}

func openStore(ctx context.Context, name string, cfg *config.Config, logger *zap.Logger) (batchStore, *backend, error) {
	switch name {
	case config.BackendPostgres:
		db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		b := &backend{name: name, close: db.Close, health: db.Health}
		store := storage.NewPostgresStore(db.Pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, b, err
		}
		return store, b, nil

	case config.BackendMongo:
		db, err := database.NewMongoDB(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, nil, err
		}
		b := &backend{name: name, close: func() { _ = db.Close(context.Background()) }, health: db.Health}
		return storage.NewMongoStore(db.DB), b, nil

	default:
		return storage.NewInMemoryStore(), nil, nil
	}
}

// applySeed loads seed into store. Durable stores upsert, so reseeding on
// every start is harmless.
func applySeed(ctx context.Context, seed *dataset.Seed, store batchStore, cfg *config.Config, logger *zap.Logger) error {
	if seed == nil {
		if _, ok := store.(*storage.InMemoryStore); ok {
			logger.Warn("memory store is empty; set SPACE_ANALYTICS_SEED_FILE to load a dataset")
		}
		return nil
	}

	switch s := store.(type) {
	case *storage.InMemoryStore:
		seed.Apply(s)
	case dataset.Writer:
		if err := seed.Write(ctx, s); err != nil {
			return fmt.Errorf("failed to seed store: %w", err)
		}
	default:
		return fmt.Errorf("store %T cannot be seeded", store)
	}

	logger.Info("store seeded",
		zap.String("file", cfg.Storage.SeedFile),
		zap.Int("spaces", len(seed.Spaces)),
	)
	return nil
}
