package main

import (
	"context"
	"time"

	"routeopt/pkg/cache"
	"routeopt/pkg/config"
	"routeopt/pkg/database"
	"routeopt/pkg/logger"
	"routeopt/pkg/server"
	"routeopt/services/optimizer-svc/internal/handlers"
	"routeopt/services/optimizer-svc/internal/matrix"
	"routeopt/services/optimizer-svc/internal/repository"
	"routeopt/services/optimizer-svc/internal/service"
	"routeopt/services/optimizer-svc/internal/solver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("error")
		logger.Fatal("failed to load config", "error", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	logger.Info("starting optimizer service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, cleanup := buildHandler(ctx, cfg)
	defer cleanup()

	srv := server.New(cfg, h.Router())
	if err := srv.Run(); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}

// buildHandler собирает граф зависимостей сервиса
func buildHandler(ctx context.Context, cfg *config.Config) (*handlers.Handler, func()) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Кэш: матрицы провайдера и результаты решений
	var matrixCache *cache.MatrixCache
	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		c, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Warn("cache init failed, continuing without it", "error", err)
		} else {
			closers = append(closers, func() {
				if err := c.Close(); err != nil {
					logger.Warn("cache close failed", "error", err)
				}
			})
			matrixCache = cache.NewMatrixCache(c, cfg.Maps.CacheTTL())
			if ttl := cfg.Solver.ResultCacheTTL(); ttl > 0 {
				resultCache = cache.NewResultCache(c, ttl)
			}
		}
	}

	// Внешний провайдер матрицы расстояний
	var provider matrix.Provider
	if cfg.Maps.APIKey != "" {
		provider = matrix.NewGoogleProvider(cfg.Maps)
	}
	builder := matrix.NewBuilder(cfg.Maps, provider, matrixCache, cfg.App.Testing)

	// Решатель с пулом на ограничение параллельных расчётов
	pool := solver.NewPool(solver.New(cfg.Solver), cfg.Solver.MaxConcurrentSolves)
	optimizer := service.NewOptimizer(cfg.Solver, builder, pool, resultCache)
	optimizer.UseConditions(service.NewConditionsProvider(cfg.App.Testing))
	rerouter := service.NewRerouter(optimizer)

	// История решений (опционально, требует PostgreSQL)
	var solves repository.SolveRepository
	var db *database.PostgresDB
	if cfg.Database.Enabled {
		var err error
		db, err = database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			logger.Warn("database unavailable, solve history disabled", "error", err)
		} else {
			closers = append(closers, func() { db.Close() })
			if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, repository.Migrations, repository.MigrationsDir); err != nil {
				logger.Fatal("migrations failed", "error", err)
			}
			solves = repository.NewPostgresSolveRepository(db)
		}
	}

	h := handlers.NewHandler(cfg, optimizer, rerouter, solves)
	if db != nil {
		h.AddReadyCheck("database", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return db.Ping(ctx)
		})
	}

	return h, cleanup
}
