package main

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/atlas/reconciler/internal/config"
	"github.com/stwalsh4118/atlas/reconciler/internal/database"
	"github.com/stwalsh4118/atlas/reconciler/internal/estimator"
	"github.com/stwalsh4118/atlas/reconciler/internal/feed"
	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/repository"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
	"github.com/stwalsh4118/atlas/reconciler/internal/tracing"
)

// app holds the process-wide dependencies shared by every subcommand.
type app struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.Database

	pipeline   *services.Pipeline
	ledger     services.BatchLedger
	properties services.PropertyService
	portfolios services.PortfolioAggregator
	estimation services.EstimationService

	stopTracing tracing.ShutdownFunc
}

// bootstrap loads configuration, connects to Postgres and wires the
// repository and service layers.
func bootstrap(ctx context.Context) (*app, error) {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)

	delimiter, err := feed.ParseDelimiter(cfg.Feed.Delimiter)
	if err != nil {
		return nil, err
	}

	stopTracing, err := tracing.Init(ctx, log, tracing.Options{
		Enabled:     cfg.Telemetry.TracingEnabled,
		Environment: cfg.Server.Env,
	})
	if err != nil {
		return nil, err
	}

	// Create database connection pool
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		_ = stopTracing(ctx)
		return nil, fmt.Errorf("failed to connect to database %s:%s/%s: %w",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.Name, err)
	}

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Initialize repository and service layers
	stagingRepo := repository.NewStagingRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	batchRepo := repository.NewBatchRepository(db)

	ledger := services.NewBatchLedger(batchRepo, log)
	portfolios := services.NewPortfolioAggregator(portfolioRepo, log, cfg.Portfolio.IncludeInactive)
	est := estimator.New(estimator.Options{K: cfg.Estimator.K, Workers: cfg.Estimator.Workers})

	return &app{
		cfg: cfg,
		log: log,
		db:  db,
		pipeline: services.NewPipeline(
			ledger,
			services.NewStagingLoader(stagingRepo, log),
			services.NewChangeReconciler(stagingRepo, propertyRepo, log),
			portfolios,
			services.FileSourceOpener(delimiter),
			log,
		),
		ledger:      ledger,
		properties:  services.NewPropertyService(propertyRepo, historyRepo, log),
		portfolios:  portfolios,
		estimation:  services.NewEstimationService(propertyRepo, services.NewPredictionWriter(propertyRepo, log), est, log, cfg.Estimator.MinConfidence),
		stopTracing: stopTracing,
	}, nil
}

// Close flushes spans and releases the pool.
func (a *app) Close(ctx context.Context) {
	if err := a.stopTracing(ctx); err != nil {
		a.log.Warn("Tracer shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	a.db.Close()
}
