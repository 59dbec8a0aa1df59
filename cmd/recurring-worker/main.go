package main

import (
	"context"
	"os"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
	"expensetracker/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	config.LoadEnvFile()

	cfg := config.Load()
	logger := log.Setup(cfg.LogLevel, cfg.LogFormat, log.ComponentWorker)
	logger.Info("Starting recurring-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Materialized expenses are published like API writes so the
	// notification worker sees them.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	} else {
		logger.Info("AMQP disabled - recurring expenses will not be published")
	}

	// Invalidations must reach the API's report cache when it lives in Redis.
	var (
		overviews cache.Cache[core.MonthOverview]
		trends    cache.Cache[[]core.TrendPoint]
	)
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to initialize Redis client", log.FieldError, err)
			os.Exit(1)
		}
		defer rdb.Close()
		overviews, trends = services.RedisReportCaches(rdb, cfg.CacheTTL, logger)
	}

	set := services.NewSet(services.SetConfig{
		Store:     repo,
		Publisher: publisher,
		Overviews: overviews,
		Trends:    trends,
		Logger:    logger,
	})
	recurring := worker.NewRecurringWorker(set.Processor, cfg.RecurringInterval, logger)

	ctx, cancel := worker.SignalContext(context.Background(), logger)
	defer cancel()

	logger.Info("Recurring expense processor configured",
		"interval", cfg.RecurringInterval.String(),
		"db", cfg.SQLiteDBPath)

	if err := worker.RunAll(ctx, recurring); err != nil {
		logger.Error("Recurring worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}
