package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/auth"
	"expensetracker/internal/cache"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
	"expensetracker/internal/worker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	config.LoadEnvFile()

	cfg := config.Load()
	logger := log.Setup(cfg.LogLevel, cfg.LogFormat, log.ComponentApp)

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

	// Report caches: Redis when several instances share state, LRU otherwise.
	var (
		overviews cache.Cache[core.MonthOverview]
		trends    cache.Cache[[]core.TrendPoint]
	)
	cacheManager := cache.NewManager(logger)
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to initialize Redis client", log.FieldError, err)
			os.Exit(1)
		}
		defer rdb.Close()
		overviews, trends = services.RedisReportCaches(rdb, cfg.CacheTTL, logger)
		logger.Info("Report cache backed by Redis")
	} else {
		lruOverviews := cache.NewLRUCache[core.MonthOverview](500, cfg.CacheTTL)
		lruTrends := cache.NewLRUCache[[]core.TrendPoint](500, cfg.CacheTTL)
		cacheManager.Register(lruOverviews)
		cacheManager.Register(lruTrends)
		cacheManager.StartCleanup(cfg.CacheTTL)
		defer cacheManager.Stop()
		overviews, trends = lruOverviews, lruTrends
	}

	// Expense events feed the notification worker; without AMQP the API
	// checks budgets inline only.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - expense events will not be published")
	}

	set := services.NewSet(services.SetConfig{
		Store:     repo,
		Publisher: publisher,
		Overviews: overviews,
		Trends:    trends,
		Logger:    logger,
	})
	authService := auth.NewService(repo, auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL), logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Auth:          authService,
		Expenses:      set.Expenses,
		Budget:        set.Budget,
		Profile:       set.Profile,
		Recurring:     set.Recurring,
		Reports:       set.Reports,
		Notifications: set.Notifications,
		Ready:         repo,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSOrigins:        cfg.CORSOrigin,
		Version:            version,
	}, logger)

	ctx, cancel := worker.SignalContext(context.Background(), logger)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting expense tracker API", "port", cfg.Port, "version", version, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	<-stopped

	traffic, limits, detection := srv.Metrics()
	logger.Info("Server stopped gracefully",
		"requests", traffic.TotalRequests,
		"failed_requests", traffic.FailedRequests,
		"rate_limit_hits", limits.TotalHits,
		"suspicious_requests", detection.SuspiciousRequests)
}
