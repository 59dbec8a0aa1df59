package main

import (
	"context"
	"os"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/sheets"
	gsheet "expensetracker/internal/sheets/google"
	"expensetracker/internal/storage"
	"expensetracker/internal/worker"
)

// sweepInterval is how often budgets are re-checked for lost events.
const sweepInterval = 15 * time.Minute

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	config.LoadEnvFile()

	cfg := config.Load()
	logger := log.Setup(cfg.LogLevel, cfg.LogFormat, log.ComponentWorker)
	logger.Info("Starting notification-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notification worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := worker.SignalContext(context.Background(), logger)
	defer cancel()

	// Spreadsheet export is optional.
	var exporter sheets.Exporter
	if cfg.SheetsExport {
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	set := services.NewSet(services.SetConfig{Store: repo, Logger: logger})
	processor := services.NewSyncProcessor(amqpClient, set.Monitor, exporter, services.DefaultSyncProcessorConfig(), logger)
	sweep := worker.NewBudgetSweepWorker(set.Monitor, sweepInterval, logger)

	if err := worker.RunAll(ctx, processor, sweep); err != nil {
		logger.Error("Notification worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Notification-worker shutdown complete")
}
