package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"ausencias/internal/amqp"
	"ausencias/internal/backend"
	"ausencias/internal/cli"
	applog "ausencias/internal/log"
	"ausencias/internal/services"
	"ausencias/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLoggerLevel(cfg.LogLevel)
	appLogger := cli.AppLogger(logger, cfg.LogLevel, applog.ComponentWorker)

	logger.Info("Starting ausencias-worker")

	if !cfg.HasSheets() {
		logger.Error("Google Sheets is not configured; set GOOGLE_SPREADSHEET_ID and service account credentials")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	// Local records are read from SQLite and mirrored to Sheets
	sqliteRepo := cli.InitSQLite(ctx, logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	sheetsClient, err := backend.NewSheetsClient(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	syncWorker := worker.NewSyncWorker(sqliteRepo, sheetsClient, cfg.SyncBatchSize)
	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		Logger:       appLogger,
	})

	g, gctx := errgroup.WithContext(ctx)

	// Periodic sync picks up anything the broker missed, including the startup backlog
	g.Go(func() error {
		return processor.Run(gctx)
	})

	if cfg.HasAMQP() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeRecordSync(gctx, syncWorker.HandleSyncMessage)
		})
		logger.Info("Consuming record sync messages", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - relying on periodic sync only", "interval", cfg.SyncInterval.String())
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
