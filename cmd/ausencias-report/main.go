package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ausencias/internal/backend"
	"ausencias/internal/cli"
	"ausencias/internal/config"
	"ausencias/internal/core"
	applog "ausencias/internal/log"
	"ausencias/internal/report"
	"ausencias/internal/services"
)

func main() {
	now := time.Now()
	var (
		month    = int(now.Month()) - 1
		year     = now.Year()
		doExport bool
		asJSON   bool
	)
	flag.IntVar(&month, "month", month, "Month to consolidate, 0 (January) to 11 (December)")
	flag.IntVar(&year, "year", year, "Year to consolidate")
	flag.BoolVar(&doExport, "export", doExport, "Write the report to the configured report sheet")
	flag.BoolVar(&asJSON, "json", asJSON, "Print the report as JSON instead of tables")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLoggerStderr(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLoggerStderr(cfg.LogLevel)
	appLogger := cli.AppLogger(logger, cfg.LogLevel, applog.ComponentReport)

	if err := run(logger, appLogger, cfg, options{month: month, year: year, export: doExport, json: asJSON}); err != nil {
		logger.Error("Report failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	month  int
	year   int
	export bool
	json   bool
}

func run(logger *slog.Logger, appLogger *applog.Logger, cfg *config.Config, opts options) error {
	if err := core.ValidateMonth(opts.month); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid backend configuration: %w", err)
	}
	result, err := backend.NewFactory(appLogger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, backendConfig)
	if err != nil {
		return fmt.Errorf("initialize %s backend: %w", cfg.DataBackend, err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	register := services.NewRegister(result.Backend, nil, appLogger)
	if err := register.Load(ctx); err != nil {
		return fmt.Errorf("load absence records: %w", err)
	}

	data, err := register.Consolidate(opts.month, opts.year)
	if err != nil {
		return err
	}
	logger.Info("Month consolidated", applog.FieldMonth, opts.month, applog.FieldYear, opts.year,
		"summary", report.Summary(data))

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(data)
	} else {
		err = report.WriteText(os.Stdout, data)
	}
	if err != nil {
		return fmt.Errorf("print report: %w", err)
	}

	if !opts.export {
		return nil
	}
	if result.Reports == nil {
		return errors.New("report export requested but no spreadsheet is configured")
	}
	ref, err := result.Reports.WriteMonthlyReport(ctx, data)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	logger.Info("Report exported", applog.FieldReportRef, ref)
	return nil
}
