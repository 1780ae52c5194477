package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ausencias/internal/backend"
	"ausencias/internal/cache"
	"ausencias/internal/cli"
	"ausencias/internal/config"
	"ausencias/internal/core"
	apphttp "ausencias/internal/http"
	applog "ausencias/internal/log"
	"ausencias/internal/services"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLoggerLevel(cfg.LogLevel)
	appLogger := cli.AppLogger(logger, cfg.LogLevel, applog.ComponentApp)

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, logger, appLogger, cfg); err != nil {
		logger.Error("Server stopped with error", "error", err, "port", cfg.Port)
		stop()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, logger *slog.Logger, appLogger *applog.Logger, cfg *config.Config) error {
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

	reportCache := cache.NewLRUCache[core.MonthlyConsolidatedData](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager(appLogger)
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(cfg.ReportCacheTTL)
	defer cacheManager.Stop()

	register := services.NewRegister(result.Backend, reportCache, appLogger)
	if err := register.Load(ctx); err != nil {
		return fmt.Errorf("load absence records: %w", err)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Register:           register,
		Reports:            result.Reports,
		Ready:              result.Ready,
		ReportCache:        reportCache,
		Logger:             appLogger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	logger.Info("Starting ausencias server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"records", register.Len(),
		"report_export", result.Reports != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
