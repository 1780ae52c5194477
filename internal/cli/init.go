// Package cli holds the start-up steps shared by cmd/ausencias,
// cmd/ausencias-worker and cmd/ausencias-report.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ausencias/internal/config"
	applog "ausencias/internal/log"
	"ausencias/internal/storage"
)

// SetupLogger installs a stdout text logger at the LOG_LEVEL from the
// environment as the slog default.
func SetupLogger() *slog.Logger {
	return SetupLoggerLevel(os.Getenv("LOG_LEVEL"))
}

// SetupLoggerLevel is SetupLogger with an explicit level name.
func SetupLoggerLevel(level string) *slog.Logger {
	return setupLogger(os.Stdout, level)
}

// SetupLoggerStderr logs to stderr, leaving stdout to command output.
func SetupLoggerStderr(level string) *slog.Logger {
	return setupLogger(os.Stderr, level)
}

func setupLogger(w io.Writer, level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: applog.ParseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

// AppLogger wraps base with the component field of the calling binary.
func AppLogger(base *slog.Logger, level, component string) *applog.Logger {
	return applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Component: component,
		Handler:   base.Handler(),
	})
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process when it
// does not validate.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens and migrates the SQLite database at dbPath, exiting the
// process on failure.
func InitSQLite(ctx context.Context, logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(ctx, dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
