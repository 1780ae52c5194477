package services

import (
	"context"
	"time"

	applog "ausencias/internal/log"
)

// PendingSyncer mirrors records whose sync messages were lost.
type PendingSyncer interface {
	StartupSyncCheck(ctx context.Context) (synced, failed int, err error)
	ProcessPending(ctx context.Context) (synced, failed int, err error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending records (default: 30s)
	PollInterval time.Duration
	Logger       *applog.Logger
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
	}
}

// SyncProcessor periodically drives a PendingSyncer so that rows left
// pending in SQLite reach Google Sheets even without AMQP.
type SyncProcessor struct {
	syncer   PendingSyncer
	interval time.Duration
	logger   *applog.Logger
}

func NewSyncProcessor(syncer PendingSyncer, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.Logger == nil {
		config.Logger = applog.New(applog.DefaultConfig())
	}
	return &SyncProcessor{
		syncer:   syncer,
		interval: config.PollInterval,
		logger:   config.Logger.WithComponent(applog.ComponentWorker),
	}
}

// Run syncs a startup backlog, then one batch per poll interval, until ctx
// is done. Batch failures are logged and retried on the next tick; only
// cancellation ends the loop, and Run then returns ctx.Err().
func (p *SyncProcessor) Run(ctx context.Context) error {
	sl := applog.NewStructuredLogger(p.logger)
	p.logger.InfoContext(ctx, "Sync processor started", "poll_interval", p.interval.String())

	p.pass(ctx, sl, "Startup sync check failed", p.syncer.StartupSyncCheck)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Sync processor stopped")
			return ctx.Err()
		case <-ticker.C:
			p.pass(ctx, sl, "Failed to process pending records", p.syncer.ProcessPending)
		}
	}
}

func (p *SyncProcessor) pass(ctx context.Context, sl *applog.StructuredLogger, failMsg string, fn func(context.Context) (int, int, error)) {
	synced, failed, err := fn(ctx)
	if err != nil {
		if ctx.Err() == nil {
			sl.LogError(ctx, failMsg, err, applog.ComponentWorker, applog.OpSync, nil)
		}
		return
	}
	sl.LogSyncBatch(ctx, synced, failed)
}
