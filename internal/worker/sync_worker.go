package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ausencias/internal/amqp"
	"ausencias/internal/core"
	"ausencias/internal/records"
	"ausencias/internal/storage"
)

// RecordSource is the local side of the sync: where records and their sync
// state live.
type RecordSource interface {
	GetRecord(ctx context.Context, id string) (storage.StoredRecord, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSyncRecord, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// Mirror is the remote copy records are pushed to.
type Mirror interface {
	SaveRecord(ctx context.Context, r core.AbsenceRecord) (string, error)
	DeleteRecord(ctx context.Context, id string) error
}

// SyncWorker mirrors absence records from SQLite to Google Sheets
type SyncWorker struct {
	storage   RecordSource
	mirror    Mirror
	batchSize int
}

func NewSyncWorker(storage RecordSource, mirror Mirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single record sync message from AMQP.
// The stored row decides what happens: a soft-deleted row is removed from
// the mirror even if the message asked for an upsert.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.DebugContext(ctx, "Processing sync message", "id", msg.ID, "action", msg.Action)

	stored, err := w.storage.GetRecord(ctx, msg.ID)
	if errors.Is(err, records.ErrNotFound) {
		// nothing to mirror; acking drops the message
		slog.WarnContext(ctx, "Sync message for unknown record", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	return w.sync(ctx, stored)
}

// ProcessPending syncs one batch of pending records. This is a backup
// mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck syncs a larger batch of pending records at worker start,
// recovering from missed messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) (synced, failed int, err error) {
	synced, failed, err = w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return synced, failed, fmt.Errorf("startup sync check: %w", err)
	}
	return synced, failed, nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.storage.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending records: %w", err)
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}

		stored, err := w.storage.GetRecord(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get record", "id", p.ID, "error", err)
			w.markError(ctx, p.ID)
			failed++
			continue
		}
		if err := w.sync(ctx, stored); err != nil {
			slog.ErrorContext(ctx, "Failed to sync record", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) sync(ctx context.Context, stored storage.StoredRecord) error {
	id := stored.Record.ID

	if stored.Deleted {
		err := w.mirror.DeleteRecord(ctx, id)
		if err != nil && !errors.Is(err, records.ErrNotFound) {
			w.markError(ctx, id)
			return fmt.Errorf("delete from sheets: %w", err)
		}
		w.markSynced(ctx, id)
		slog.InfoContext(ctx, "Record removed from sheets", "id", id)
		return nil
	}

	ref, err := w.mirror.SaveRecord(ctx, stored.Record)
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("save to sheets: %w", err)
	}
	w.markSynced(ctx, id)

	slog.InfoContext(ctx, "Record synced to sheets",
		"id", id,
		"sheets_ref", ref,
		"date", stored.Record.Date.String(),
		"hours", stored.Record.HoursCovered)
	return nil
}

func (w *SyncWorker) markSynced(ctx context.Context, id string) {
	// the mirror already has the change; a failure here only causes a resync
	if err := w.storage.MarkSynced(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}
}

func (w *SyncWorker) markError(ctx context.Context, id string) {
	if err := w.storage.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", err)
	}
}
