package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ausencias/internal/amqp"
	"ausencias/internal/core"
	"ausencias/internal/records"
)

// RecordRepository is the local durable store behind RecordService.
type RecordRepository interface {
	records.Store
	Close() error
}

// SyncPublisher announces record changes to the sync worker.
type SyncPublisher interface {
	PublishRecordSync(ctx context.Context, id string, action amqp.SyncAction) error
	Close() error
}

// RecordService orchestrates record operations across SQLite and AMQP
type RecordService struct {
	storage   RecordRepository
	publisher SyncPublisher
}

// NewRecordService builds the service. publisher may be nil, in which case
// the worker's pending scan is the only sync path.
func NewRecordService(storage RecordRepository, publisher SyncPublisher) *RecordService {
	return &RecordService{
		storage:   storage,
		publisher: publisher,
	}
}

// ListRecords reads straight from local storage.
func (s *RecordService) ListRecords(ctx context.Context) ([]core.AbsenceRecord, error) {
	return s.storage.ListRecords(ctx)
}

// CreateRecord saves a record locally and publishes a sync message
func (s *RecordService) CreateRecord(ctx context.Context, r core.AbsenceRecord) (core.AbsenceRecord, error) {
	saved, err := s.storage.CreateRecord(ctx, r)
	if err != nil {
		return core.AbsenceRecord{}, fmt.Errorf("save record: %w", err)
	}

	if err := s.publish(ctx, saved.ID, amqp.ActionUpsert); err != nil {
		// the row stays pending and is picked up by the worker's pending scan
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", saved.ID, "error", err)
	}

	return saved, nil
}

// DeleteRecord soft deletes a record locally and publishes a delete message
func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	if err := s.storage.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if err := s.publish(ctx, id, amqp.ActionDelete); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", id, "error", err)
	}

	return nil
}

func (s *RecordService) publish(ctx context.Context, id string, action amqp.SyncAction) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message", "id", id, "action", action)
		return nil
	}
	return s.publisher.PublishRecordSync(ctx, id, action)
}

// Close closes both storage and AMQP connections
func (s *RecordService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close record service: %w", err)
	}
	return nil
}
