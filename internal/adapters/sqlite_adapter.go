package adapters

import (
	"context"

	"ausencias/internal/core"
	"ausencias/internal/records"
	"ausencias/internal/services"
	"ausencias/internal/storage"
)

// SQLiteAdapter presents SQLiteRepository and RecordService as a
// records.Store, so the register works unchanged on the SQLite + AMQP backend.
// Reads go to the repository; writes go through the service so they are
// published for sync.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.RecordService
}

var _ records.Store = (*SQLiteAdapter)(nil)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.RecordService) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
	}
}

// ListRecords implements records.Lister
func (a *SQLiteAdapter) ListRecords(ctx context.Context) ([]core.AbsenceRecord, error) {
	return a.storage.ListRecords(ctx)
}

// CreateRecord implements records.Creator
func (a *SQLiteAdapter) CreateRecord(ctx context.Context, r core.AbsenceRecord) (core.AbsenceRecord, error) {
	return a.service.CreateRecord(ctx, r)
}

// DeleteRecord implements records.Deleter
func (a *SQLiteAdapter) DeleteRecord(ctx context.Context, id string) error {
	return a.service.DeleteRecord(ctx, id)
}

// Ping reports whether the local database is reachable.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}

// Close releases the service, which owns both the repository and the AMQP client.
func (a *SQLiteAdapter) Close() error {
	return a.service.Close()
}
