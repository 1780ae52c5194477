package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ausencias/internal/core"
	"ausencias/internal/records"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Sync states stored in absence_records.sync_status.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
	newID   func() string
}

func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListRecords implements records.Lister. Soft-deleted rows are excluded.
func (r *SQLiteRepository) ListRecords(ctx context.Context) ([]core.AbsenceRecord, error) {
	rows, err := r.queries.ListRecords(ctx)
	if err != nil {
		return nil, records.Fail("list", "", err)
	}
	return toDomainList(ctx, rows), nil
}

// ListMonth returns the live records of a 0-based month.
func (r *SQLiteRepository) ListMonth(ctx context.Context, month, year int) ([]core.AbsenceRecord, error) {
	if err := core.ValidateMonth(month); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListRecordsByMonth(ctx, fmt.Sprintf("%04d-%02d", year, month+1))
	if err != nil {
		return nil, records.Fail("list", "", err)
	}
	return toDomainList(ctx, rows), nil
}

// CreateRecord implements records.Creator. The row starts as pending sync.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.AbsenceRecord) (core.AbsenceRecord, error) {
	if rec.ID == "" {
		rec = rec.WithID(r.newID())
	}
	if err := rec.Validate(); err != nil {
		return core.AbsenceRecord{}, records.Fail("create", rec.ID, err)
	}

	row, err := r.queries.CreateRecord(ctx, CreateRecordParams{
		ID:                        rec.ID,
		Date:                      rec.Date.String(),
		AbsentTeacher:             rec.AbsentTeacher,
		AbsentTeacherSubject:      string(rec.AbsentTeacherSubject),
		ReplacementTeacher:        rec.ReplacementTeacher,
		ReplacementTeacherSubject: string(rec.ReplacementTeacherSubject),
		HoursCovered:              int64(rec.HoursCovered),
		CoverageType:              string(rec.Coverage),
		CreatedAt:                 r.now().UnixMilli(),
	})
	if err != nil {
		return core.AbsenceRecord{}, records.Fail("create", rec.ID, err)
	}

	slog.InfoContext(ctx, "Absence record saved to SQLite",
		"id", row.ID,
		"date", row.Date,
		"absent_teacher", row.AbsentTeacher,
		"hours", row.HoursCovered,
		"coverage", row.CoverageType)

	return toDomain(row)
}

// DeleteRecord implements records.Deleter. The row is soft-deleted so the
// removal can still be propagated to Google Sheets.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id string) error {
	n, err := r.queries.SoftDeleteRecord(ctx, SoftDeleteRecordParams{
		DeletedAt: r.now().UnixMilli(),
		ID:        id,
	})
	if err != nil {
		return records.Fail("delete", id, err)
	}
	if n == 0 {
		return records.Fail("delete", id, records.ErrNotFound)
	}
	slog.InfoContext(ctx, "Absence record soft-deleted", "id", id)
	return nil
}

// StoredRecord is a record together with its sync bookkeeping.
type StoredRecord struct {
	Record     core.AbsenceRecord
	SyncStatus string
	Deleted    bool
	UpdatedAt  time.Time
}

// GetRecord returns a record by id, including soft-deleted ones.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (StoredRecord, error) {
	row, err := r.queries.GetRecord(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRecord{}, records.Fail("get", id, records.ErrNotFound)
	}
	if err != nil {
		return StoredRecord{}, records.Fail("get", id, err)
	}
	rec, err := toDomain(row)
	if err != nil {
		return StoredRecord{}, records.Fail("get", id, err)
	}
	return StoredRecord{
		Record:     rec,
		SyncStatus: row.SyncStatus,
		Deleted:    row.DeletedAt.Valid,
		UpdatedAt:  time.UnixMilli(row.UpdatedAt),
	}, nil
}

// PendingSyncRecord is the minimal data needed to enqueue a sync message.
type PendingSyncRecord struct {
	ID        string
	Deleted   bool
	UpdatedAt time.Time
}

// GetPendingSync returns records not yet mirrored, oldest change first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSyncRecord, error) {
	rows, err := r.queries.GetPendingSyncRecords(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync records: %w", err)
	}

	out := make([]PendingSyncRecord, len(rows))
	for i, row := range rows {
		out[i] = PendingSyncRecord{
			ID:        row.ID,
			Deleted:   row.DeletedAt.Valid,
			UpdatedAt: time.UnixMilli(row.UpdatedAt),
		}
	}
	return out, nil
}

// MarkSynced marks a record as successfully synced
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if err := r.queries.MarkRecordSynced(ctx, id); err != nil {
		return fmt.Errorf("mark record synced: %w", err)
	}
	slog.InfoContext(ctx, "Absence record marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a record as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.queries.MarkRecordSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark record sync error: %w", err)
	}
	slog.WarnContext(ctx, "Absence record marked with sync error", "id", id)
	return nil
}

// SyncCounts returns the number of live records per sync status.
func (r *SQLiteRepository) SyncCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.queries.CountRecordsBySyncStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records by sync status: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.SyncStatus] = row.Count
	}
	return out, nil
}

func toDomain(row AbsenceRecord) (core.AbsenceRecord, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.AbsenceRecord{}, err
	}
	rec := core.AbsenceRecord{
		ID:                        row.ID,
		Date:                      date,
		AbsentTeacher:             row.AbsentTeacher,
		AbsentTeacherSubject:      core.Subject(row.AbsentTeacherSubject),
		ReplacementTeacher:        row.ReplacementTeacher,
		ReplacementTeacherSubject: core.Subject(row.ReplacementTeacherSubject),
		HoursCovered:              int(row.HoursCovered),
		Coverage:                  core.CoverageType(row.CoverageType),
	}
	return rec, rec.Validate()
}

// toDomainList drops rows that no longer validate, e.g. after a subject rename.
func toDomainList(ctx context.Context, rows []AbsenceRecord) []core.AbsenceRecord {
	out := make([]core.AbsenceRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toDomain(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping invalid stored record", "id", row.ID, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}
