package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// AbsenceRecord is a row of absence_records. Timestamps are unix milliseconds.
type AbsenceRecord struct {
	ID                        string
	Date                      string
	AbsentTeacher             string
	AbsentTeacherSubject      string
	ReplacementTeacher        string
	ReplacementTeacherSubject string
	HoursCovered              int64
	CoverageType              string
	SyncStatus                string
	CreatedAt                 int64
	UpdatedAt                 int64
	DeletedAt                 sql.NullInt64
}

const recordColumns = `id, date, absent_teacher, absent_teacher_subject, replacement_teacher,
    replacement_teacher_subject, hours_covered, coverage_type, sync_status, created_at, updated_at, deleted_at`

func scanRecord(row interface{ Scan(...interface{}) error }) (AbsenceRecord, error) {
	var i AbsenceRecord
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.AbsentTeacher,
		&i.AbsentTeacherSubject,
		&i.ReplacementTeacher,
		&i.ReplacementTeacherSubject,
		&i.HoursCovered,
		&i.CoverageType,
		&i.SyncStatus,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.DeletedAt,
	)
	return i, err
}

const createRecord = `INSERT INTO absence_records (
    id, date, absent_teacher, absent_teacher_subject, replacement_teacher,
    replacement_teacher_subject, hours_covered, coverage_type, sync_status, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
RETURNING ` + recordColumns

type CreateRecordParams struct {
	ID                        string
	Date                      string
	AbsentTeacher             string
	AbsentTeacherSubject      string
	ReplacementTeacher        string
	ReplacementTeacherSubject string
	HoursCovered              int64
	CoverageType              string
	CreatedAt                 int64
}

func (q *Queries) CreateRecord(ctx context.Context, arg CreateRecordParams) (AbsenceRecord, error) {
	row := q.db.QueryRowContext(ctx, createRecord,
		arg.ID,
		arg.Date,
		arg.AbsentTeacher,
		arg.AbsentTeacherSubject,
		arg.ReplacementTeacher,
		arg.ReplacementTeacherSubject,
		arg.HoursCovered,
		arg.CoverageType,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return scanRecord(row)
}

const getRecord = `SELECT ` + recordColumns + ` FROM absence_records WHERE id = ?`

// GetRecord returns the row including soft-deleted ones.
func (q *Queries) GetRecord(ctx context.Context, id string) (AbsenceRecord, error) {
	row := q.db.QueryRowContext(ctx, getRecord, id)
	return scanRecord(row)
}

const listRecords = `SELECT ` + recordColumns + ` FROM absence_records
WHERE deleted_at IS NULL
ORDER BY date DESC, created_at DESC`

func (q *Queries) ListRecords(ctx context.Context) ([]AbsenceRecord, error) {
	rows, err := q.db.QueryContext(ctx, listRecords)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

const listRecordsByMonth = `SELECT ` + recordColumns + ` FROM absence_records
WHERE deleted_at IS NULL AND substr(date, 1, 7) = ?
ORDER BY date DESC, created_at DESC`

// ListRecordsByMonth takes a "YYYY-MM" prefix.
func (q *Queries) ListRecordsByMonth(ctx context.Context, yearMonth string) ([]AbsenceRecord, error) {
	rows, err := q.db.QueryContext(ctx, listRecordsByMonth, yearMonth)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]AbsenceRecord, error) {
	defer rows.Close()
	var items []AbsenceRecord
	for rows.Next() {
		i, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const softDeleteRecord = `UPDATE absence_records
SET deleted_at = ?, updated_at = ?, sync_status = 'pending'
WHERE id = ? AND deleted_at IS NULL`

type SoftDeleteRecordParams struct {
	DeletedAt int64
	ID        string
}

func (q *Queries) SoftDeleteRecord(ctx context.Context, arg SoftDeleteRecordParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, softDeleteRecord, arg.DeletedAt, arg.DeletedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getPendingSyncRecords = `SELECT id, updated_at, deleted_at FROM absence_records
WHERE sync_status IN ('pending', 'error')
ORDER BY updated_at ASC
LIMIT ?`

type GetPendingSyncRecordsRow struct {
	ID        string
	UpdatedAt int64
	DeletedAt sql.NullInt64
}

func (q *Queries) GetPendingSyncRecords(ctx context.Context, limit int64) ([]GetPendingSyncRecordsRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncRecords, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPendingSyncRecordsRow
	for rows.Next() {
		var i GetPendingSyncRecordsRow
		if err := rows.Scan(&i.ID, &i.UpdatedAt, &i.DeletedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markRecordSynced = `UPDATE absence_records SET sync_status = 'synced' WHERE id = ?`

func (q *Queries) MarkRecordSynced(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markRecordSynced, id)
	return err
}

const markRecordSyncError = `UPDATE absence_records SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkRecordSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markRecordSyncError, id)
	return err
}

const countRecordsBySyncStatus = `SELECT sync_status, COUNT(*) FROM absence_records
WHERE deleted_at IS NULL
GROUP BY sync_status`

type CountRecordsBySyncStatusRow struct {
	SyncStatus string
	Count      int64
}

func (q *Queries) CountRecordsBySyncStatus(ctx context.Context) ([]CountRecordsBySyncStatusRow, error) {
	rows, err := q.db.QueryContext(ctx, countRecordsBySyncStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountRecordsBySyncStatusRow
	for rows.Next() {
		var i CountRecordsBySyncStatusRow
		if err := rows.Scan(&i.SyncStatus, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
