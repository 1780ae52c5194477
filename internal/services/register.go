package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"ausencias/internal/cache"
	"ausencias/internal/core"
	applog "ausencias/internal/log"
	"ausencias/internal/records"
)

// Register owns the current record collection. Every mutation goes through
// the store first; the in-memory collection only changes when the store call
// succeeded. Readers get snapshots.
type Register struct {
	store   records.Store
	reports cache.Cache[core.MonthlyConsolidatedData]
	logger  *applog.Logger

	mu      sync.RWMutex
	records []core.AbsenceRecord
}

// NewRegister builds a register over store. reports may be nil to disable
// report caching.
func NewRegister(store records.Store, reports cache.Cache[core.MonthlyConsolidatedData], logger *applog.Logger) *Register {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Register{
		store:   store,
		reports: reports,
		logger:  logger.WithComponent(applog.ComponentRecords),
	}
}

// Load replaces the collection with the store contents.
func (r *Register) Load(ctx context.Context) error {
	list, err := r.store.ListRecords(ctx)
	if err != nil {
		return records.Fail("list", "", err)
	}
	list = slices.Clone(list)
	core.SortNewestFirst(list)

	r.mu.Lock()
	r.records = list
	r.purgeReports()
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Records loaded",
		applog.FieldOperation, applog.OpList,
		applog.FieldCount, len(list))
	return nil
}

// Records returns a copy of the collection, newest first.
func (r *Register) Records() []core.AbsenceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.records)
}

// Len returns the number of records held.
func (r *Register) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Create classifies the draft, persists it and adds it to the collection.
func (r *Register) Create(ctx context.Context, d core.RecordDraft) (core.AbsenceRecord, error) {
	rec, err := core.NewRecord(d)
	if err != nil {
		return core.AbsenceRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	saved, err := r.store.CreateRecord(ctx, rec)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create record",
			applog.FieldOperation, applog.OpCreate,
			applog.FieldError, err)
		return core.AbsenceRecord{}, records.Fail("create", "", err)
	}

	next := make([]core.AbsenceRecord, 0, len(r.records)+1)
	next = append(next, saved)
	next = append(next, r.records...)
	core.SortNewestFirst(next)
	r.records = next
	r.invalidate(saved.Date)

	r.logger.InfoContext(ctx, "Record created", applog.NewFields().
		WithOperation(applog.OpCreate).
		WithRecord(saved.ID, saved.AbsentTeacher, string(saved.AbsentTeacherSubject), saved.HoursCovered, string(saved.Coverage)).
		ToSlice()...)
	return saved, nil
}

// Delete removes a record from the store and then from the collection.
func (r *Register) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DeleteRecord(ctx, id); err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete record",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldRecordID, id,
			applog.FieldError, err)
		return records.Fail("delete", id, err)
	}

	idx := slices.IndexFunc(r.records, func(rec core.AbsenceRecord) bool { return rec.ID == id })
	if idx < 0 {
		// store knew a record we never loaded; the cached months can't be trusted
		r.purgeReports()
	} else {
		date := r.records[idx].Date
		r.records = slices.Delete(r.records, idx, idx+1)
		r.invalidate(date)
	}

	r.logger.InfoContext(ctx, "Record deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldRecordID, id)
	return nil
}

// Filter returns the records matching f, newest first.
func (r *Register) Filter(f core.Filters) ([]core.AbsenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return core.FilterAll(r.records, f)
}

// Consolidate returns the report for a 0-based month. Results are cached
// until the next mutation touching that month. The returned maps are shared
// with the cache and must be treated as read-only.
func (r *Register) Consolidate(month, year int) (core.MonthlyConsolidatedData, error) {
	if err := core.ValidateMonth(month); err != nil {
		return core.MonthlyConsolidatedData{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	key := reportKey(month, year)
	if r.reports != nil {
		if data, ok := r.reports.Get(key); ok {
			return data, nil
		}
	}

	data := core.ConsolidateMonth(r.records, month, year)
	if r.reports != nil {
		r.reports.Set(key, data)
	}
	r.logger.Debug("Month consolidated",
		applog.FieldOperation, applog.OpConsolidate,
		applog.FieldMonth, month,
		applog.FieldYear, year,
		applog.FieldCount, data.GlobalTotals.TotalAbsencesEvents)
	return data, nil
}

func (r *Register) invalidate(d core.Date) {
	if r.reports != nil {
		r.reports.Delete(reportKey(int(d.Month())-1, d.Year()))
	}
}

func (r *Register) purgeReports() {
	if r.reports != nil {
		r.reports.Purge()
	}
}

func reportKey(month, year int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
