package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ausencias/internal/core"
	"ausencias/internal/records"
)

func record(t *testing.T, date string, hours int) core.AbsenceRecord {
	t.Helper()
	r, err := core.NewRecord(core.RecordDraft{
		Date:                      core.MustParseDate(date),
		AbsentTeacher:             "Ana",
		AbsentTeacherSubject:      core.Historia,
		ReplacementTeacher:        "Luis",
		ReplacementTeacherSubject: core.Historia,
		HoursCovered:              hours,
	})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return r
}

func TestMemoryStoreCreateListDelete(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	a, err := s.CreateRecord(ctx, record(t, "2024-03-05", 2))
	if err != nil || a.ID == "" {
		t.Fatalf("unexpected create: %+v err=%v", a, err)
	}
	b, err := s.CreateRecord(ctx, record(t, "2024-03-06", 1))
	if err != nil || b.ID == a.ID {
		t.Fatalf("expected distinct ids, got %q and %q (%v)", a.ID, b.ID, err)
	}

	list, err := s.ListRecords(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("unexpected list: %v err=%v", list, err)
	}
	list[0].AbsentTeacher = "mutated"
	again, _ := s.ListRecords(ctx)
	if again[0].AbsentTeacher != "Ana" {
		t.Fatal("ListRecords must return a copy")
	}

	if err := s.DeleteRecord(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = s.ListRecords(ctx)
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("unexpected list after delete: %v", list)
	}
}

func TestMemoryStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	err := s.DeleteRecord(ctx, "missing")
	var perr *records.PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected not-found persistence error, got %v", err)
	}
	if perr.Op != "delete" || perr.ID != "missing" {
		t.Fatalf("unexpected error detail: %+v", perr)
	}

	_, err = s.CreateRecord(ctx, core.AbsenceRecord{})
	if !errors.As(err, &perr) {
		t.Fatalf("expected persistence error for invalid record, got %v", err)
	}
	list, _ := s.ListRecords(ctx)
	if len(list) != 0 {
		t.Fatalf("failed create must not store anything: %v", list)
	}
}

func TestNewFromFilesSeed(t *testing.T) {
	dir := t.TempDir()

	// No file -> empty store
	s := NewFromFiles(dir)
	if list, _ := s.ListRecords(context.Background()); len(list) != 0 {
		t.Fatalf("expected empty store, got %v", list)
	}

	seed := `[
  {"id":"r1","date":"2024-03-05","absentTeacher":"Ana","absentTeacherSubject":"Historia",
   "replacementTeacher":"Luis","replacementTeacherSubject":"Inglés","hoursCovered":2,"coverageType":"Horas cubiertas"},
  {"date":"2024-03-06","absentTeacher":"Ana","absentTeacherSubject":"Historia",
   "replacementTeacher":"Luis","replacementTeacherSubject":"Inglés","hoursCovered":1},
  {"id":"bad","date":"06/03/2024","absentTeacher":"Ana"},
  {"id":"bad2","date":"2024-03-07","absentTeacher":"Ana","absentTeacherSubject":"Latín",
   "replacementTeacher":"Luis","replacementTeacherSubject":"Inglés","hoursCovered":1}
]`
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s = NewFromFiles(dir)
	list, _ := s.ListRecords(context.Background())
	if len(list) != 2 {
		t.Fatalf("expected two valid records, got %d: %v", len(list), list)
	}
	if list[0].ID != "r1" || list[0].Coverage != core.Covered {
		t.Fatalf("stored coverage must be kept as-is: %+v", list[0])
	}
	if list[1].ID == "" || list[1].Coverage != core.AccountedNotDone {
		t.Fatalf("missing id/coverage should be filled in: %+v", list[1])
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(nil)
	if _, err := s.CreateRecord(context.Background(), record(t, "2024-05-02", 3)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Save(filepath.Join(dir, SeedFile)); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded, _ := NewFromFiles(dir).ListRecords(context.Background())
	original, _ := s.ListRecords(context.Background())
	if len(reloaded) != 1 || reloaded[0] != original[0] {
		t.Fatalf("round trip mismatch: %+v vs %+v", reloaded, original)
	}
}
