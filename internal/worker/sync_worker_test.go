package worker

import (
	"context"
	"errors"
	"testing"

	"ausencias/internal/amqp"
	"ausencias/internal/core"
	"ausencias/internal/records"
	"ausencias/internal/storage"
)

type fakeSource struct {
	rows    map[string]storage.StoredRecord
	order   []string
	getErr  error
	synced  []string
	errored []string
}

func newFakeSource(rows ...storage.StoredRecord) *fakeSource {
	s := &fakeSource{rows: map[string]storage.StoredRecord{}}
	for _, r := range rows {
		s.rows[r.Record.ID] = r
		s.order = append(s.order, r.Record.ID)
	}
	return s
}

func (s *fakeSource) GetRecord(ctx context.Context, id string) (storage.StoredRecord, error) {
	if s.getErr != nil {
		return storage.StoredRecord{}, s.getErr
	}
	r, ok := s.rows[id]
	if !ok {
		return storage.StoredRecord{}, records.Fail("get", id, records.ErrNotFound)
	}
	return r, nil
}

func (s *fakeSource) GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSyncRecord, error) {
	var out []storage.PendingSyncRecord
	for _, id := range s.order {
		r := s.rows[id]
		if r.SyncStatus == storage.SyncSynced {
			continue
		}
		out = append(out, storage.PendingSyncRecord{ID: id, Deleted: r.Deleted})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeSource) MarkSynced(ctx context.Context, id string) error {
	s.synced = append(s.synced, id)
	r := s.rows[id]
	r.SyncStatus = storage.SyncSynced
	s.rows[id] = r
	return nil
}

func (s *fakeSource) MarkSyncError(ctx context.Context, id string) error {
	s.errored = append(s.errored, id)
	r := s.rows[id]
	r.SyncStatus = storage.SyncError
	s.rows[id] = r
	return nil
}

type fakeMirror struct {
	saved     map[string]core.AbsenceRecord
	deleted   []string
	failSave  bool
	deleteErr error
}

func (m *fakeMirror) SaveRecord(ctx context.Context, r core.AbsenceRecord) (string, error) {
	if m.failSave {
		return "", errors.New("quota exceeded")
	}
	if m.saved == nil {
		m.saved = map[string]core.AbsenceRecord{}
	}
	m.saved[r.ID] = r
	return "Ausencias!A2:H2", nil
}

func (m *fakeMirror) DeleteRecord(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.deleteErr
}

func stored(id string, deleted bool) storage.StoredRecord {
	r, err := core.NewRecord(core.RecordDraft{
		Date:                      core.MustParseDate("2024-03-05"),
		AbsentTeacher:             "Ana",
		AbsentTeacherSubject:      core.Historia,
		ReplacementTeacher:        "Luis",
		ReplacementTeacherSubject: core.Historia,
		HoursCovered:              2,
	})
	if err != nil {
		panic(err)
	}
	return storage.StoredRecord{Record: r.WithID(id), SyncStatus: storage.SyncPending, Deleted: deleted}
}

func TestHandleSyncMessageUpsert(t *testing.T) {
	src := newFakeSource(stored("r1", false))
	mirror := &fakeMirror{}
	w := NewSyncWorker(src, mirror, 10)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage("r1", amqp.ActionUpsert)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, ok := mirror.saved["r1"]; !ok {
		t.Fatal("record not saved to mirror")
	}
	if len(src.synced) != 1 || src.synced[0] != "r1" {
		t.Fatalf("expected r1 marked synced, got %v", src.synced)
	}
}

func TestHandleSyncMessageDeletedRow(t *testing.T) {
	src := newFakeSource(stored("r1", true))
	mirror := &fakeMirror{deleteErr: records.Fail("delete", "r1", records.ErrNotFound)}
	w := NewSyncWorker(src, mirror, 10)

	// stale upsert for a row deleted since: the mirror copy is removed
	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage("r1", amqp.ActionUpsert)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mirror.deleted) != 1 || len(mirror.saved) != 0 {
		t.Fatalf("expected delete only, got deleted=%v saved=%v", mirror.deleted, mirror.saved)
	}
	if len(src.synced) != 1 {
		t.Fatal("a row already absent from the mirror counts as synced")
	}
}

func TestHandleSyncMessageFailures(t *testing.T) {
	src := newFakeSource(stored("r1", false))
	w := NewSyncWorker(src, &fakeMirror{failSave: true}, 10)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage("r1", amqp.ActionUpsert)); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if len(src.errored) != 1 {
		t.Fatalf("expected sync error mark, got %v", src.errored)
	}

	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage("ghost", amqp.ActionDelete)); err != nil {
		t.Fatalf("unknown records must be dropped, got %v", err)
	}

	src.getErr = errors.New("database is locked")
	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage("r1", amqp.ActionUpsert)); err == nil {
		t.Fatal("storage errors must be returned")
	}
}

func TestProcessPending(t *testing.T) {
	src := newFakeSource(stored("a", false), stored("b", true), stored("c", false))
	mirror := &fakeMirror{}
	w := NewSyncWorker(src, mirror, 2)

	n, failed, err := w.ProcessPending(context.Background())
	if err != nil || n != 2 || failed != 0 {
		t.Fatalf("expected 2 synced, got %d/%d (%v)", n, failed, err)
	}
	n, _, _ = w.ProcessPending(context.Background())
	if n != 1 {
		t.Fatalf("expected remaining record synced, got %d", n)
	}
	if n, _, _ := w.ProcessPending(context.Background()); n != 0 {
		t.Fatalf("nothing should be left, got %d", n)
	}
	if len(mirror.saved) != 2 || len(mirror.deleted) != 1 {
		t.Fatalf("unexpected mirror state saved=%v deleted=%v", mirror.saved, mirror.deleted)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	src := newFakeSource(stored("a", false), stored("b", false), stored("c", false))
	w := NewSyncWorker(src, &fakeMirror{}, 1)

	synced, failed, err := w.StartupSyncCheck(context.Background())
	if err != nil {
		t.Fatalf("startup: %v", err)
	}
	if synced != 3 || failed != 0 || len(src.synced) != 3 {
		t.Fatalf("startup batch should cover all three, got %d/%d %v", synced, failed, src.synced)
	}
	if synced, _, err := w.StartupSyncCheck(context.Background()); err != nil || synced != 0 {
		t.Fatalf("second startup: %d %v", synced, err)
	}
}

func TestProcessPendingCountsFailures(t *testing.T) {
	src := newFakeSource(stored("a", false), stored("b", false))
	w := NewSyncWorker(src, &fakeMirror{failSave: true}, 10)

	synced, failed, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("per-record failures must not fail the batch: %v", err)
	}
	if synced != 0 || failed != 2 {
		t.Fatalf("expected 0 synced and 2 failed, got %d/%d", synced, failed)
	}
	if len(src.errored) != 2 {
		t.Fatalf("expected both rows marked as errored, got %v", src.errored)
	}
}
