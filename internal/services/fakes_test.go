package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ausencias/internal/amqp"
	"ausencias/internal/core"
	"ausencias/internal/records"
)

// fakeStore is an in-memory records.Store whose calls can be made to fail.
type fakeStore struct {
	mu        sync.Mutex
	items     []core.AbsenceRecord
	nextID    int
	failList  error
	failWrite error
	closed    bool
	lists     int
}

func (s *fakeStore) ListRecords(ctx context.Context) ([]core.AbsenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.failList != nil {
		return nil, s.failList
	}
	return append([]core.AbsenceRecord(nil), s.items...), nil
}

func (s *fakeStore) CreateRecord(ctx context.Context, r core.AbsenceRecord) (core.AbsenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return core.AbsenceRecord{}, s.failWrite
	}
	s.nextID++
	r = r.WithID(fmt.Sprintf("id-%d", s.nextID))
	s.items = append(s.items, r)
	return r, nil
}

func (s *fakeStore) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	for i, r := range s.items {
		if r.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return records.ErrNotFound
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

type published struct {
	id     string
	action amqp.SyncAction
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []published
	fail   bool
	closed bool
}

func (p *fakePublisher) PublishRecordSync(ctx context.Context, id string, action amqp.SyncAction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.sent = append(p.sent, published{id, action})
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return errors.New("already closed")
}

func draftFor(date string, teacher string, absent, replacement core.Subject, hours int) core.RecordDraft {
	return core.RecordDraft{
		Date:                      core.MustParseDate(date),
		AbsentTeacher:             teacher,
		AbsentTeacherSubject:      absent,
		ReplacementTeacher:        "Reemplazo",
		ReplacementTeacherSubject: replacement,
		HoursCovered:              hours,
	}
}

func mustRecord(d core.RecordDraft, id string) core.AbsenceRecord {
	r, err := core.NewRecord(d)
	if err != nil {
		panic(err)
	}
	return r.WithID(id)
}
