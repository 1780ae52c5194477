package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"ausencias/internal/core"
	"ausencias/internal/records"
)

// SeedFile is the optional JSON array of records loaded by NewFromFiles.
const SeedFile = "absences.json"

type Store struct {
	mu    sync.Mutex
	items []core.AbsenceRecord
	newID func() string
}

func New(seed []core.AbsenceRecord) *Store {
	s := &Store{newID: uuid.NewString}
	for _, r := range seed {
		if r.ID == "" {
			r.ID = s.newID()
		}
		s.items = append(s.items, r)
	}
	return s
}

// NewFromFiles loads base/absences.json when present. Invalid entries are
// skipped so a hand-edited seed never blocks startup.
func NewFromFiles(base string) *Store {
	seed, _ := readSeed(filepath.Join(base, SeedFile))
	return New(seed)
}

// ListRecords returns a copy of the stored records in insertion order.
func (s *Store) ListRecords(_ context.Context) ([]core.AbsenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.AbsenceRecord(nil), s.items...), nil
}

// CreateRecord stores the record under a fresh uuid.
func (s *Store) CreateRecord(_ context.Context, r core.AbsenceRecord) (core.AbsenceRecord, error) {
	if err := r.Validate(); err != nil {
		return core.AbsenceRecord{}, records.Fail("create", "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r = r.WithID(s.newID())
	s.items = append(s.items, r)
	return r, nil
}

// DeleteRecord removes the record with the given id.
func (s *Store) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.items {
		if r.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return records.Fail("delete", id, records.ErrNotFound)
}

// Save writes the current records to path as a seed file.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.items, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create seed directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readSeed(path string) ([]core.AbsenceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	out := make([]core.AbsenceRecord, 0, len(raw))
	for _, msg := range raw {
		var r core.AbsenceRecord
		if json.Unmarshal(msg, &r) != nil {
			continue
		}
		if r.Coverage == "" {
			r.Coverage = core.ClassifyCoverage(r.AbsentTeacherSubject, r.ReplacementTeacherSubject)
		}
		if r.Validate() != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
