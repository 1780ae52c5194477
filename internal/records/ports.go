package records

import (
	"context"
	"errors"
	"fmt"

	"ausencias/internal/core"
)

// Ports for outbound adapters.
type (
	// Lister returns every stored absence record.
	Lister interface {
		ListRecords(ctx context.Context) ([]core.AbsenceRecord, error)
	}

	// Creator persists a classified record and returns it with its assigned id.
	Creator interface {
		CreateRecord(ctx context.Context, r core.AbsenceRecord) (core.AbsenceRecord, error)
	}

	// Deleter removes a record wholesale.
	Deleter interface {
		DeleteRecord(ctx context.Context, id string) error
	}

	// Store is the full record source used by the register.
	Store interface {
		Lister
		Creator
		Deleter
	}

	// ReportWriter exports a consolidated month somewhere readable by staff.
	ReportWriter interface {
		WriteMonthlyReport(ctx context.Context, data core.MonthlyConsolidatedData) (ref string, err error)
	}
)

// ErrNotFound is returned when a record id is unknown to the store.
var ErrNotFound = errors.New("record not found")

// PersistenceError wraps any failure of a record store.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("records: %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("records: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Fail wraps err as a PersistenceError unless it already is one.
func Fail(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &PersistenceError{Op: op, ID: id, Err: err}
}
