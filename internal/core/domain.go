package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-date format used on every boundary.
const DateLayout = "2006-01-02"

const (
	Covered          CoverageType = "Horas cubiertas"
	AccountedNotDone CoverageType = "Hora contabilizada pero no hecha"
)

type (
	// CoverageType tells whether a substitute taught the same subject.
	CoverageType string

	// Date is a calendar date at midnight UTC.
	Date struct {
		time.Time
	}

	// RecordDraft holds the fields a user supplies for a new absence.
	RecordDraft struct {
		Date                      Date
		AbsentTeacher             string
		AbsentTeacherSubject      Subject
		ReplacementTeacher        string
		ReplacementTeacherSubject Subject
		HoursCovered              int
	}

	// AbsenceRecord is one substitution event. Coverage is set once by
	// NewRecord and travels unchanged through persistence.
	AbsenceRecord struct {
		ID                        string       `json:"id"`
		Date                      Date         `json:"date"`
		AbsentTeacher             string       `json:"absentTeacher"`
		AbsentTeacherSubject      Subject      `json:"absentTeacherSubject"`
		ReplacementTeacher        string       `json:"replacementTeacher"`
		ReplacementTeacherSubject Subject      `json:"replacementTeacherSubject"`
		HoursCovered              int          `json:"hoursCovered"`
		Coverage                  CoverageType `json:"coverageType"`
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidSubject  = errors.New("invalid subject")
	ErrInvalidCoverage = errors.New("invalid coverage type")
	ErrNegativeHours   = errors.New("hours must not be negative")
	ErrEmptyTeacher    = errors.New("empty teacher name")
	ErrInvalidMonth    = errors.New("invalid month")
)

// ValidationError reports an input-contract violation on a single field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Any time-of-day is rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// NextDay returns the date one calendar day later.
func (d Date) NextDay() Date {
	return Date{Time: d.AddDate(0, 0, 1)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (c CoverageType) String() string {
	return string(c)
}

// IsValid returns true for the two known coverage types.
func (c CoverageType) IsValid() bool {
	switch c {
	case Covered, AccountedNotDone:
		return true
	default:
		return false
	}
}

// ParseCoverageType accepts either the stored label or the enum name.
func ParseCoverageType(s string) (CoverageType, error) {
	switch strings.TrimSpace(s) {
	case string(Covered), "COVERED":
		return Covered, nil
	case string(AccountedNotDone), "ACCOUNTED_NOT_DONE":
		return AccountedNotDone, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidCoverage, s)
}

func (d RecordDraft) Validate() error {
	if d.Date.IsZero() {
		return invalid("date", ErrInvalidDate)
	}
	if strings.TrimSpace(d.AbsentTeacher) == "" {
		return invalid("absentTeacher", ErrEmptyTeacher)
	}
	if !d.AbsentTeacherSubject.IsValid() {
		return invalid("absentTeacherSubject", ErrInvalidSubject)
	}
	if strings.TrimSpace(d.ReplacementTeacher) == "" {
		return invalid("replacementTeacher", ErrEmptyTeacher)
	}
	if !d.ReplacementTeacherSubject.IsValid() {
		return invalid("replacementTeacherSubject", ErrInvalidSubject)
	}
	if d.HoursCovered < 0 {
		return invalid("hoursCovered", ErrNegativeHours)
	}
	return nil
}

// Validate checks a record read back from a store.
func (r AbsenceRecord) Validate() error {
	if err := r.Draft().Validate(); err != nil {
		return err
	}
	if !r.Coverage.IsValid() {
		return invalid("coverageType", ErrInvalidCoverage)
	}
	return nil
}

// Draft returns the user-supplied fields of the record.
func (r AbsenceRecord) Draft() RecordDraft {
	return RecordDraft{
		Date:                      r.Date,
		AbsentTeacher:             r.AbsentTeacher,
		AbsentTeacherSubject:      r.AbsentTeacherSubject,
		ReplacementTeacher:        r.ReplacementTeacher,
		ReplacementTeacherSubject: r.ReplacementTeacherSubject,
		HoursCovered:              r.HoursCovered,
	}
}

// WithID returns a copy of the record carrying the id assigned by a store.
func (r AbsenceRecord) WithID(id string) AbsenceRecord {
	r.ID = id
	return r
}

// SortNewestFirst orders records by date descending, keeping the relative
// order of records on the same day.
func SortNewestFirst(records []AbsenceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date.Time)
	})
}
