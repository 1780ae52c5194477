package core

import (
	"iter"
	"strings"
)

// Filters is the transient query state of the record list. An empty field
// places no constraint on its dimension.
type Filters struct {
	SearchTerm                string  `json:"searchTerm"`
	DateFrom                  string  `json:"dateFrom"`
	DateTo                    string  `json:"dateTo"`
	AbsentTeacherSubject      Subject `json:"absentTeacherSubject"`
	ReplacementTeacherSubject Subject `json:"replacementTeacherSubject"`
}

// Matcher is a compiled filter set. The zero value matches everything.
type Matcher struct {
	from        Date
	until       Date // exclusive: the day after DateTo
	absent      Subject
	replacement Subject
	term        string
}

// IsEmpty reports whether no field constrains the result.
func (f Filters) IsEmpty() bool {
	return strings.TrimSpace(f.SearchTerm) == "" &&
		strings.TrimSpace(f.DateFrom) == "" &&
		strings.TrimSpace(f.DateTo) == "" &&
		f.AbsentTeacherSubject == "" &&
		f.ReplacementTeacherSubject == ""
}

// Compile parses the date bounds and normalizes the search term once.
func (f Filters) Compile() (Matcher, error) {
	var m Matcher
	if s := strings.TrimSpace(f.DateFrom); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return Matcher{}, invalid("dateFrom", err)
		}
		m.from = d
	}
	if s := strings.TrimSpace(f.DateTo); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return Matcher{}, invalid("dateTo", err)
		}
		m.until = d.NextDay()
	}
	if f.AbsentTeacherSubject != "" && !f.AbsentTeacherSubject.IsValid() {
		return Matcher{}, invalid("absentTeacherSubject", ErrInvalidSubject)
	}
	if f.ReplacementTeacherSubject != "" && !f.ReplacementTeacherSubject.IsValid() {
		return Matcher{}, invalid("replacementTeacherSubject", ErrInvalidSubject)
	}
	m.absent = f.AbsentTeacherSubject
	m.replacement = f.ReplacementTeacherSubject
	m.term = strings.ToLower(strings.TrimSpace(f.SearchTerm))
	return m, nil
}

// Matches reports whether r satisfies every constraint of the matcher.
func (m Matcher) Matches(r AbsenceRecord) bool {
	if !m.from.IsZero() && r.Date.Before(m.from.Time) {
		return false
	}
	if !m.until.IsZero() && !r.Date.Before(m.until.Time) {
		return false
	}
	if m.absent != "" && r.AbsentTeacherSubject != m.absent {
		return false
	}
	if m.replacement != "" && r.ReplacementTeacherSubject != m.replacement {
		return false
	}
	if m.term == "" {
		return true
	}
	return containsFold(r.AbsentTeacher, m.term) ||
		containsFold(r.ReplacementTeacher, m.term) ||
		containsFold(string(r.AbsentTeacherSubject), m.term) ||
		containsFold(string(r.ReplacementTeacherSubject), m.term)
}

func containsFold(s, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(s), lowerTerm)
}

// MatchesFilters reports whether a single record passes the filter set.
func MatchesFilters(r AbsenceRecord, f Filters) (bool, error) {
	m, err := f.Compile()
	if err != nil {
		return false, err
	}
	return m.Matches(r), nil
}

// FilterAll returns the order-preserving subsequence of records that pass f.
// The input slice is never modified.
func FilterAll(records []AbsenceRecord, f Filters) ([]AbsenceRecord, error) {
	m, err := f.Compile()
	if err != nil {
		return nil, err
	}
	out := make([]AbsenceRecord, 0, len(records))
	for r := range Filtered(records, m) {
		out = append(out, r)
	}
	return out, nil
}

// Filtered yields the records accepted by m. The sequence can be ranged
// over any number of times.
func Filtered(records []AbsenceRecord, m Matcher) iter.Seq[AbsenceRecord] {
	return func(yield func(AbsenceRecord) bool) {
		for _, r := range records {
			if !m.Matches(r) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}
