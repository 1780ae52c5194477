package core

import (
	"fmt"
	"sort"
)

// HoursSplit separates substituted hours from hours only accounted for.
type HoursSplit struct {
	CoveredHours   int `json:"coveredHours"`
	AccountedHours int `json:"accountedHours"`
}

// GlobalTotals are the month-wide figures of a report.
type GlobalTotals struct {
	TotalAbsencesEvents int `json:"totalAbsencesEvents"`
	TotalHours          int `json:"totalHours"`
	TotalCoveredHours   int `json:"totalCoveredHours"`
	TotalAccountedHours int `json:"totalAccountedHours"`
}

// MonthlyConsolidatedData is the report for one calendar month. Month is
// zero-based (0 = January).
type MonthlyConsolidatedData struct {
	Month                     int                    `json:"month"`
	Year                      int                    `json:"year"`
	AbsencesByTeacher         map[string]int         `json:"absencesByTeacher"`
	AbsencesBySubject         map[Subject]int        `json:"absencesBySubject"`
	ReplacementsByTeacher     map[string]HoursSplit  `json:"replacementsByTeacher"`
	CoverageByOriginalSubject map[Subject]HoursSplit `json:"coverageByOriginalSubject"`
	GlobalTotals              GlobalTotals           `json:"globalTotals"`
	RecordsInMonth            []AbsenceRecord        `json:"recordsInMonth"`
}

var monthNames = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// MonthName returns the Spanish name of a zero-based month.
func MonthName(month int) string {
	if month < 0 || month > 11 {
		return ""
	}
	return monthNames[month]
}

// ValidateMonth checks a zero-based month index.
func ValidateMonth(month int) error {
	if month < 0 || month > 11 {
		return invalid("month", fmt.Errorf("%w %d: must be between 0 and 11", ErrInvalidMonth, month))
	}
	return nil
}

// InMonth reports whether r falls in the zero-based month of year.
func InMonth(r AbsenceRecord, month, year int) bool {
	return r.Date.Year() == year && int(r.Date.Month())-1 == month
}

// ConsolidateMonth aggregates the records dated in (month, year). The result
// does not depend on the order of records.
func ConsolidateMonth(records []AbsenceRecord, month, year int) MonthlyConsolidatedData {
	data := MonthlyConsolidatedData{
		Month:                     month,
		Year:                      year,
		AbsencesByTeacher:         map[string]int{},
		AbsencesBySubject:         map[Subject]int{},
		ReplacementsByTeacher:     map[string]HoursSplit{},
		CoverageByOriginalSubject: map[Subject]HoursSplit{},
		RecordsInMonth:            []AbsenceRecord{},
	}

	for _, r := range records {
		if !InMonth(r, month, year) {
			continue
		}
		data.RecordsInMonth = append(data.RecordsInMonth, r)

		data.AbsencesByTeacher[r.AbsentTeacher]++
		data.AbsencesBySubject[r.AbsentTeacherSubject]++

		// Missing keys read as a zero split.
		byTeacher := data.ReplacementsByTeacher[r.ReplacementTeacher]
		bySubject := data.CoverageByOriginalSubject[r.AbsentTeacherSubject]
		if r.Coverage == Covered {
			byTeacher.CoveredHours += r.HoursCovered
			bySubject.CoveredHours += r.HoursCovered
			data.GlobalTotals.TotalCoveredHours += r.HoursCovered
		} else {
			byTeacher.AccountedHours += r.HoursCovered
			bySubject.AccountedHours += r.HoursCovered
			data.GlobalTotals.TotalAccountedHours += r.HoursCovered
		}
		data.ReplacementsByTeacher[r.ReplacementTeacher] = byTeacher
		data.CoverageByOriginalSubject[r.AbsentTeacherSubject] = bySubject

		data.GlobalTotals.TotalAbsencesEvents++
		data.GlobalTotals.TotalHours += r.HoursCovered
	}

	return data
}

// Label returns e.g. "marzo 2024".
func (d MonthlyConsolidatedData) Label() string {
	return fmt.Sprintf("%s %d", MonthName(d.Month), d.Year)
}

// IsEmpty reports whether no record fell in the month.
func (d MonthlyConsolidatedData) IsEmpty() bool {
	return d.GlobalTotals.TotalAbsencesEvents == 0
}

// NamedCount is a map entry of a report in a stable order.
type NamedCount struct {
	Name  string
	Count int
}

// NamedSplit is a map entry of a report in a stable order.
type NamedSplit struct {
	Name string
	HoursSplit
}

// TeacherAbsences lists absences per teacher, most absences first, ties by name.
func (d MonthlyConsolidatedData) TeacherAbsences() []NamedCount {
	out := make([]NamedCount, 0, len(d.AbsencesByTeacher))
	for name, n := range d.AbsencesByTeacher {
		out = append(out, NamedCount{Name: name, Count: n})
	}
	sortCounts(out)
	return out
}

// SubjectAbsences lists absences per absent-teacher subject.
func (d MonthlyConsolidatedData) SubjectAbsences() []NamedCount {
	out := make([]NamedCount, 0, len(d.AbsencesBySubject))
	for s, n := range d.AbsencesBySubject {
		out = append(out, NamedCount{Name: string(s), Count: n})
	}
	sortCounts(out)
	return out
}

// ReplacementHours lists hours per replacement teacher sorted by name.
func (d MonthlyConsolidatedData) ReplacementHours() []NamedSplit {
	out := make([]NamedSplit, 0, len(d.ReplacementsByTeacher))
	for name, split := range d.ReplacementsByTeacher {
		out = append(out, NamedSplit{Name: name, HoursSplit: split})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SubjectCoverage lists hours per original subject in subject display order.
func (d MonthlyConsolidatedData) SubjectCoverage() []NamedSplit {
	out := make([]NamedSplit, 0, len(d.CoverageByOriginalSubject))
	for _, s := range allSubjects {
		if split, ok := d.CoverageByOriginalSubject[s]; ok {
			out = append(out, NamedSplit{Name: string(s), HoursSplit: split})
		}
	}
	return out
}

func sortCounts(in []NamedCount) {
	sort.Slice(in, func(i, j int) bool {
		if in[i].Count != in[j].Count {
			return in[i].Count > in[j].Count
		}
		return in[i].Name < in[j].Name
	})
}
