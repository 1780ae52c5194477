package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"ausencias/internal/core"
)

// Header is the first row of the records sheet.
var Header = []string{"ID", "Fecha", "Docente ausente", "Asignatura", "Reemplazante", "Asignatura reemplazo", "Horas", "Tipo"}

// reportBlockWidth is the number of columns used by one month of the
// consolidated sheet: three data columns and one spacer.
const reportBlockWidth = 4

// recordRow converts a record to the A:H layout of the records sheet.
func recordRow(r core.AbsenceRecord) []any {
	return []any{
		r.ID,
		r.Date.String(),
		r.AbsentTeacher,
		string(r.AbsentTeacherSubject),
		r.ReplacementTeacher,
		string(r.ReplacementTeacherSubject),
		r.HoursCovered,
		string(r.Coverage),
	}
}

// parseRecordRows converts a values matrix into records, skipping the header
// row, blank rows and rows that fail to parse. It returns the number of
// non-blank rows skipped.
func parseRecordRows(values [][]any) ([]core.AbsenceRecord, int) {
	out := make([]core.AbsenceRecord, 0, len(values))
	skipped := 0
	for i, raw := range values {
		cols := toStrings(raw)
		if isBlank(cols) {
			continue
		}
		if i == 0 && isHeader(cols) {
			continue
		}
		r, err := parseRecordRow(cols)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, r)
	}
	return out, skipped
}

func parseRecordRow(cols []string) (core.AbsenceRecord, error) {
	if len(cols) < len(Header) {
		return core.AbsenceRecord{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(cols))
	}
	date, err := core.ParseDate(cols[1])
	if err != nil {
		return core.AbsenceRecord{}, err
	}
	absentSubject, err := core.ParseSubject(cols[3])
	if err != nil {
		return core.AbsenceRecord{}, err
	}
	replacementSubject, err := core.ParseSubject(cols[5])
	if err != nil {
		return core.AbsenceRecord{}, err
	}
	hours, err := parseHours(cols[6])
	if err != nil {
		return core.AbsenceRecord{}, err
	}
	coverage, err := core.ParseCoverageType(cols[7])
	if err != nil {
		return core.AbsenceRecord{}, err
	}

	r := core.AbsenceRecord{
		ID:                        cols[0],
		Date:                      date,
		AbsentTeacher:             cols[2],
		AbsentTeacherSubject:      absentSubject,
		ReplacementTeacher:        cols[4],
		ReplacementTeacherSubject: replacementSubject,
		HoursCovered:              hours,
		Coverage:                  coverage,
	}
	if r.ID == "" {
		return core.AbsenceRecord{}, fmt.Errorf("row without id")
	}
	return r, r.Validate()
}

// parseHours accepts whole numbers, including "2.0" and "2,0" as rendered by
// locales with a decimal comma.
func parseHours(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid hours %q", s)
	}
	return int(f), nil
}

// findRowIndex returns the zero-based row index whose first cell equals id,
// or -1.
func findRowIndex(values [][]any, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

// buildReportRows lays out a consolidated month as a three-column table.
func buildReportRows(data core.MonthlyConsolidatedData) [][]any {
	g := data.GlobalTotals
	rows := [][]any{
		{strings.ToUpper(data.Label()), "", ""},
		{"Total ausencias", g.TotalAbsencesEvents, ""},
		{"Total horas", g.TotalHours, ""},
		{"Horas cubiertas", g.TotalCoveredHours, ""},
		{"Horas contabilizadas", g.TotalAccountedHours, ""},
		{"", "", ""},
		{"Ausencias por docente", "Cantidad", ""},
	}
	for _, nc := range data.TeacherAbsences() {
		rows = append(rows, []any{nc.Name, nc.Count, ""})
	}
	rows = append(rows, []any{"", "", ""}, []any{"Ausencias por asignatura", "Cantidad", ""})
	for _, nc := range data.SubjectAbsences() {
		rows = append(rows, []any{nc.Name, nc.Count, ""})
	}
	rows = append(rows, []any{"", "", ""}, []any{"Reemplazos por docente", "Horas cubiertas", "Horas contabilizadas"})
	for _, ns := range data.ReplacementHours() {
		rows = append(rows, []any{ns.Name, ns.CoveredHours, ns.AccountedHours})
	}
	rows = append(rows, []any{"", "", ""}, []any{"Cobertura por asignatura", "Horas cubiertas", "Horas contabilizadas"})
	for _, ns := range data.SubjectCoverage() {
		rows = append(rows, []any{ns.Name, ns.CoveredHours, ns.AccountedHours})
	}
	return rows
}

// reportColumns returns the first and last column letters of a month block.
func reportColumns(month int) (string, string) {
	start := month * reportBlockWidth
	return columnName(start), columnName(start + 2)
}

// columnName converts a zero-based column index to A1 letters (0 -> A, 26 -> AA).
func columnName(idx int) string {
	name := ""
	for idx >= 0 {
		name = string(rune('A'+idx%26)) + name
		idx = idx/26 - 1
	}
	return name
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}

func isHeader(cols []string) bool {
	return strings.EqualFold(cols[0], Header[0]) && len(cols) > 1 && strings.EqualFold(cols[1], Header[1])
}
