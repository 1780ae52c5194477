// Package report renders a consolidated month as terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ausencias/internal/core"
)

// Printer renders reports with styles bound to one output.
type Printer struct {
	title  lipgloss.Style
	label  lipgloss.Style
	cell   lipgloss.Style
	header lipgloss.Style
	sum    lipgloss.Style
	faint  lipgloss.Style
}

// NewPrinter picks colours from the terminal capabilities of w. Writers
// that are not terminals get plain text.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	cell := r.NewStyle().Padding(0, 1)
	return &Printer{
		title:  r.NewStyle().Bold(true).Margin(0, 0, 1, 0),
		label:  r.NewStyle().Bold(true).Width(34),
		cell:   cell,
		header: cell.Bold(true),
		sum:    cell.Background(lipgloss.AdaptiveColor{Dark: "235", Light: "250"}).Foreground(lipgloss.AdaptiveColor{Dark: "195", Light: "20"}),
		faint:  r.NewStyle().Faint(true),
	}
}

// WriteText prints d to w with a fresh Printer.
func WriteText(w io.Writer, d core.MonthlyConsolidatedData) error {
	return NewPrinter(w).Write(w, d)
}

// Write prints the title, the month totals and one table per breakdown.
func (p *Printer) Write(w io.Writer, d core.MonthlyConsolidatedData) error {
	var b strings.Builder
	b.WriteString(p.title.Render("Consolidado " + d.Label()))
	b.WriteString("\n")

	if d.IsEmpty() {
		b.WriteString(p.faint.Render("Sin registros para " + d.Label()))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	t := d.GlobalTotals
	for _, line := range [][2]string{
		{"Ausencias registradas", strconv.Itoa(t.TotalAbsencesEvents)},
		{"Horas totales", strconv.Itoa(t.TotalHours)},
		{core.Covered.String(), strconv.Itoa(t.TotalCoveredHours)},
		{core.AccountedNotDone.String(), strconv.Itoa(t.TotalAccountedHours)},
	} {
		b.WriteString(p.label.Render(line[0]) + line[1] + "\n")
	}
	b.WriteString("\n")

	b.WriteString(p.countTable("Docente ausente", d.TeacherAbsences(), t.TotalAbsencesEvents))
	b.WriteString("\n\n")
	b.WriteString(p.countTable("Asignatura", d.SubjectAbsences(), t.TotalAbsencesEvents))
	b.WriteString("\n\n")
	b.WriteString(p.splitTable("Reemplazante", d.ReplacementHours(), t))
	b.WriteString("\n\n")
	b.WriteString(p.splitTable("Asignatura original", d.SubjectCoverage(), t))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (p *Printer) countTable(name string, entries []core.NamedCount, total int) string {
	rows := make([][]string, 0, len(entries)+1)
	for _, e := range entries {
		rows = append(rows, []string{e.Name, strconv.Itoa(e.Count)})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(total)})
	return p.render([]string{name, "Ausencias"}, rows)
}

func (p *Printer) splitTable(name string, entries []core.NamedSplit, t core.GlobalTotals) string {
	rows := make([][]string, 0, len(entries)+1)
	for _, e := range entries {
		rows = append(rows, []string{e.Name, strconv.Itoa(e.CoveredHours), strconv.Itoa(e.AccountedHours)})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(t.TotalCoveredHours), strconv.Itoa(t.TotalAccountedHours)})
	return p.render([]string{name, "Cubiertas", "Contabilizadas"}, rows)
}

// render draws rows under headers; the last row is the sum row.
func (p *Printer) render(headers []string, rows [][]string) string {
	last := len(rows) - 1
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			var s lipgloss.Style
			switch {
			case row == table.HeaderRow:
				s = p.header
			case row == last:
				s = p.sum
			default:
				s = p.cell
			}
			if col > 0 {
				s = s.Align(lipgloss.Right)
			}
			return s
		}).
		String()
}

// Summary is a one-line description of d for logs and export output.
func Summary(d core.MonthlyConsolidatedData) string {
	t := d.GlobalTotals
	return fmt.Sprintf("%s: %d ausencias, %d horas (%d cubiertas, %d contabilizadas)",
		d.Label(), t.TotalAbsencesEvents, t.TotalHours, t.TotalCoveredHours, t.TotalAccountedHours)
}
