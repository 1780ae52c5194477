package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"ausencias/internal/core"
)

func record(t *testing.T, date, absent string, as core.Subject, repl string, rs core.Subject, hours int) core.AbsenceRecord {
	t.Helper()
	r, err := core.NewRecord(core.RecordDraft{
		Date:                      core.MustParseDate(date),
		AbsentTeacher:             absent,
		AbsentTeacherSubject:      as,
		ReplacementTeacher:        repl,
		ReplacementTeacherSubject: rs,
		HoursCovered:              hours,
	})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return r
}

func TestWriteTextListsEveryBreakdown(t *testing.T) {
	data := core.ConsolidateMonth([]core.AbsenceRecord{
		record(t, "2024-03-05", "Ana", core.Matematica, "Pedro", core.Matematica, 2),
		record(t, "2024-03-10", "Luis", core.Historia, "Marta", core.Ingles, 3),
	}, 2, 2024)

	var buf bytes.Buffer
	if err := WriteText(&buf, data); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Consolidado marzo 2024",
		"Ausencias registradas",
		"Horas cubiertas",
		"Hora contabilizada pero no hecha",
		"Docente ausente", "Ana", "Luis",
		"Asignatura", "Matemática", "Historia",
		"Reemplazante", "Pedro", "Marta",
		"Asignatura original",
		"Cubiertas", "Contabilizadas", "Total",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Sin registros") {
		t.Errorf("non-empty month printed the empty notice:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected plain output for a non-terminal writer:\n%s", out)
	}
}

func TestWriteTextEmptyMonth(t *testing.T) {
	data := core.ConsolidateMonth(nil, 0, 2025)

	var buf bytes.Buffer
	if err := WriteText(&buf, data); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Sin registros para enero 2025") {
		t.Fatalf("missing empty notice:\n%s", out)
	}
	if strings.Contains(out, "Reemplazante") {
		t.Fatalf("empty month should not draw tables:\n%s", out)
	}
}

func TestSummary(t *testing.T) {
	data := core.ConsolidateMonth([]core.AbsenceRecord{
		record(t, "2024-03-05", "Ana", core.Matematica, "Pedro", core.Matematica, 2),
		record(t, "2024-03-10", "Luis", core.Historia, "Marta", core.Ingles, 3),
	}, 2, 2024)

	want := "marzo 2024: 2 ausencias, 5 horas (2 cubiertas, 3 contabilizadas)"
	if got := Summary(data); got != want {
		t.Fatalf("Summary = %q, want %q", got, want)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

var errWrite = errors.New("write failed")

func TestWriteTextPropagatesWriteErrors(t *testing.T) {
	if err := WriteText(failingWriter{}, core.ConsolidateMonth(nil, 1, 2024)); !errors.Is(err, errWrite) {
		t.Fatalf("err = %v, want %v", err, errWrite)
	}
}
