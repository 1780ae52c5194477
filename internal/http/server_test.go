package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ausencias/internal/cache"
	"ausencias/internal/core"
	applog "ausencias/internal/log"
	"ausencias/internal/records/memory"
	"ausencias/internal/services"
)

type fakeReports struct {
	calls int
	last  core.MonthlyConsolidatedData
	err   error
}

func (f *fakeReports) WriteMonthlyReport(_ context.Context, data core.MonthlyConsolidatedData) (string, error) {
	f.calls++
	f.last = data
	if f.err != nil {
		return "", f.err
	}
	return "Consolidado!A1", nil
}

type testEnv struct {
	srv     *Server
	reports *fakeReports
	cache   *cache.LRUCache[core.MonthlyConsolidatedData]
}

func newTestServer(t *testing.T, opts Options) *testEnv {
	t.Helper()
	logger := applog.NewText(io.Discard, slog.LevelInfo, applog.ComponentApp)
	reports := cache.NewLRUCache[core.MonthlyConsolidatedData](10, time.Minute)
	reg := services.NewRegister(memory.New(nil), reports, logger)
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("load register: %v", err)
	}

	fr := &fakeReports{}
	opts.Register = reg
	opts.Logger = logger
	opts.ReportCache = reports
	if opts.Reports == nil {
		opts.Reports = fr
	}
	srv := NewServer(opts)
	srv.now = func() time.Time { return time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, reports: fr, cache: reports}
}

func (e *testEnv) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Code    int               `json:"code"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    T                 `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func recordJSON(date, absent, absentSubj, repl, replSubj string, hours int) string {
	b, _ := json.Marshal(map[string]any{
		"date":                      date,
		"absentTeacher":             absent,
		"absentTeacherSubject":      absentSubj,
		"replacementTeacher":        repl,
		"replacementTeacherSubject": replSubj,
		"hoursCovered":              hours,
	})
	return string(b)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing request id header", path)
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: missing security headers", path)
		}
	}
}

func TestReadyReportsBackendFailure(t *testing.T) {
	env := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("sheets down") }})

	rec := env.do(t, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body.Data["status"] != "not_ready" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSubjects(t *testing.T) {
	env := newTestServer(t, Options{})
	rec := env.do(t, http.MethodGet, "/api/subjects", "", "")
	body := decode[[]string](t, rec)
	if len(body.Data) != len(core.AllSubjects()) || body.Data[0] != string(core.AllSubjects()[0]) {
		t.Fatalf("unexpected subjects %v", body.Data)
	}
}

func TestCreateListAndDeleteRecord(t *testing.T) {
	env := newTestServer(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/records", "application/json",
		recordJSON("2024-03-04", "Ana", "Matemática", "Luis", "Matemática", 2))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[core.AbsenceRecord](t, rec)
	if created.Data.ID == "" || created.Data.Coverage != core.Covered {
		t.Fatalf("unexpected created record %+v", created.Data)
	}
	if rec.Header().Get("Location") != "/api/records/"+created.Data.ID {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}

	form := url.Values{
		"date":                      {"2024-03-05"},
		"absentTeacher":             {"Marta"},
		"absentTeacherSubject":      {"Historia"},
		"replacementTeacher":        {"Pedro"},
		"replacementTeacherSubject": {"Inglés"},
		"hoursCovered":              {"1"},
	}
	rec = env.do(t, http.MethodPost, "/api/records", "application/x-www-form-urlencoded", form.Encode())
	if rec.Code != http.StatusCreated {
		t.Fatalf("form create status=%d body=%s", rec.Code, rec.Body.String())
	}
	second := decode[core.AbsenceRecord](t, rec)
	if second.Data.Coverage != core.AccountedNotDone {
		t.Fatalf("expected accounted coverage, got %q", second.Data.Coverage)
	}

	type listData struct {
		Records []core.AbsenceRecord `json:"records"`
		Count   int                  `json:"count"`
		Total   int                  `json:"total"`
	}
	list := decode[listData](t, env.do(t, http.MethodGet, "/api/records", "", ""))
	if list.Data.Count != 2 || list.Data.Records[0].AbsentTeacher != "Marta" {
		t.Fatalf("expected newest first, got %+v", list.Data)
	}

	filtered := decode[listData](t, env.do(t, http.MethodGet, "/api/records?search=luis", "", ""))
	if filtered.Data.Count != 1 || filtered.Data.Total != 2 || filtered.Data.Records[0].ID != created.Data.ID {
		t.Fatalf("unexpected filtered list %+v", filtered.Data)
	}

	byDate := decode[listData](t, env.do(t, http.MethodGet, "/api/records?dateFrom=2024-03-05&dateTo=2024-03-05", "", ""))
	if byDate.Data.Count != 1 || byDate.Data.Records[0].ID != second.Data.ID {
		t.Fatalf("unexpected date-filtered list %+v", byDate.Data)
	}

	rec = env.do(t, http.MethodDelete, "/api/records/"+created.Data.ID, "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/records/"+created.Data.ID, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rec.Code)
	}
}

func TestCreateRecordRejectsBadInput(t *testing.T) {
	env := newTestServer(t, Options{})

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantField   string
	}{
		{"broken json", "application/json", `{"date":`, http.StatusBadRequest, ""},
		{"unknown subject", "application/json", recordJSON("2024-03-04", "Ana", "Química", "Luis", "Historia", 1), http.StatusUnprocessableEntity, "absentTeacherSubject"},
		{"negative hours", "application/json", recordJSON("2024-03-04", "Ana", "Historia", "Luis", "Historia", -2), http.StatusUnprocessableEntity, "hoursCovered"},
		{"bad date", "application/json", recordJSON("2024-02-30", "Ana", "Historia", "Luis", "Historia", 1), http.StatusUnprocessableEntity, "date"},
		{"blank teacher", "application/x-www-form-urlencoded", "date=2024-03-04&absentTeacher=+&absentTeacherSubject=Historia&replacementTeacher=Luis&replacementTeacherSubject=Historia&hoursCovered=1", http.StatusUnprocessableEntity, "absentTeacher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/records", tt.contentType, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantField == "" {
				return
			}
			body := decode[any](t, rec)
			if _, ok := body.Errors[tt.wantField]; !ok {
				t.Fatalf("expected error on %s, got %v", tt.wantField, body.Errors)
			}
		})
	}

	list := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/records", "", ""))
	if list.Data["total"].(float64) != 0 {
		t.Fatalf("rejected requests must not create records, got %v", list.Data)
	}
}

func TestListRecordsInvalidFilter(t *testing.T) {
	env := newTestServer(t, Options{})
	for _, q := range []string{"dateFrom=yesterday", "absentSubject=Química"} {
		rec := env.do(t, http.MethodGet, "/api/records?"+q, "", "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status=%d", q, rec.Code)
		}
	}
}

func TestConsolidated(t *testing.T) {
	env := newTestServer(t, Options{})
	env.do(t, http.MethodPost, "/api/records", "application/json",
		recordJSON("2024-03-04", "Ana", "Matemática", "Luis", "Matemática", 2))
	env.do(t, http.MethodPost, "/api/records", "application/json",
		recordJSON("2024-03-05", "Ana", "Matemática", "Pedro", "Historia", 3))
	env.do(t, http.MethodPost, "/api/records", "application/json",
		recordJSON("2024-04-01", "Marta", "Historia", "Luis", "Historia", 1))

	// month defaults to the current one (March, index 2)
	rec := env.do(t, http.MethodGet, "/api/consolidated", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	report := decode[core.MonthlyConsolidatedData](t, rec)
	totals := report.Data.GlobalTotals
	if report.Data.Month != 2 || report.Data.Year != 2024 {
		t.Fatalf("unexpected period %d/%d", report.Data.Month, report.Data.Year)
	}
	if totals.TotalAbsencesEvents != 2 || totals.TotalHours != 5 || totals.TotalCoveredHours != 2 || totals.TotalAccountedHours != 3 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if report.Data.AbsencesByTeacher["Ana"] != 2 {
		t.Fatalf("unexpected absences %v", report.Data.AbsencesByTeacher)
	}

	april := decode[core.MonthlyConsolidatedData](t, env.do(t, http.MethodGet, "/api/consolidated?month=3&year=2024", "", ""))
	if april.Data.GlobalTotals.TotalAbsencesEvents != 1 {
		t.Fatalf("unexpected april totals %+v", april.Data.GlobalTotals)
	}
	if env.cache.Size() != 2 {
		t.Fatalf("expected two cached reports, got %d", env.cache.Size())
	}

	for _, q := range []string{"month=12", "month=-1", "month=abc", "year=x"} {
		if rec := env.do(t, http.MethodGet, "/api/consolidated?"+q, "", ""); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status=%d", q, rec.Code)
		}
	}
}

func TestExportConsolidated(t *testing.T) {
	env := newTestServer(t, Options{})
	env.do(t, http.MethodPost, "/api/records", "application/json",
		recordJSON("2024-01-10", "Ana", "Matemática", "Luis", "Matemática", 2))

	rec := env.do(t, http.MethodPost, "/api/consolidated/export?month=0&year=2024", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if env.reports.calls != 1 || env.reports.last.Month != 0 || env.reports.last.GlobalTotals.TotalHours != 2 {
		t.Fatalf("unexpected export %+v", env.reports.last)
	}
	body := decode[map[string]any](t, rec)
	if body.Data["ref"] != "Consolidado!A1" {
		t.Fatalf("unexpected body %+v", body.Data)
	}

	env.reports.err = errors.New("quota exceeded")
	if rec := env.do(t, http.MethodPost, "/api/consolidated/export?month=0&year=2024", "", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("failing export status=%d", rec.Code)
	}
}

func TestExportWithoutReportWriter(t *testing.T) {
	env := newTestServer(t, Options{})
	env.srv.reports = nil
	if rec := env.do(t, http.MethodPost, "/api/consolidated/export", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestServer(t, Options{})
	if rec := env.do(t, http.MethodPut, "/api/records", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT status=%d", rec.Code)
	}
	if rec := env.do(t, "TRACE", "/api/records", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("TRACE status=%d", rec.Code)
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	env := newTestServer(t, Options{RateLimitPerMinute: 1})

	body := recordJSON("2024-03-04", "Ana", "Matemática", "Luis", "Matemática", 2)
	if rec := env.do(t, http.MethodPost, "/api/records", "application/json", body); rec.Code != http.StatusCreated {
		t.Fatalf("first create status=%d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/records", "application/json", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second create status=%d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	for range 3 {
		if rec := env.do(t, http.MethodGet, "/api/records", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("reads must not be limited, got %d", rec.Code)
		}
	}
}

func TestMetrics(t *testing.T) {
	env := newTestServer(t, Options{})
	env.do(t, http.MethodPost, "/api/records", "application/json",
		recordJSON("2024-03-04", "Ana", "Matemática", "Luis", "Matemática", 2))

	rec := env.do(t, http.MethodGet, "/metrics", "", "")
	out := rec.Body.String()
	for _, want := range []string{"records_created_total 1", "records_loaded 1", "http_requests_total 1", "report_cache_entries 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q:\n%s", want, out)
		}
	}
}
