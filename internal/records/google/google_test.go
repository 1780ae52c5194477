package google

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ausencias/internal/core"
	"ausencias/internal/records"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNew_InvalidCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "test-id", CredentialsJSON: []byte("invalid-json")})
	if err == nil || !strings.Contains(err.Error(), "parse service account credentials") {
		t.Fatalf("expected credentials parse error, got %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(file, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := loadCredentials(context.Background(), Config{CredentialsFile: file})
	if err != nil || string(got) != `{"type":"service_account"}` {
		t.Fatalf("file credentials: %q %v", got, err)
	}

	got, err = loadCredentials(context.Background(), Config{CredentialsJSON: []byte("{}"), CredentialsFile: file})
	if err != nil || string(got) != "{}" {
		t.Fatalf("inline credentials should win: %q %v", got, err)
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", file)
	if _, err := loadCredentials(context.Background(), Config{}); err != nil {
		t.Fatalf("expected fallback to GOOGLE_APPLICATION_CREDENTIALS: %v", err)
	}

	if _, err := loadCredentials(context.Background(), Config{CredentialsFile: filepath.Join(dir, "missing.json")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := newClient(nil, Config{SpreadsheetID: " id "})
	if c.spreadsheetID != "id" || c.recordsSheet != "Ausencias" || c.reportBase != "Consolidado" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestClientWithoutService(t *testing.T) {
	c := newClient(nil, Config{SpreadsheetID: "test"})
	ctx := context.Background()

	var perr *records.PersistenceError
	if _, err := c.ListRecords(ctx); !errors.As(err, &perr) {
		t.Fatalf("ListRecords: expected PersistenceError, got %v", err)
	}
	if err := c.DeleteRecord(ctx, "x"); !errors.As(err, &perr) {
		t.Fatalf("DeleteRecord: expected PersistenceError, got %v", err)
	}

	_, err := c.CreateRecord(ctx, core.AbsenceRecord{})
	var verr *core.ValidationError
	if !errors.As(err, &verr) || !errors.As(err, &perr) {
		t.Fatalf("CreateRecord: expected wrapped validation error, got %v", err)
	}

	if _, err := c.SaveRecord(ctx, core.AbsenceRecord{}); err == nil {
		t.Fatal("SaveRecord: expected error for record without id")
	}

	if _, err := c.WriteMonthlyReport(ctx, core.ConsolidateMonth(nil, 12, 2024)); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("WriteMonthlyReport: expected ErrInvalidMonth, got %v", err)
	}
}
