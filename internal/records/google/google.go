package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ausencias/internal/core"
	ports "ausencias/internal/records"
)

// Config selects the spreadsheet and credentials used by the client.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	ReportSheetName string
	CredentialsJSON []byte
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	recordsSheet  string
	// Base name without year (e.g. "Consolidado"); code prefixes the report year.
	reportBase string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var (
	_ ports.Store        = (*Client)(nil)
	_ ports.ReportWriter = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: GOOGLE_SHEET_NAME (default "Ausencias"),
// GOOGLE_REPORT_SHEET_NAME (default "Consolidado").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	return New(ctx, Config{
		SpreadsheetID:   spreadsheetID,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		ReportSheetName: os.Getenv("GOOGLE_REPORT_SHEET_NAME"),
		CredentialsJSON: []byte(strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	})
}

// New creates a Sheets client from explicit configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	credentialsJSON, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := newSheetsService(ctx, credentialsJSON)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return newClient(svc, cfg), nil
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Ausencias"
	}
	report := strings.TrimSpace(cfg.ReportSheetName)
	if report == "" {
		report = "Consolidado"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		recordsSheet:  sheet,
		reportBase:    report,
		sheetIDs:      map[string]int64{},
	}
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	file := cfg.CredentialsFile
	if len(cfg.CredentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(cfg.CredentialsJSON) > 0:
		slog.DebugContext(ctx, "Using inline service account credentials")
		return cfg.CredentialsJSON, nil
	case file != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newSheetsService initializes a Sheets Service from service account credentials
// using a pooled HTTP transport.
func newSheetsService(ctx context.Context, credentialsJSON []byte) (*gsheet.Service, error) {
	creds, err := googleauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// The token source and the API calls share the pooled transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := oauth2.NewClient(ctx, creds.TokenSource)

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "project_id", creds.ProjectID)
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Google Sheets API
// with connection pooling, timeouts and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) ready() error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	return nil
}

// Ping checks that the spreadsheet is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if _, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	return nil
}

// ListRecords reads every data row of the records sheet. Rows that do not
// parse are skipped and logged.
func (c *Client) ListRecords(ctx context.Context) ([]core.AbsenceRecord, error) {
	if err := c.ready(); err != nil {
		return nil, ports.Fail("list", "", err)
	}
	rng := fmt.Sprintf("%s!A:H", c.recordsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, ports.Fail("list", "", fmt.Errorf("read %s: %w", rng, err))
	}
	out, skipped := parseRecordRows(resp.Values)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped unparsable rows", "sheet", c.recordsSheet, "count", skipped)
	}
	return out, nil
}

// CreateRecord assigns a new id and appends the record to the records sheet.
func (c *Client) CreateRecord(ctx context.Context, r core.AbsenceRecord) (core.AbsenceRecord, error) {
	if err := r.Validate(); err != nil {
		return core.AbsenceRecord{}, ports.Fail("create", "", fmt.Errorf("validation failed: %w", err))
	}
	r = r.WithID(uuid.NewString())
	if _, err := c.appendRow(ctx, r); err != nil {
		return core.AbsenceRecord{}, ports.Fail("create", r.ID, err)
	}
	return r, nil
}

// SaveRecord writes r under its existing id, updating the row when the id is
// already present and appending otherwise. It returns the row reference.
func (c *Client) SaveRecord(ctx context.Context, r core.AbsenceRecord) (string, error) {
	if r.ID == "" {
		return "", ports.Fail("save", "", errors.New("record has no id"))
	}
	if err := r.Validate(); err != nil {
		return "", ports.Fail("save", r.ID, fmt.Errorf("validation failed: %w", err))
	}
	row, err := c.findRow(ctx, r.ID)
	if errors.Is(err, ports.ErrNotFound) {
		ref, err := c.appendRow(ctx, r)
		return ref, ports.Fail("save", r.ID, err)
	}
	if err != nil {
		return "", ports.Fail("save", r.ID, err)
	}

	rng := fmt.Sprintf("%s!A%d:H%d", c.recordsSheet, row+1, row+1)
	vr := &gsheet.ValueRange{Values: [][]any{recordRow(r)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", ports.Fail("save", r.ID, fmt.Errorf("update %s: %w", rng, err))
	}
	return rng, nil
}

func (c *Client) appendRow(ctx context.Context, r core.AbsenceRecord) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	rng := fmt.Sprintf("%s!A:H", c.recordsSheet)
	vr := &gsheet.ValueRange{Values: [][]any{recordRow(r)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.recordsSheet, err)
	}
	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Record appended to sheet", "id", r.ID, "ref", ref)
	return ref, nil
}

// DeleteRecord removes the row holding id.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	row, err := c.findRow(ctx, id)
	if err != nil {
		return ports.Fail("delete", id, err)
	}
	sheetID, err := c.sheetID(ctx, c.recordsSheet)
	if err != nil {
		return ports.Fail("delete", id, err)
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return ports.Fail("delete", id, fmt.Errorf("delete row %d: %w", row+1, err))
	}
	slog.InfoContext(ctx, "Record deleted from sheet", "id", id, "row", row+1)
	return nil
}

// findRow returns the zero-based row index of id in column A.
func (c *Client) findRow(ctx context.Context, id string) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	rng := fmt.Sprintf("%s!A:A", c.recordsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	row := findRowIndex(resp.Values, id)
	if row < 0 {
		return 0, ports.ErrNotFound
	}
	return row, nil
}

// sheetID resolves a sheet title to its numeric id. Ids are cached per client.
func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok = c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q: %w", title, ports.ErrNotFound)
	}
	return id, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	_, err := c.sheetID(ctx, title)
	if err == nil || !errors.Is(err, ports.ErrNotFound) {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet %q: %w", title, err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		c.mu.Lock()
		c.sheetIDs[title] = resp.Replies[0].AddSheet.Properties.SheetId
		c.mu.Unlock()
	}
	slog.InfoContext(ctx, "Created report sheet", "sheet", title)
	return nil
}

// WriteMonthlyReport writes the report into the "<year> <base>" sheet. Each
// month owns a fixed block of columns so a whole school year fits in one sheet.
func (c *Client) WriteMonthlyReport(ctx context.Context, data core.MonthlyConsolidatedData) (string, error) {
	if err := core.ValidateMonth(data.Month); err != nil {
		return "", err
	}
	if err := c.ready(); err != nil {
		return "", ports.Fail("export", "", err)
	}
	sheet := yearPrefixedName(c.reportBase, data.Year)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", ports.Fail("export", "", err)
	}

	rows := buildReportRows(data)
	first, last := reportColumns(data.Month)

	clearRng := fmt.Sprintf("%s!%s:%s", sheet, first, last)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", ports.Fail("export", "", fmt.Errorf("clear %s: %w", clearRng, err))
	}

	rng := fmt.Sprintf("%s!%s1:%s%d", sheet, first, last, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", ports.Fail("export", "", fmt.Errorf("update %s: %w", rng, err))
	}

	slog.InfoContext(ctx, "Monthly report exported", "sheet", sheet, "range", rng, "month", data.Month, "year", data.Year)
	return rng, nil
}
