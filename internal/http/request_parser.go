// Package http provides the JSON API server and its handlers.
//
// This file holds the helpers that turn query strings and request bodies
// into domain values.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ausencias/internal/core"
)

// maxBodyBytes caps request bodies; a record is a handful of short fields.
const maxBodyBytes = 64 << 10

// MonthParams holds a zero-based month and its year.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads month (0-11) and year from the query, defaulting
// to the month containing now. Non-numeric or out-of-range values fail.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()) - 1,
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, &core.ValidationError{Field: "year", Err: fmt.Errorf("invalid year %q", v)}
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, &core.ValidationError{Field: "month", Err: fmt.Errorf("%w %q", core.ErrInvalidMonth, v)}
		}
		params.Month = m
	}
	if err := core.ValidateMonth(params.Month); err != nil {
		return MonthParams{}, err
	}
	return params, nil
}

// ParseFilters maps the list query string onto core.Filters. Values are
// only trimmed here; Filters.Compile rejects bad dates and subjects.
func ParseFilters(query url.Values) core.Filters {
	return core.Filters{
		SearchTerm:                sanitizeInput(query.Get("search")),
		DateFrom:                  strings.TrimSpace(query.Get("dateFrom")),
		DateTo:                    strings.TrimSpace(query.Get("dateTo")),
		AbsentTeacherSubject:      core.Subject(strings.TrimSpace(query.Get("absentSubject"))),
		ReplacementTeacherSubject: core.Subject(strings.TrimSpace(query.Get("replacementSubject"))),
	}
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// CreateRecordRequest is the body of POST /api/records.
type CreateRecordRequest struct {
	Date                      string `json:"date" validate:"required,datetime=2006-01-02"`
	AbsentTeacher             string `json:"absentTeacher" validate:"required,max=120"`
	AbsentTeacherSubject      string `json:"absentTeacherSubject" validate:"required,subject"`
	ReplacementTeacher        string `json:"replacementTeacher" validate:"required,max=120"`
	ReplacementTeacherSubject string `json:"replacementTeacherSubject" validate:"required,subject"`
	HoursCovered              string `json:"hoursCovered" validate:"required,number"`
}

// ParseCreateRecordRequest pulls the record fields out of a parsed body.
func ParseCreateRecordRequest(p *RequestBodyParser) CreateRecordRequest {
	return CreateRecordRequest{
		Date:                      p.Get("date"),
		AbsentTeacher:             p.Get("absentTeacher"),
		AbsentTeacherSubject:      p.Get("absentTeacherSubject"),
		ReplacementTeacher:        p.Get("replacementTeacher"),
		ReplacementTeacherSubject: p.Get("replacementTeacherSubject"),
		HoursCovered:              p.Get("hoursCovered"),
	}
}

// Draft converts a validated request into a record draft.
func (req CreateRecordRequest) Draft() (core.RecordDraft, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.RecordDraft{}, &core.ValidationError{Field: "date", Err: err}
	}
	hours, err := strconv.Atoi(req.HoursCovered)
	if err != nil {
		return core.RecordDraft{}, &core.ValidationError{Field: "hoursCovered", Err: err}
	}
	return core.RecordDraft{
		Date:                      date,
		AbsentTeacher:             req.AbsentTeacher,
		AbsentTeacherSubject:      core.Subject(req.AbsentTeacherSubject),
		ReplacementTeacher:        req.ReplacementTeacher,
		ReplacementTeacherSubject: core.Subject(req.ReplacementTeacherSubject),
		HoursCovered:              hours,
	}, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
