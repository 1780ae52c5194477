package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ausencias/internal/core"
	"ausencias/internal/records"
)

func TestResponseBuilderWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/records/1").
		Message("Record created").
		Data(map[string]string{"id": "1"}).
		Write(rec)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Location") != "/api/records/1" {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var env struct {
		Code    int               `json:"code"`
		Status  string            `json:"status"`
		Message string            `json:"message"`
		Data    map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != 201 || env.Status != "success" || env.Message != "Record created" || env.Data["id"] != "1" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestResponseBuilderNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NewResponse().NoContent().Write(rec)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("got %d with %d body bytes", rec.Code, rec.Body.Len())
	}
}

func TestErrorStatusMarksEnvelope(t *testing.T) {
	env := BadRequestError("nope").Envelope()
	if env.Status != "error" || env.Code != http.StatusBadRequest || env.Message != "nope" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"domain validation", &core.ValidationError{Field: "date", Err: core.ErrInvalidDate}, http.StatusUnprocessableEntity},
		{"wrapped validation", fmt.Errorf("create: %w", &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}), http.StatusUnprocessableEntity},
		{"not found", records.Fail("delete", "x", records.ErrNotFound), http.StatusNotFound},
		{"store failure", records.Fail("create", "", errors.New("disk full")), http.StatusBadGateway},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromError(tt.err).Envelope().Code; got != tt.want {
				t.Errorf("FromError() code = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidationErrorResponseFields(t *testing.T) {
	env := ValidationErrorResponse(&core.ValidationError{Field: "hoursCovered", Err: core.ErrNegativeHours}).Envelope()
	if env.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", env.Code)
	}
	if env.Errors["hoursCovered"] != core.ErrNegativeHours.Error() {
		t.Fatalf("errors = %v", env.Errors)
	}
}
