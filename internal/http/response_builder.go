// Package http provides the JSON API server and its handlers.
//
// This file implements a small fluent builder for JSON responses so every
// handler answers with the same envelope.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"ausencias/internal/core"
	"ausencias/internal/records"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope is the body of every API response.
type Envelope struct {
	Code    int               `json:"code"`
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	envelope Envelope
	headers  map[string]string
	noBody   bool
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		envelope: Envelope{Code: http.StatusOK, Status: statusSuccess},
		headers:  make(map[string]string),
	}
}

// Status sets the HTTP status code; codes >= 400 mark the envelope as an error.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.envelope.Code = code
	if code >= http.StatusBadRequest {
		b.envelope.Status = statusError
	} else {
		b.envelope.Status = statusSuccess
	}
	return b
}

func (b *ResponseBuilder) Message(msg string) *ResponseBuilder {
	b.envelope.Message = msg
	return b
}

func (b *ResponseBuilder) Data(data any) *ResponseBuilder {
	b.envelope.Data = data
	return b
}

// FieldError records a per-field problem.
func (b *ResponseBuilder) FieldError(field, problem string) *ResponseBuilder {
	if b.envelope.Errors == nil {
		b.envelope.Errors = make(map[string]string)
	}
	b.envelope.Errors[field] = problem
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// NoContent drops the body, for 204 responses.
func (b *ResponseBuilder) NoContent() *ResponseBuilder {
	b.noBody = true
	return b.Status(http.StatusNoContent)
}

// Envelope returns the body that Write would encode.
func (b *ResponseBuilder) Envelope() Envelope {
	return b.envelope
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.noBody {
		w.WriteHeader(b.envelope.Code)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.envelope.Code)
	_ = json.NewEncoder(w).Encode(b.envelope)
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Message(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ValidationErrorResponse creates a 422 listing every offending field.
func ValidationErrorResponse(err error) *ResponseBuilder {
	b := ErrorResponse(http.StatusUnprocessableEntity, "Validation failed")

	var ve validator.ValidationErrors
	var de *core.ValidationError
	switch {
	case errors.As(err, &ve):
		for _, fe := range ve {
			b.FieldError(fe.Field(), fe.Tag())
		}
	case errors.As(err, &de):
		b.FieldError(de.Field, de.Err.Error())
	default:
		b.Message(err.Error())
	}
	return b
}

// FromError maps a domain or persistence error onto a response.
func FromError(err error) *ResponseBuilder {
	var ve validator.ValidationErrors
	var de *core.ValidationError
	var pe *records.PersistenceError
	switch {
	case errors.As(err, &ve), errors.As(err, &de):
		return ValidationErrorResponse(err)
	case errors.Is(err, records.ErrNotFound):
		return NotFoundError("Record not found")
	case errors.As(err, &pe):
		return ErrorResponse(http.StatusBadGateway, "Record store unavailable")
	default:
		return ErrorResponse(http.StatusInternalServerError, "Internal error")
	}
}
