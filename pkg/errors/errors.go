// Package errors holds the error kinds DocPulse services share and maps them
// to HTTP statuses. An AppError pins a kind to an explicit status and a
// client-facing message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	// ErrFormat marks a payload that is not shaped like a workspace or
	// ingestion request at all.
	ErrFormat = errors.New("format error")
	// ErrValidationGap marks a well-formed document missing required metadata.
	ErrValidationGap = errors.New("validation gap")
	// ErrComputation marks a scoring failure on input that passed validation.
	ErrComputation   = errors.New("computation error")
	ErrSchemaVersion = errors.New("unsupported schema version")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrTimeout       = errors.New("operation timed out")
)

// statusByKind is consulted in order; the first kind err matches wins.
var statusByKind = []struct {
	kind   error
	status int
}{
	{ErrDocumentNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrFormat, http.StatusBadRequest},
	{ErrValidationGap, http.StatusUnprocessableEntity},
	{ErrSchemaVersion, http.StatusConflict},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrTimeout, http.StatusServiceUnavailable},
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func New(kind error, status int, message string) *AppError {
	return &AppError{Err: kind, Message: message, StatusCode: status}
}

func Newf(kind error, status int, format string, args ...any) *AppError {
	return New(kind, status, fmt.Sprintf(format, args...))
}

// Format reports a malformed payload.
func Format(format string, args ...any) *AppError {
	return Newf(ErrFormat, http.StatusBadRequest, format, args...)
}

// Computation reports a scoring bug rather than bad input.
func Computation(format string, args ...any) *AppError {
	return Newf(ErrComputation, http.StatusInternalServerError, format, args...)
}

// HTTPStatusCode picks the response status for err. An AppError's explicit
// status takes precedence; unknown errors are 500.
func HTTPStatusCode(err error) int {
	var app *AppError
	if errors.As(err, &app) {
		return app.StatusCode
	}
	for _, k := range statusByKind {
		if errors.Is(err, k.kind) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}
