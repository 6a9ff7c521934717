// Package errors defines the sentinel errors shared across services and the
// mapping from errors to HTTP status codes.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrShardUnavailable    = errors.New("shard unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidQuery        = errors.New("invalid query")
	ErrIdempotencyConflict = errors.New("idempotency key already used")
)

// AppError attaches a client-facing message and an explicit HTTP status to
// a sentinel.
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

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{ErrDocumentNotFound, http.StatusNotFound},
	{ErrIdempotencyConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrInvalidQuery, http.StatusBadRequest},
	{ErrShardUnavailable, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// HTTPStatusCode picks the status for err: an AppError's own status first,
// then the first known sentinel in its chain, else 500.
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
