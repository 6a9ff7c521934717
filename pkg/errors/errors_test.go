package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "x"), http.StatusTeapot},
		{"wrapped app error", fmt.Errorf("outer: %w", New(ErrDocumentNotFound, http.StatusGone, "x")), http.StatusGone},
		{"wrapped query error", fmt.Errorf("parsing: %w", ErrInvalidQuery), http.StatusBadRequest},
		{"conflict", ErrIdempotencyConflict, http.StatusConflict},
		{"not found", ErrDocumentNotFound, http.StatusNotFound},
		{"shard", fmt.Errorf("routing: %w", ErrShardUnavailable), http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("shard 2: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "field %s", "title")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: field title", err.Error())

	assert.Equal(t, "document not found", New(ErrDocumentNotFound, http.StatusNotFound, "").Error())
}
