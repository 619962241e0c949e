package errors

import (
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
		{"app error wins", New(ErrDocumentNotFound, http.StatusTeapot, "x"), http.StatusTeapot},
		{"not found", fmt.Errorf("loading: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"format", Format("missing %s", "documents"), http.StatusBadRequest},
		{"validation gap", fmt.Errorf("item 3: %w", ErrValidationGap), http.StatusUnprocessableEntity},
		{"schema", ErrSchemaVersion, http.StatusConflict},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"computation", Computation("bad date"), http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Format("documents must be an array")
	assert.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, "format error: documents must be an array", err.Error())
}
