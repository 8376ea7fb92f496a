package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipebook/internal/apperror"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
		wantMsg  string
	}{
		{"validation", apperror.ValidationFailed("title", "title is required"), http.StatusUnprocessableEntity, "validation_error", "title is required"},
		{"not found", apperror.NotFound("recipe", "r1"), http.StatusNotFound, "not_found", "recipe not found with id r1"},
		{"forbidden", apperror.Forbidden("nope"), http.StatusForbidden, "forbidden", "nope"},
		{"conflict", apperror.Conflict("already rated"), http.StatusConflict, "conflict", "already rated"},
		{"unauthorized", apperror.Unauthorized("bad credentials"), http.StatusUnauthorized, "unauthorized", "bad credentials"},
		{"wrapped", fmt.Errorf("deleting recipe: %w", apperror.NotFound("recipe", "r2")), http.StatusNotFound, "not_found", "recipe not found with id r2"},
		{"internal", errors.New("disk I/O error at /var/lib/db"), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, body.Error)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}
