package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/edupresencia/fichai/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errors.Validation("bad input"), http.StatusBadRequest},
		{"forbidden", errors.Forbidden("access to %s denied", "inst-2"), http.StatusForbidden},
		{"not found", errors.NotFound("rule %s not found", "r1"), http.StatusNotFound},
		{"dependency", errors.Dependency("datastore", fmt.Errorf("disk full")), http.StatusInternalServerError},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"wrapped validation", fmt.Errorf("create: %w", errors.Validation("bad input")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ErrorStatus(tt.err))
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	t.Parallel()

	status, body := NewErrorResponse(errors.Dependency("datastore", fmt.Errorf("dsn postgres://secret@db")))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, InternalErrorMessage, body.Message)
	assert.Empty(t, body.Errors)

	status, body = NewErrorResponse(errors.Validation("invalid alert rule",
		errors.FieldError{Field: "name", Message: "name is required"}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Message, "invalid alert rule")
	assert.Equal(t, []errors.FieldError{{Field: "name", Message: "name is required"}}, body.Errors)
}
