package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auditbench/auditbench/internal/apperrors"
)

func TestAs(t *testing.T) {
	t.Run("extracts a taxonomy error", func(t *testing.T) {
		err := apperrors.NotFound("Project")
		got := apperrors.As(err)
		assert.Equal(t, apperrors.KindNotFound, got.Kind)
		assert.Equal(t, "Project not found", got.Message)
	})

	t.Run("extracts through wrapping", func(t *testing.T) {
		err := fmt.Errorf("loading: %w", apperrors.Forbidden("Access denied"))
		got := apperrors.As(err)
		assert.Equal(t, apperrors.KindForbidden, got.Kind)
	})

	t.Run("unclassified errors become internal", func(t *testing.T) {
		got := apperrors.As(errors.New("disk on fire"))
		assert.Equal(t, apperrors.KindInternal, got.Kind)
		assert.EqualError(t, got.Unwrap(), "disk on fire")
	})
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.Validation("bad input", nil), http.StatusBadRequest},
		{apperrors.Unauthorized("who are you"), http.StatusUnauthorized},
		{apperrors.Forbidden("not yours"), http.StatusForbidden},
		{apperrors.NotFound("Tool"), http.StatusNotFound},
		{apperrors.Conflict("email taken"), http.StatusConflict},
		{apperrors.Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, apperrors.StatusCode(tc.err), "for %v", tc.err)
	}
}

func TestErrorString(t *testing.T) {
	t.Run("includes the cause when present", func(t *testing.T) {
		err := apperrors.Internal(errors.New("connection refused"))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("validation keeps per-field messages", func(t *testing.T) {
		err := apperrors.Validation("Validation failed", map[string]string{"email": "Invalid email format"})
		assert.Equal(t, "Invalid email format", err.Fields["email"])
	})
}
