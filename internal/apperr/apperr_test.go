package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeFull, "event abc is full")

	assert.ErrorIs(t, err, ErrFull)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("join: %w", err)
	assert.ErrorIs(t, wrapped, ErrFull)
	assert.Equal(t, CodeFull, CodeOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("load event", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "load event: connection reset", err.Error())
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestEnsure(t *testing.T) {
	assert.NoError(t, Ensure(nil, "x"))

	coded := Validation("capacity must be at least 1")
	assert.Same(t, coded, Ensure(coded, "x"))

	plain := errors.New("disk full")
	got := Ensure(plain, "insert event")
	assert.ErrorIs(t, got, ErrInternal)
	assert.ErrorIs(t, got, plain)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeFull, http.StatusConflict},
		{CodeNotOpen, http.StatusBadRequest},
		{CodeAlreadyStarted, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeInternal, http.StatusInternalServerError},
		{Code("mystery"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}
