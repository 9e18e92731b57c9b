package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", InvalidInputError("car_id is required"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("decode: %w", NewAppError("VALIDATION_ERROR", "x", ErrValidation)), http.StatusBadRequest},
		{"too large", NewAppError("TOO_LARGE", "body", ErrTooLarge), http.StatusBadRequest},
		{"method", ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{"not found", WrapError(ErrNotFound, "ref"), http.StatusNotFound},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "car_id is required", PublicMessage(InvalidInputError("car_id is required")))
	assert.Equal(t, "internal error", PublicMessage(errors.New("db password leaked")))
	assert.Equal(t, "resource not found", PublicMessage(ErrNotFound))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewAppError("FETCH_ERROR", "download failed", ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "FETCH_ERROR: download failed: resource not found", err.Error())
	assert.Equal(t, "CODE: msg", NewAppError("CODE", "msg", nil).Error())
	assert.NoError(t, WrapError(nil, "ignored"))
}
