package apperr

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
		{"not found", ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("queue is empty: %w", ErrNotFound), http.StatusNotFound},
		{"transition", ErrInvalidTransition, http.StatusConflict},
		{"conflict", ErrConflict, http.StatusConflict},
		{"capacity", ErrCapacityExceeded, http.StatusBadRequest},
		{"inactive", ErrEventInactive, http.StatusBadRequest},
		{"input", ErrInvalidInput, http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
