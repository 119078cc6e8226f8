// Package apperr defines the error taxonomy shared by every layer of the
// queue service and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrEventInactive     = errors.New("event inactive")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrUnavailable       = errors.New("temporarily unavailable")
)

// HTTPStatus maps an error onto the status code a client should see.
// Unknown errors are internal.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrEventInactive), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
