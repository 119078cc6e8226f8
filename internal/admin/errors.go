package admin

import (
	"fmt"

	"smartqueue/internal/apperr"
)

var (
	ErrRequestNotFound    = fmt.Errorf("access request not found: %w", apperr.ErrNotFound)
	ErrRequestResolved    = fmt.Errorf("access request has already been resolved: %w", apperr.ErrConflict)
	ErrInvalidRequest     = fmt.Errorf("invalid access request: %w", apperr.ErrInvalidInput)
	ErrNotApproved        = fmt.Errorf("no approved access request for this email: %w", apperr.ErrForbidden)
	ErrAccountExists      = fmt.Errorf("an account with this identifier or email already exists: %w", apperr.ErrConflict)
	ErrAccountNotFound    = fmt.Errorf("admin account not found: %w", apperr.ErrNotFound)
	ErrInvalidCredentials = fmt.Errorf("invalid identifier or password: %w", apperr.ErrUnauthorized)
)
