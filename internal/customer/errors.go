package customer

import (
	"fmt"

	"smartqueue/internal/apperr"
)

var (
	ErrInvalidSignUp      = fmt.Errorf("invalid customer sign-up: %w", apperr.ErrInvalidInput)
	ErrCustomerExists     = fmt.Errorf("a customer with this email already exists: %w", apperr.ErrConflict)
	ErrCustomerNotFound   = fmt.Errorf("customer not found: %w", apperr.ErrNotFound)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperr.ErrUnauthorized)
)
