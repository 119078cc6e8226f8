package queue

import (
	"fmt"

	"smartqueue/internal/apperr"
)

var (
	ErrEventNotFound     = fmt.Errorf("event not found: %w", apperr.ErrNotFound)
	ErrTicketNotFound    = fmt.Errorf("ticket not found: %w", apperr.ErrNotFound)
	ErrQueueEmpty        = fmt.Errorf("no waiting tickets: %w", apperr.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("ticket cannot move to that status: %w", apperr.ErrInvalidTransition)
	ErrCapacityExceeded  = fmt.Errorf("event has reached its token limit: %w", apperr.ErrCapacityExceeded)
	ErrEventInactive     = fmt.Errorf("event is not accepting bookings: %w", apperr.ErrEventInactive)
	ErrLockTimeout       = fmt.Errorf("queue is busy, try again: %w", apperr.ErrUnavailable)
	ErrInvalidEvent      = fmt.Errorf("invalid event: %w", apperr.ErrInvalidInput)
)
