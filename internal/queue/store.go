package queue

import (
	"context"
	"time"

	"smartqueue/internal/models"
)

// Store persists events and tickets. Methods called with a context from
// InTx run inside that transaction.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	// GetEventForUpdate row-locks the event where the database supports it.
	GetEventForUpdate(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	SetIssuedTokens(ctx context.Context, eventID string, issued int) error
	AdjustActiveCount(ctx context.Context, eventID string, delta int) error
	SetEventActive(ctx context.Context, eventID string, active bool, at time.Time) error

	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	TicketCodeExists(ctx context.Context, code string) (bool, error)
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	NextWaiting(ctx context.Context, eventID string) (*models.Ticket, error)
	// UpdateTicketStatus writes status, counter and timestamps only if the
	// stored status is one of from. It returns ErrInvalidTransition otherwise.
	UpdateTicketStatus(ctx context.Context, ticket *models.Ticket, from ...models.TicketStatus) error
	CancelActiveTickets(ctx context.Context, eventID string, at time.Time) (int, error)
	CountWaitingAhead(ctx context.Context, eventID string, position int) (int, error)
	ListTickets(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
	CountTicketsByStatus(ctx context.Context, eventID string) (map[models.TicketStatus]int, error)
}
