package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusWaiting   TicketStatus = "WAITING"
	TicketStatusCalled    TicketStatus = "CALLED"
	TicketStatusServed    TicketStatus = "SERVED"
	TicketStatusSkipped   TicketStatus = "SKIPPED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

// ActiveTicketStatuses are the statuses counted by Event.CurrentTokenCount.
var ActiveTicketStatuses = []TicketStatus{TicketStatusWaiting, TicketStatusCalled}

// IsActive reports whether a ticket in this status still holds a place in the queue.
func (s TicketStatus) IsActive() bool {
	return s == TicketStatusWaiting || s == TicketStatusCalled
}

// IsTerminal reports whether no further transition is allowed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusServed || s == TicketStatusSkipped || s == TicketStatusCancelled
}

// ParseTicketStatus accepts any casing, and DONE as an alias of SERVED.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "WAITING":
		return TicketStatusWaiting, true
	case "CALLED", "IN_PROGRESS":
		return TicketStatusCalled, true
	case "SERVED", "DONE":
		return TicketStatusServed, true
	case "SKIPPED":
		return TicketStatusSkipped, true
	case "CANCELLED", "CANCELED":
		return TicketStatusCancelled, true
	}
	return "", false
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            string       `bun:"id,pk" json:"id"`
	EventID       string       `bun:"event_id,notnull,unique:event_position" json:"eventId"`
	TicketCode    string       `bun:"ticket_code,notnull,unique" json:"ticketCode"`
	QueuePosition int          `bun:"queue_position,notnull,unique:event_position" json:"queuePosition"`
	CustomerName  string       `bun:"customer_name" json:"customerName,omitempty"`
	CustomerID    string       `bun:"customer_id" json:"customerId,omitempty"`
	Status        TicketStatus `bun:"status,notnull" json:"status"`
	Counter       string       `bun:"counter" json:"counter,omitempty"`
	BookingTime   time.Time    `bun:"booking_time,notnull" json:"bookingTime"`
	CalledAt      *time.Time   `bun:"called_at" json:"calledAt,omitempty"`
	CompletedAt   *time.Time   `bun:"completed_at" json:"completedAt,omitempty"`
	UpdatedAt     time.Time    `bun:"updated_at,nullzero" json:"updatedAt"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`

	// Derived on read, never stored.
	PeopleAhead          int `bun:"-" json:"peopleAhead"`
	EstimatedWaitMinutes int `bun:"-" json:"estimatedWaitMinutes"`
}

// BookTicketRequest is the optional body of a booking.
type BookTicketRequest struct {
	CustomerName string `json:"customerName"`
}

// CallNextRequest is the optional body of a call-next.
type CallNextRequest struct {
	Counter string `json:"counter"`
}

// TicketFilter narrows ticket listings. Empty fields match everything.
type TicketFilter struct {
	EventIDs   []string
	Statuses   []TicketStatus
	CustomerID string
	// WithEvent loads each ticket's event.
	WithEvent  bool
}

// TurnNotification answers "is it my turn" for a polling client.
type TurnNotification struct {
	TicketCode    string       `json:"ticketCode"`
	IsYourTurn    bool         `json:"isYourTurn"`
	Status        TicketStatus `json:"status"`
	QueuePosition int          `json:"queuePosition"`
	PeopleAhead   int          `json:"peopleAhead"`
	Counter       string       `json:"counter,omitempty"`
}
