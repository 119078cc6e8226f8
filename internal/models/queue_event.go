package models

import "time"

type QueueEventType string

const (
	QueueEventTicketBooked    QueueEventType = "ticket.booked"
	QueueEventTicketCalled    QueueEventType = "ticket.called"
	QueueEventTicketServed    QueueEventType = "ticket.served"
	QueueEventTicketSkipped   QueueEventType = "ticket.skipped"
	QueueEventTicketCancelled QueueEventType = "ticket.cancelled"
	QueueEventEventClosed     QueueEventType = "event.closed"
)

// QueueEvent is published after every committed queue transition.
type QueueEvent struct {
	Type          QueueEventType `json:"type"`
	EventID       string         `json:"eventId"`
	TicketID      string         `json:"ticketId,omitempty"`
	TicketCode    string         `json:"ticketCode,omitempty"`
	QueuePosition int            `json:"queuePosition,omitempty"`
	Status        TicketStatus   `json:"status,omitempty"`
	Counter       string         `json:"counter,omitempty"`
	OccurredAt    time.Time      `json:"occurredAt"`
}

// NewTicketEvent builds the notice for a ticket transition.
func NewTicketEvent(eventType QueueEventType, ticket Ticket, at time.Time) QueueEvent {
	return QueueEvent{
		Type:          eventType,
		EventID:       ticket.EventID,
		TicketID:      ticket.ID,
		TicketCode:    ticket.TicketCode,
		QueuePosition: ticket.QueuePosition,
		Status:        ticket.Status,
		Counter:       ticket.Counter,
		OccurredAt:    at,
	}
}
