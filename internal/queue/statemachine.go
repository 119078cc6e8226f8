package queue

import "smartqueue/internal/models"

var transitions = map[models.TicketStatus][]models.TicketStatus{
	models.TicketStatusWaiting: {models.TicketStatusCalled, models.TicketStatusSkipped, models.TicketStatusCancelled},
	models.TicketStatusCalled:  {models.TicketStatusServed, models.TicketStatusSkipped, models.TicketStatusCancelled},
}

// CanTransition reports whether a ticket may move from one status to another.
// Terminal statuses have no outgoing edges.
func CanTransition(from, to models.TicketStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sources lists the statuses that may move to the given status.
func sources(to models.TicketStatus) []models.TicketStatus {
	var from []models.TicketStatus
	for _, s := range []models.TicketStatus{models.TicketStatusWaiting, models.TicketStatusCalled} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

func eventTypeFor(status models.TicketStatus) models.QueueEventType {
	switch status {
	case models.TicketStatusCalled:
		return models.QueueEventTicketCalled
	case models.TicketStatusServed:
		return models.QueueEventTicketServed
	case models.TicketStatusSkipped:
		return models.QueueEventTicketSkipped
	case models.TicketStatusCancelled:
		return models.QueueEventTicketCancelled
	}
	return models.QueueEventTicketBooked
}
