package queue

import (
	"context"
	"sort"
	"sync"

	"smartqueue/internal/models"
)

// Registry holds the tickets currently being served, per event. The store
// stays the source of truth; a registry can always be rebuilt from it.
type Registry interface {
	Add(ctx context.Context, ticket models.Ticket) error
	Remove(ctx context.Context, eventID, ticketID string) error
	List(ctx context.Context, eventID string) ([]models.Ticket, error)
	Reset(ctx context.Context, eventID string, tickets []models.Ticket) error
}

// SortServing orders tickets by call time, then by queue position.
func SortServing(tickets []models.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		switch {
		case a.CalledAt == nil && b.CalledAt != nil:
			return false
		case a.CalledAt != nil && b.CalledAt == nil:
			return true
		case a.CalledAt != nil && !a.CalledAt.Equal(*b.CalledAt):
			return a.CalledAt.Before(*b.CalledAt)
		}
		return a.QueuePosition < b.QueuePosition
	})
}

// MemoryRegistry is a Registry for a single API instance.
type MemoryRegistry struct {
	mu      sync.RWMutex
	serving map[string]map[string]models.Ticket
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{serving: make(map[string]map[string]models.Ticket)}
}

func (r *MemoryRegistry) Add(_ context.Context, ticket models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.serving[ticket.EventID]
	if !ok {
		byID = make(map[string]models.Ticket)
		r.serving[ticket.EventID] = byID
	}
	ticket.Event = nil
	byID[ticket.ID] = ticket
	return nil
}

func (r *MemoryRegistry) Remove(_ context.Context, eventID, ticketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.serving[eventID], ticketID)
	if len(r.serving[eventID]) == 0 {
		delete(r.serving, eventID)
	}
	return nil
}

func (r *MemoryRegistry) List(_ context.Context, eventID string) ([]models.Ticket, error) {
	r.mu.RLock()
	tickets := make([]models.Ticket, 0, len(r.serving[eventID]))
	for _, t := range r.serving[eventID] {
		tickets = append(tickets, t)
	}
	r.mu.RUnlock()

	SortServing(tickets)
	return tickets, nil
}

func (r *MemoryRegistry) Reset(_ context.Context, eventID string, tickets []models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(tickets) == 0 {
		delete(r.serving, eventID)
		return nil
	}
	byID := make(map[string]models.Ticket, len(tickets))
	for _, t := range tickets {
		t.Event = nil
		byID[t.ID] = t
	}
	r.serving[eventID] = byID
	return nil
}
