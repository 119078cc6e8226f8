package sse

import (
	"context"
	"sync"

	"smartqueue/internal/models"
)

const clientBuffer = 16

// QueueEventHub fans queue events out to the display streams watching each event.
type QueueEventHub struct {
	mu      sync.RWMutex
	clients map[string][]chan models.QueueEvent
}

func NewQueueEventHub() *QueueEventHub {
	return &QueueEventHub{clients: make(map[string][]chan models.QueueEvent)}
}

// Subscribe registers a client for one event. The channel is closed once ctx is done.
func (h *QueueEventHub) Subscribe(ctx context.Context, eventID string) <-chan models.QueueEvent {
	clientChan := make(chan models.QueueEvent, clientBuffer)

	h.mu.Lock()
	h.clients[eventID] = append(h.clients[eventID], clientChan)
	h.mu.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		h.remove(eventID, clientChan)
	}()

	return clientChan
}

// Publish broadcasts to every subscriber of the event. A client whose buffer
// is full misses the notice; it catches up from the next snapshot.
func (h *QueueEventHub) Publish(_ context.Context, event models.QueueEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clientChan := range h.clients[event.EventID] {
		select {
		case clientChan <- event:
		default:
		}
	}
	return nil
}

// Subscribers counts the open streams for an event.
func (h *QueueEventHub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[eventID])
}

func (h *QueueEventHub) remove(eventID string, clientChan chan models.QueueEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			h.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	// Clean up map entry if no more clients
	if len(h.clients[eventID]) == 0 {
		delete(h.clients, eventID)
	}
}
