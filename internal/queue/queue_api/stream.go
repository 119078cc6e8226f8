package queue_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"smartqueue/internal/models"
)

// Stream pushes the currently-serving list of an event over Server-Sent
// Events: once on connect, then again after every queue notice.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "eventId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	serving, err := h.Service.CurrentlyServing(ctx, eventID)
	if err != nil {
		h.fail(w, "Stream", err)
		return
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events := h.Events.Subscribe(ctx, eventID)
	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventId\":%q}\n\n", eventID)
	h.writeServing(w, serving)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Display connected for event %s", eventID))

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.writeEvent(w, "queue", ev)
			serving, err := h.Service.CurrentlyServing(ctx, eventID)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to reload serving list for event %s: %v", eventID, err))
				continue
			}
			h.writeServing(w, serving)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Display disconnected from event %s", eventID))
			return
		}
	}
}

func (h *Handler) writeServing(w http.ResponseWriter, tickets []models.Ticket) {
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	h.writeEvent(w, "serving", tickets)
}

func (h *Handler) writeEvent(w http.ResponseWriter, name string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize %s event: %v", name, err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
