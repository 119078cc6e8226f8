package queue_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"smartqueue/internal/apperr"
	"smartqueue/internal/auth"
	"smartqueue/internal/logger"
	"smartqueue/internal/models"
	"smartqueue/internal/qr"
	"smartqueue/internal/utils"
)

// QueueService is the part of queue.Engine the HTTP layer drives.
type QueueService interface {
	CreateEvent(ctx context.Context, adminID string, req models.CreateEventRequest) (*models.Event, error)
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	SetEventActive(ctx context.Context, eventID string, active bool) (*models.Event, error)
	CloseEvent(ctx context.Context, eventID string) (*models.Event, error)
	BookTicketFor(ctx context.Context, eventID, customerName, customerID string) (*models.Ticket, error)
	CallNext(ctx context.Context, eventID, counter string) (*models.Ticket, error)
	MarkDone(ctx context.Context, ticketID string) (*models.Ticket, error)
	Skip(ctx context.Context, ticketID string) (*models.Ticket, error)
	Cancel(ctx context.Context, ticketCode string) (*models.Ticket, error)
	GetTicket(ctx context.Context, code string) (*models.Ticket, error)
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	Notification(ctx context.Context, code string) (*models.TurnNotification, error)
	CurrentlyServing(ctx context.Context, eventID string) ([]models.Ticket, error)
	ListTickets(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
	CustomerTickets(ctx context.Context, customerID string) ([]models.Ticket, error)
	Stats(ctx context.Context, eventID string) (*models.QueueStats, error)
}

// Subscriber feeds the display stream.
type Subscriber interface {
	Subscribe(ctx context.Context, eventID string) <-chan models.QueueEvent
}

type Handler struct {
	Service   QueueService
	Events    Subscriber
	QR        *qr.Generator
	Logger    *logger.Logger
	KeepAlive time.Duration
}

func NewHandler(service QueueService, events Subscriber, qrGen *qr.Generator, logger *logger.Logger) *Handler {
	return &Handler{
		Service:   service,
		Events:    events,
		QR:        qrGen,
		Logger:    logger,
		KeepAlive: 15 * time.Second,
	}
}

// RegisterPublicRoutes mounts the customer and display routes. Booking is
// registered separately so the caller can rate limit it.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Get("/events/{eventId}", h.GetEvent)
	r.Get("/tickets/{code}", h.GetTicket)
	r.Get("/tickets/{code}/notification", h.Notification)
	r.Post("/tickets/{code}/cancel", h.Cancel)
	r.Get("/tickets/{code}/qr", h.TicketQR)
	r.Get("/display/current-serving/{eventId}", h.CurrentServing)
	r.Get("/display/stream/{eventId}", h.Stream)
}

// RegisterBookingRoutes mounts booking. A customer principal, when the caller
// sets one, owns the booked ticket.
func (h *Handler) RegisterBookingRoutes(r chi.Router) {
	r.Post("/tickets/book/{eventId}", h.BookTicket)
}

// RegisterCustomerRoutes expects the customer scope to be enforced by the caller.
func (h *Handler) RegisterCustomerRoutes(r chi.Router) {
	r.Get("/customer/tickets", h.CustomerTickets)
}

// RegisterAdminRoutes expects the admin scope to be enforced by the caller.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/admin/events", h.CreateEvent)
	r.Get("/admin/events", h.ListAdminEvents)
	r.Get("/admin/tickets", h.ListAdminTickets)
	r.Post("/admin/call-next/{eventId}", h.CallNext)
	r.Post("/admin/mark-done/{ticketId}", h.MarkDone)
	r.Post("/admin/skip/{ticketId}", h.Skip)
	r.Post("/admin/events/{eventId}/activate", h.Activate)
	r.Post("/admin/events/{eventId}/deactivate", h.Deactivate)
	r.Post("/admin/events/{eventId}/close", h.CloseEvent)
	r.Get("/admin/events/{eventId}/stats", h.Stats)
}

// decodeOptional accepts an empty body as the zero value.
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("request body is not valid JSON: %w", apperr.ErrInvalidInput)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	events, err := h.Service.ListEvents(r.Context(), models.EventFilter{ActiveOnly: activeOnly})
	if err != nil {
		h.fail(w, "ListEvents", err)
		return
	}
	writeEvents(w, events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, "GetEvent", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) BookTicket(w http.ResponseWriter, r *http.Request) {
	var req models.BookTicketRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, "BookTicket", err)
		return
	}
	var customerID string
	if p, ok := auth.PrincipalFrom(r.Context()); ok && p.Scope == auth.ScopeCustomer {
		customerID = p.Subject
	}
	ticket, err := h.Service.BookTicketFor(r.Context(), chi.URLParam(r, "eventId"), req.CustomerName, customerID)
	if err != nil {
		h.fail(w, "BookTicket", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) CustomerTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Service.CustomerTickets(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		h.fail(w, "CustomerTickets", err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	utils.WriteJSON(w, http.StatusOK, tickets)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Service.GetTicket(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "GetTicket", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) Notification(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.Notification(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "Notification", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "Cancel", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	// Only issued codes get an image.
	ticket, err := h.Service.GetTicket(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "TicketQR", err)
		return
	}
	png, err := h.QR.TicketPNG(ticket.TicketCode)
	if err != nil {
		h.fail(w, "TicketQR", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) CurrentServing(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Service.CurrentlyServing(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, "CurrentServing", err)
		return
	}
	writeTickets(w, tickets)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "CreateEvent", fmt.Errorf("request body is not valid JSON: %w", apperr.ErrInvalidInput))
		return
	}
	event, err := h.Service.CreateEvent(r.Context(), auth.Subject(r.Context()), req)
	if err != nil {
		h.fail(w, "CreateEvent", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateEvent: event %s by admin %s", event.ID, event.CreatedBy))
	utils.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) ListAdminEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Service.ListEvents(r.Context(), models.EventFilter{CreatedBy: auth.Subject(r.Context())})
	if err != nil {
		h.fail(w, "ListAdminEvents", err)
		return
	}
	writeEvents(w, events)
}

// ListAdminTickets lists tickets of the caller's events. status may be a
// comma-separated list.
func (h *Handler) ListAdminTickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var filter models.TicketFilter
	for _, raw := range strings.Split(query.Get("status"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, ok := models.ParseTicketStatus(raw)
		if !ok {
			h.fail(w, "ListAdminTickets", fmt.Errorf("unknown ticket status %q: %w", raw, apperr.ErrInvalidInput))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	if eventID := query.Get("eventId"); eventID != "" {
		if _, err := h.ownedEvent(ctx, eventID); err != nil {
			h.fail(w, "ListAdminTickets", err)
			return
		}
		filter.EventIDs = []string{eventID}
	} else {
		events, err := h.Service.ListEvents(ctx, models.EventFilter{CreatedBy: auth.Subject(ctx)})
		if err != nil {
			h.fail(w, "ListAdminTickets", err)
			return
		}
		if len(events) == 0 {
			writeTickets(w, nil)
			return
		}
		for _, e := range events {
			filter.EventIDs = append(filter.EventIDs, e.ID)
		}
	}

	tickets, err := h.Service.ListTickets(ctx, filter)
	if err != nil {
		h.fail(w, "ListAdminTickets", err)
		return
	}
	writeTickets(w, tickets)
}

func (h *Handler) CallNext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "eventId")

	var req models.CallNextRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, "CallNext", err)
		return
	}
	if _, err := h.ownedEvent(ctx, eventID); err != nil {
		h.fail(w, "CallNext", err)
		return
	}
	ticket, err := h.Service.CallNext(ctx, eventID, req.Counter)
	if err != nil {
		h.fail(w, "CallNext", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) MarkDone(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, "MarkDone", h.Service.MarkDone)
}

func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, "Skip", h.Service.Skip)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) (*models.Ticket, error)) {
	ctx := r.Context()
	ticketID := chi.URLParam(r, "ticketId")

	current, err := h.Service.GetTicketByID(ctx, ticketID)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	if _, err := h.ownedEvent(ctx, current.EventID); err != nil {
		h.fail(w, op, err)
		return
	}
	ticket, err := fn(ctx, ticketID)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.updateEvent(w, r, "Activate", func(ctx context.Context, id string) (*models.Event, error) {
		return h.Service.SetEventActive(ctx, id, true)
	})
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.updateEvent(w, r, "Deactivate", func(ctx context.Context, id string) (*models.Event, error) {
		return h.Service.SetEventActive(ctx, id, false)
	})
}

func (h *Handler) CloseEvent(w http.ResponseWriter, r *http.Request) {
	h.updateEvent(w, r, "CloseEvent", h.Service.CloseEvent)
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) (*models.Event, error)) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "eventId")
	if _, err := h.ownedEvent(ctx, eventID); err != nil {
		h.fail(w, op, err)
		return
	}
	event, err := fn(ctx, eventID)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("%s: event %s", op, eventID))
	utils.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "eventId")
	if _, err := h.ownedEvent(ctx, eventID); err != nil {
		h.fail(w, "Stats", err)
		return
	}
	stats, err := h.Service.Stats(ctx, eventID)
	if err != nil {
		h.fail(w, "Stats", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func writeEvents(w http.ResponseWriter, events []models.Event) {
	if events == nil {
		events = []models.Event{}
	}
	utils.WriteJSON(w, http.StatusOK, events)
}

func writeTickets(w http.ResponseWriter, tickets []models.Ticket) {
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	utils.WriteJSON(w, http.StatusOK, tickets)
}
