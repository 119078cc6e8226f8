package queue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"smartqueue/internal/apperr"
	"smartqueue/internal/logger"
	"smartqueue/internal/models"
	"smartqueue/internal/utils"
)

const maxCodeAttempts = 5

type Options struct {
	Locker                Locker
	Registry              Registry
	Dispatcher            *Dispatcher
	Logger                *logger.Logger
	TicketCodeLength      int
	DefaultServiceMinutes int
	Now                   func() time.Time
	NewCode               func() (string, error)
}

// Engine runs admission, allocation and the ticket state machine. Every
// mutation of an event's queue happens under that event's lock; reads never
// take it.
type Engine struct {
	store                 Store
	allocator             *Allocator
	locker                Locker
	registry              Registry
	dispatcher            *Dispatcher
	logger                *logger.Logger
	defaultServiceMinutes int
	now                   func() time.Time
	newCode               func() (string, error)
}

func NewEngine(store Store, opts Options) *Engine {
	e := &Engine{
		store:                 store,
		allocator:             NewAllocator(store),
		locker:                opts.Locker,
		registry:              opts.Registry,
		dispatcher:            opts.Dispatcher,
		logger:                opts.Logger,
		defaultServiceMinutes: opts.DefaultServiceMinutes,
		now:                   opts.Now,
		newCode:               opts.NewCode,
	}
	if e.locker == nil {
		e.locker = NewLocalLocker(0)
	}
	if e.registry == nil {
		e.registry = NewMemoryRegistry()
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newCode == nil {
		length := opts.TicketCodeLength
		if length <= 0 {
			length = 8
		}
		e.newCode = func() (string, error) { return utils.GenerateTicketCode(length) }
	}
	return e
}

func (e *Engine) CreateEvent(ctx context.Context, adminID string, req models.CreateEventRequest) (*models.Event, error) {
	name := strings.TrimSpace(req.DisplayName())
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if req.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: maxTokens must be greater than zero", ErrInvalidEvent)
	}
	serviceMinutes := e.defaultServiceMinutes
	if req.AverageServiceMinutes != nil {
		if *req.AverageServiceMinutes < 0 {
			return nil, fmt.Errorf("%w: averageServiceMinutes cannot be negative", ErrInvalidEvent)
		}
		serviceMinutes = *req.AverageServiceMinutes
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := e.now()
	event := &models.Event{
		ID:                    utils.GenerateID(),
		Name:                  name,
		Description:           strings.TrimSpace(req.Description),
		Location:              strings.TrimSpace(req.Location),
		EventDate:             req.EventDate,
		MaxTokens:             req.MaxTokens,
		AverageServiceMinutes: serviceMinutes,
		IsActive:              active,
		CreatedBy:             adminID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := e.store.CreateEvent(ctx, event); err != nil {
		e.logger.Error("QUEUE", fmt.Sprintf("Failed to create event %q: %v", name, err))
		return nil, err
	}
	e.logger.LogQueue("CREATE_EVENT", event.ID, fmt.Sprintf("%q with %d tokens by %s", name, event.MaxTokens, adminID))
	return event, nil
}

func (e *Engine) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return e.store.GetEvent(ctx, eventID)
}

func (e *Engine) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	return e.store.ListEvents(ctx, filter)
}

// SetEventActive opens or pauses bookings. Tickets already issued are untouched.
func (e *Engine) SetEventActive(ctx context.Context, eventID string, active bool) (*models.Event, error) {
	unlock, err := e.locker.Lock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var event *models.Event
	err = e.store.InTx(ctx, func(ctx context.Context) error {
		if err := e.store.SetEventActive(ctx, eventID, active, e.now()); err != nil {
			return err
		}
		event, err = e.store.GetEvent(ctx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.LogQueue("SET_ACTIVE", eventID, fmt.Sprintf("isActive=%t", active))
	return event, nil
}

// CloseEvent deactivates the event and cancels every ticket still in its queue.
func (e *Engine) CloseEvent(ctx context.Context, eventID string) (*models.Event, error) {
	unlock, err := e.locker.Lock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := e.now()
	var (
		event     *models.Event
		cancelled int
	)
	err = e.store.InTx(ctx, func(ctx context.Context) error {
		if err := e.store.SetEventActive(ctx, eventID, false, now); err != nil {
			return err
		}
		cancelled, err = e.store.CancelActiveTickets(ctx, eventID, now)
		if err != nil {
			return err
		}
		if cancelled > 0 {
			if err := e.store.AdjustActiveCount(ctx, eventID, -cancelled); err != nil {
				return err
			}
		}
		event, err = e.store.GetEvent(ctx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := e.registry.Reset(ctx, eventID, nil); err != nil {
		e.logger.Error("QUEUE", fmt.Sprintf("Failed to clear serving registry for event %s: %v", eventID, err))
	}
	e.dispatcher.Enqueue(models.QueueEvent{Type: models.QueueEventEventClosed, EventID: eventID, OccurredAt: now})
	e.logger.LogQueue("CLOSE_EVENT", eventID, fmt.Sprintf("cancelled %d active tickets", cancelled))
	return event, nil
}

// BookTicket admits an anonymous customer into the event's queue.
func (e *Engine) BookTicket(ctx context.Context, eventID, customerName string) (*models.Ticket, error) {
	return e.BookTicketFor(ctx, eventID, customerName, "")
}

// BookTicketFor admits a customer into the event's queue and, when customerID
// is set, links the ticket to that account. Position allocation, ticket
// insert and the count update commit together or not at all.
func (e *Engine) BookTicketFor(ctx context.Context, eventID, customerName, customerID string) (*models.Ticket, error) {
	unlock, err := e.locker.Lock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var ticket *models.Ticket
	err = e.store.InTx(ctx, func(ctx context.Context) error {
		position, err := e.allocator.Allocate(ctx, eventID)
		if err != nil {
			return err
		}
		code, err := e.uniqueCode(ctx)
		if err != nil {
			return err
		}

		now := e.now()
		ticket = &models.Ticket{
			ID:            utils.GenerateID(),
			EventID:       eventID,
			TicketCode:    code,
			QueuePosition: position,
			CustomerName:  strings.TrimSpace(customerName),
			CustomerID:    customerID,
			Status:        models.TicketStatusWaiting,
			BookingTime:   now,
			UpdatedAt:     now,
		}
		if err := e.store.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		if err := e.store.AdjustActiveCount(ctx, eventID, 1); err != nil {
			return err
		}
		ticket.Event, err = e.store.GetEvent(ctx, eventID)
		return err
	})
	if err != nil {
		e.logger.LogQueue("BOOK_REJECTED", eventID, err.Error())
		return nil, err
	}

	if ahead, err := e.store.CountWaitingAhead(ctx, eventID, ticket.QueuePosition); err != nil {
		e.logger.Error("QUEUE", fmt.Sprintf("Failed to rank ticket %s after booking: %v", ticket.TicketCode, err))
	} else {
		ticket.PeopleAhead = ahead
		ticket.EstimatedWaitMinutes = ahead * ticket.Event.AverageServiceMinutes
	}

	e.dispatcher.Enqueue(models.NewTicketEvent(models.QueueEventTicketBooked, *ticket, ticket.BookingTime))
	e.logger.LogQueue("BOOK", eventID, fmt.Sprintf("ticket %s at position %d", ticket.TicketCode, ticket.QueuePosition))
	return ticket, nil
}

func (e *Engine) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := e.newCode()
		if err != nil {
			return "", fmt.Errorf("generate ticket code: %w", err)
		}
		exists, err := e.store.TicketCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique ticket code after %d attempts: %w", maxCodeAttempts, apperr.ErrConflict)
}

// CallNext calls the WAITING ticket with the lowest position.
func (e *Engine) CallNext(ctx context.Context, eventID, counter string) (*models.Ticket, error) {
	unlock, err := e.locker.Lock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var ticket *models.Ticket
	err = e.store.InTx(ctx, func(ctx context.Context) error {
		if _, err := e.store.GetEvent(ctx, eventID); err != nil {
			return err
		}
		ticket, err = e.store.NextWaiting(ctx, eventID)
		if err != nil {
			return err
		}
		now := e.now()
		ticket.Status = models.TicketStatusCalled
		ticket.Counter = strings.TrimSpace(counter)
		ticket.CalledAt = &now
		ticket.UpdatedAt = now
		return e.store.UpdateTicketStatus(ctx, ticket, models.TicketStatusWaiting)
	})
	if err != nil {
		return nil, err
	}

	if err := e.registry.Add(ctx, *ticket); err != nil {
		e.logger.Error("QUEUE", fmt.Sprintf("Failed to add ticket %s to serving registry: %v", ticket.TicketCode, err))
		e.resync(ctx, eventID)
	}
	e.dispatcher.Enqueue(models.NewTicketEvent(models.QueueEventTicketCalled, *ticket, *ticket.CalledAt))
	e.logger.LogQueue("CALL_NEXT", eventID, fmt.Sprintf("ticket %s at position %d to counter %q", ticket.TicketCode, ticket.QueuePosition, ticket.Counter))
	return ticket, nil
}

// MarkDone completes a CALLED ticket.
func (e *Engine) MarkDone(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return e.finish(ctx, ticketID, "", models.TicketStatusServed)
}

// Skip removes a WAITING or CALLED ticket from the queue. Its position is
// never handed out again.
func (e *Engine) Skip(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return e.finish(ctx, ticketID, "", models.TicketStatusSkipped)
}

// Cancel lets a customer withdraw their own ticket.
func (e *Engine) Cancel(ctx context.Context, ticketCode string) (*models.Ticket, error) {
	return e.finish(ctx, "", normalizeCode(ticketCode), models.TicketStatusCancelled)
}

// normalizeCode makes lookups by code case-insensitive; codes are issued uppercase.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// finish moves a ticket, found by id or by code, into a terminal status.
func (e *Engine) finish(ctx context.Context, ticketID, ticketCode string, to models.TicketStatus) (*models.Ticket, error) {
	lookup := func(ctx context.Context) (*models.Ticket, error) {
		if ticketCode != "" {
			return e.store.GetTicketByCode(ctx, ticketCode)
		}
		return e.store.GetTicketByID(ctx, ticketID)
	}

	// The event is immutable on a ticket, so it is safe to learn it before locking.
	current, err := lookup(ctx)
	if err != nil {
		return nil, err
	}
	eventID := current.EventID

	unlock, err := e.locker.Lock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		ticket    *models.Ticket
		wasCalled bool
	)
	err = e.store.InTx(ctx, func(ctx context.Context) error {
		ticket, err = lookup(ctx)
		if err != nil {
			return err
		}
		if !CanTransition(ticket.Status, to) {
			return fmt.Errorf("%s -> %s: %w", ticket.Status, to, ErrInvalidTransition)
		}
		wasCalled = ticket.Status == models.TicketStatusCalled

		now := e.now()
		ticket.Status = to
		ticket.CompletedAt = &now
		ticket.UpdatedAt = now
		if err := e.store.UpdateTicketStatus(ctx, ticket, sources(to)...); err != nil {
			return err
		}
		return e.store.AdjustActiveCount(ctx, eventID, -1)
	})
	if err != nil {
		return nil, err
	}

	if wasCalled {
		if err := e.registry.Remove(ctx, eventID, ticket.ID); err != nil {
			e.logger.Error("QUEUE", fmt.Sprintf("Failed to remove ticket %s from serving registry: %v", ticket.TicketCode, err))
			e.resync(ctx, eventID)
		}
	}
	e.dispatcher.Enqueue(models.NewTicketEvent(eventTypeFor(to), *ticket, *ticket.CompletedAt))
	e.logger.LogQueue(string(to), eventID, fmt.Sprintf("ticket %s at position %d", ticket.TicketCode, ticket.QueuePosition))
	return ticket, nil
}

// GetTicket returns the ticket with its event and its current rank.
func (e *Engine) GetTicket(ctx context.Context, code string) (*models.Ticket, error) {
	ticket, err := e.store.GetTicketByCode(ctx, normalizeCode(code))
	if err != nil {
		return nil, err
	}
	if ticket.Status == models.TicketStatusWaiting {
		ticket.PeopleAhead, err = e.store.CountWaitingAhead(ctx, ticket.EventID, ticket.QueuePosition)
		if err != nil {
			return nil, err
		}
		if ticket.Event != nil {
			ticket.EstimatedWaitMinutes = ticket.PeopleAhead * ticket.Event.AverageServiceMinutes
		}
	}
	return ticket, nil
}

// GetTicketByID is the admin lookup; it does not compute the rank.
func (e *Engine) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return e.store.GetTicketByID(ctx, ticketID)
}

// IsYourTurn is true only while the ticket is CALLED.
func (e *Engine) IsYourTurn(ctx context.Context, code string) (bool, error) {
	ticket, err := e.store.GetTicketByCode(ctx, normalizeCode(code))
	if err != nil {
		return false, err
	}
	return ticket.Status == models.TicketStatusCalled, nil
}

func (e *Engine) Notification(ctx context.Context, code string) (*models.TurnNotification, error) {
	ticket, err := e.GetTicket(ctx, code)
	if err != nil {
		return nil, err
	}
	return &models.TurnNotification{
		TicketCode:    ticket.TicketCode,
		IsYourTurn:    ticket.Status == models.TicketStatusCalled,
		Status:        ticket.Status,
		QueuePosition: ticket.QueuePosition,
		PeopleAhead:   ticket.PeopleAhead,
		Counter:       ticket.Counter,
	}, nil
}

// CurrentlyServing lists the event's CALLED tickets from the registry.
func (e *Engine) CurrentlyServing(ctx context.Context, eventID string) ([]models.Ticket, error) {
	if _, err := e.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return e.registry.List(ctx, eventID)
}

func (e *Engine) ListTickets(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	return e.store.ListTickets(ctx, filter)
}

// CustomerTickets lists a customer's tickets, newest first, ranked like GetTicket.
func (e *Engine) CustomerTickets(ctx context.Context, customerID string) ([]models.Ticket, error) {
	tickets, err := e.store.ListTickets(ctx, models.TicketFilter{CustomerID: customerID, WithEvent: true})
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		t := &tickets[i]
		if t.Status != models.TicketStatusWaiting {
			continue
		}
		t.PeopleAhead, err = e.store.CountWaitingAhead(ctx, t.EventID, t.QueuePosition)
		if err != nil {
			return nil, err
		}
		if t.Event != nil {
			t.EstimatedWaitMinutes = t.PeopleAhead * t.Event.AverageServiceMinutes
		}
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].BookingTime.After(tickets[j].BookingTime)
	})
	return tickets, nil
}

// Stats summarizes the event's queue. Averages are in minutes over the
// tickets that reached the relevant step.
func (e *Engine) Stats(ctx context.Context, eventID string) (*models.QueueStats, error) {
	event, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	counts, err := e.store.CountTicketsByStatus(ctx, eventID)
	if err != nil {
		return nil, err
	}
	tickets, err := e.store.ListTickets(ctx, models.TicketFilter{EventIDs: []string{eventID}})
	if err != nil {
		return nil, err
	}

	var waitTotal, serviceTotal time.Duration
	var waitN, serviceN int
	for _, t := range tickets {
		if t.CalledAt == nil {
			continue
		}
		waitTotal += t.CalledAt.Sub(t.BookingTime)
		waitN++
		if t.Status == models.TicketStatusServed && t.CompletedAt != nil {
			serviceTotal += t.CompletedAt.Sub(*t.CalledAt)
			serviceN++
		}
	}

	stats := &models.QueueStats{
		EventID:           eventID,
		MaxTokens:         event.MaxTokens,
		IssuedTokens:      event.IssuedTokens,
		CurrentTokenCount: event.CurrentTokenCount,
		Waiting:           counts[models.TicketStatusWaiting],
		Called:            counts[models.TicketStatusCalled],
		Served:            counts[models.TicketStatusServed],
		Skipped:           counts[models.TicketStatusSkipped],
		Cancelled:         counts[models.TicketStatusCancelled],
	}
	if waitN > 0 {
		stats.AverageWaitMinutes = waitTotal.Minutes() / float64(waitN)
	}
	if serviceN > 0 {
		stats.AverageServiceMinutes = serviceTotal.Minutes() / float64(serviceN)
	}
	return stats, nil
}

// RestoreServing rebuilds the registry for every event from the store.
func (e *Engine) RestoreServing(ctx context.Context) error {
	events, err := e.store.ListEvents(ctx, models.EventFilter{})
	if err != nil {
		return err
	}
	called, err := e.store.ListTickets(ctx, models.TicketFilter{Statuses: []models.TicketStatus{models.TicketStatusCalled}})
	if err != nil {
		return err
	}
	byEvent := make(map[string][]models.Ticket)
	for _, t := range called {
		byEvent[t.EventID] = append(byEvent[t.EventID], t)
	}
	for _, event := range events {
		if err := e.registry.Reset(ctx, event.ID, byEvent[event.ID]); err != nil {
			return fmt.Errorf("restore serving registry for event %s: %w", event.ID, err)
		}
	}
	e.logger.LogQueue("RESTORE", "*", fmt.Sprintf("%d called tickets across %d events", len(called), len(events)))
	return nil
}

// resync replaces an event's registry entries with the store's CALLED tickets.
func (e *Engine) resync(ctx context.Context, eventID string) {
	called, err := e.store.ListTickets(ctx, models.TicketFilter{
		EventIDs: []string{eventID},
		Statuses: []models.TicketStatus{models.TicketStatusCalled},
	})
	if err == nil {
		err = e.registry.Reset(ctx, eventID, called)
	}
	if err != nil {
		e.logger.Error("QUEUE", fmt.Sprintf("Failed to resync serving registry for event %s: %v", eventID, err))
	}
}
