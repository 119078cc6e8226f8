package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"smartqueue/internal/models"
	"smartqueue/internal/queue"
)

var _ queue.Store = (*DB)(nil)

type DB struct {
	Bun *bun.DB
}

type txKey struct{}

// InTx runs fn in a transaction carried by the context. Nested calls join
// the outer transaction.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (d *DB) conn(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return d.Bun
}

func notFound(err, domain error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain
	}
	return err
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	if _, err := d.conn(ctx).NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.conn(ctx).NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, queue.ErrEventNotFound)
	}
	return &event, nil
}

func (d *DB) GetEventForUpdate(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	q := d.conn(ctx).NewSelect().
		Model(&event).
		Where("id = ?", id)
	// SQLite has no row locks; its single writer connection serializes instead.
	if d.Bun.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, notFound(err, queue.ErrEventNotFound)
	}
	return &event, nil
}

func (d *DB) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	var events []models.Event
	q := d.conn(ctx).NewSelect().Model(&events).Order("created_at DESC")
	if filter.CreatedBy != "" {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (d *DB) SetIssuedTokens(ctx context.Context, eventID string, issued int) error {
	return d.updateEvent(ctx, eventID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("issued_tokens = ?", issued)
	})
}

func (d *DB) AdjustActiveCount(ctx context.Context, eventID string, delta int) error {
	return d.updateEvent(ctx, eventID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("current_token_count = current_token_count + ?", delta)
	})
}

func (d *DB) SetEventActive(ctx context.Context, eventID string, active bool, at time.Time) error {
	return d.updateEvent(ctx, eventID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("is_active = ?", active).Set("updated_at = ?", at)
	})
}

func (d *DB) updateEvent(ctx context.Context, eventID string, set func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Where("id = ?", eventID)
	res, err := set(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrEventNotFound
	}
	return nil
}

func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if _, err := d.conn(ctx).NewInsert().Model(ticket).Exec(ctx); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (d *DB) TicketCodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := d.conn(ctx).NewSelect().
		Model((*models.Ticket)(nil)).
		Where("ticket_code = ?", code).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check ticket code: %w", err)
	}
	return exists, nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	return d.getTicket(ctx, "ticket.id = ?", id)
}

func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	return d.getTicket(ctx, "ticket.ticket_code = ?", code)
}

func (d *DB) getTicket(ctx context.Context, where string, arg interface{}) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.conn(ctx).NewSelect().
		Model(&ticket).
		Relation("Event").
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, queue.ErrTicketNotFound)
	}
	return &ticket, nil
}

func (d *DB) NextWaiting(ctx context.Context, eventID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.conn(ctx).NewSelect().
		Model(&ticket).
		Where("event_id = ?", eventID).
		Where("status = ?", models.TicketStatusWaiting).
		Order("queue_position ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, queue.ErrQueueEmpty)
	}
	return &ticket, nil
}

func (d *DB) UpdateTicketStatus(ctx context.Context, ticket *models.Ticket, from ...models.TicketStatus) error {
	res, err := d.conn(ctx).NewUpdate().
		Model(ticket).
		Column("status", "counter", "called_at", "completed_at", "updated_at").
		WherePK().
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update ticket %s: %w", ticket.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrInvalidTransition
	}
	return nil
}

func (d *DB) CancelActiveTickets(ctx context.Context, eventID string, at time.Time) (int, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusCancelled).
		Set("completed_at = ?", at).
		Set("updated_at = ?", at).
		Where("event_id = ?", eventID).
		Where("status IN (?)", bun.In(models.ActiveTicketStatuses)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("cancel tickets of event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (d *DB) CountWaitingAhead(ctx context.Context, eventID string, position int) (int, error) {
	count, err := d.conn(ctx).NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.TicketStatusWaiting).
		Where("queue_position < ?", position).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count waiting tickets: %w", err)
	}
	return count, nil
}

func (d *DB) ListTickets(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	var tickets []models.Ticket
	q := d.conn(ctx).NewSelect().
		Model(&tickets).
		Order("ticket.event_id ASC", "ticket.queue_position ASC")
	if len(filter.EventIDs) > 0 {
		q = q.Where("ticket.event_id IN (?)", bun.In(filter.EventIDs))
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("ticket.status IN (?)", bun.In(filter.Statuses))
	}
	if filter.CustomerID != "" {
		q = q.Where("ticket.customer_id = ?", filter.CustomerID)
	}
	if filter.WithEvent {
		q = q.Relation("Event")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}
