package queue

import (
	"context"
	"errors"
	"fmt"

	"smartqueue/internal/logger"
	"smartqueue/internal/models"
)

// Publisher delivers committed queue events to an outside transport.
type Publisher interface {
	Publish(ctx context.Context, event models.QueueEvent) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event models.QueueEvent) error

func (f PublisherFunc) Publish(ctx context.Context, event models.QueueEvent) error {
	return f(ctx, event)
}

// MultiPublisher fans an event out to every publisher.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event models.QueueEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher decouples publishing from the event critical section. Events
// are enqueued in commit order and delivered in that order by Run.
type Dispatcher struct {
	events    chan models.QueueEvent
	publisher Publisher
	logger    *logger.Logger
}

func NewDispatcher(publisher Publisher, buffer int, logger *logger.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		events:    make(chan models.QueueEvent, buffer),
		publisher: publisher,
		logger:    logger,
	}
}

// Enqueue never blocks. When the buffer is full the event is dropped;
// clients still see the change on their next poll.
func (d *Dispatcher) Enqueue(event models.QueueEvent) {
	if d == nil {
		return
	}
	select {
	case d.events <- event:
	default:
		d.logger.Warn("QUEUE", fmt.Sprintf("Dispatcher buffer full, dropping %s for event %s", event.Type, event.EventID))
	}
}

// Run delivers events until ctx is cancelled, then flushes what is buffered.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case event := <-d.events:
			d.deliver(ctx, event)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.events:
			d.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event models.QueueEvent) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Error("QUEUE", fmt.Sprintf("Failed to publish %s for event %s: %v", event.Type, event.EventID, err))
	}
}
