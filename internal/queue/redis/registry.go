package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"smartqueue/internal/models"
	"smartqueue/internal/queue"
)

// Registry keeps each event's serving list in Redis: a sorted set of ticket
// ids scored by call time, and a hash of ticket snapshots.
type Registry struct {
	Client *redis.Client
}

var _ queue.Registry = (*Registry)(nil)

func NewRegistry(client *redis.Client) *Registry {
	return &Registry{Client: client}
}

func orderKey(eventID string) string    { return "queue_serving:" + eventID }
func snapshotKey(eventID string) string { return "queue_serving_tickets:" + eventID }

func score(ticket models.Ticket) float64 {
	if ticket.CalledAt == nil {
		return float64(ticket.QueuePosition)
	}
	return float64(ticket.CalledAt.UnixMicro())
}

func encode(ticket models.Ticket) (string, error) {
	ticket.Event = nil
	b, err := json.Marshal(ticket)
	if err != nil {
		return "", fmt.Errorf("encode ticket %s: %w", ticket.ID, err)
	}
	return string(b), nil
}

func (r *Registry) Add(ctx context.Context, ticket models.Ticket) error {
	payload, err := encode(ticket)
	if err != nil {
		return err
	}
	_, err = r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, orderKey(ticket.EventID), &redis.Z{Score: score(ticket), Member: ticket.ID})
		pipe.HSet(ctx, snapshotKey(ticket.EventID), ticket.ID, payload)
		return nil
	})
	return err
}

func (r *Registry) Remove(ctx context.Context, eventID, ticketID string) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, orderKey(eventID), ticketID)
		pipe.HDel(ctx, snapshotKey(eventID), ticketID)
		return nil
	})
	return err
}

func (r *Registry) List(ctx context.Context, eventID string) ([]models.Ticket, error) {
	ids, err := r.Client.ZRange(ctx, orderKey(eventID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Ticket{}, nil
	}

	values, err := r.Client.HMGet(ctx, snapshotKey(eventID), ids...).Result()
	if err != nil {
		return nil, err
	}
	tickets := make([]models.Ticket, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Snapshot missing for an ordered id; skip rather than fail the display.
			continue
		}
		var t models.Ticket
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode ticket %s: %w", ids[i], err)
		}
		tickets = append(tickets, t)
	}
	queue.SortServing(tickets)
	return tickets, nil
}

func (r *Registry) Reset(ctx context.Context, eventID string, tickets []models.Ticket) error {
	members := make([]*redis.Z, 0, len(tickets))
	snapshots := make(map[string]interface{}, len(tickets))
	for _, t := range tickets {
		payload, err := encode(t)
		if err != nil {
			return err
		}
		members = append(members, &redis.Z{Score: score(t), Member: t.ID})
		snapshots[t.ID] = payload
	}

	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, orderKey(eventID), snapshotKey(eventID))
		if len(members) > 0 {
			pipe.ZAdd(ctx, orderKey(eventID), members...)
			pipe.HSet(ctx, snapshotKey(eventID), snapshots)
		}
		return nil
	})
	return err
}
