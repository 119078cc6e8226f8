package db

import (
	"context"
	"fmt"

	"smartqueue/internal/models"
)

type statusCount struct {
	Status models.TicketStatus `bun:"status"`
	Count  int                 `bun:"count"`
}

func (d *DB) CountTicketsByStatus(ctx context.Context, eventID string) (map[models.TicketStatus]int, error) {
	var rows []statusCount
	err := d.conn(ctx).NewSelect().
		Model((*models.Ticket)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("count tickets by status: %w", err)
	}

	counts := make(map[models.TicketStatus]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
