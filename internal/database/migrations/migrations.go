package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"smartqueue/internal/models"
)

// tables in dependency order.
var tables = []interface{}{
	(*models.Event)(nil),
	(*models.Ticket)(nil),
	(*models.AdminAccessRequest)(nil),
	(*models.AdminAccount)(nil),
	(*models.Customer)(nil),
}

// CreateSchema creates every table and index that does not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		name    string
		model   interface{}
		columns []string
	}{
		{"idx_tickets_event_status", (*models.Ticket)(nil), []string{"event_id", "status"}},
		{"idx_tickets_customer", (*models.Ticket)(nil), []string{"customer_id"}},
		{"idx_events_created_by", (*models.Event)(nil), []string{"created_by"}},
		{"idx_admin_requests_email", (*models.AdminAccessRequest)(nil), []string{"email"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropSchema removes every table. Used by the seed command with -reset.
func DropSchema(ctx context.Context, db bun.IDB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", tables[i], err)
		}
	}
	return nil
}
