package migrations_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"smartqueue/internal/database/migrations"
	"smartqueue/internal/models"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	bunDB := setupTestDB(t)

	require.NoError(t, migrations.CreateSchema(ctx, bunDB))
	require.NoError(t, migrations.CreateSchema(ctx, bunDB))

	count, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTicketPositionIsUniquePerEvent(t *testing.T) {
	ctx := context.Background()
	bunDB := setupTestDB(t)
	require.NoError(t, migrations.CreateSchema(ctx, bunDB))

	first := &models.Ticket{ID: "t1", EventID: "e1", TicketCode: "AAAA", QueuePosition: 1, Status: models.TicketStatusWaiting}
	_, err := bunDB.NewInsert().Model(first).Exec(ctx)
	require.NoError(t, err)

	dup := &models.Ticket{ID: "t2", EventID: "e1", TicketCode: "BBBB", QueuePosition: 1, Status: models.TicketStatusWaiting}
	_, err = bunDB.NewInsert().Model(dup).Exec(ctx)
	assert.Error(t, err)

	other := &models.Ticket{ID: "t3", EventID: "e2", TicketCode: "CCCC", QueuePosition: 1, Status: models.TicketStatusWaiting}
	_, err = bunDB.NewInsert().Model(other).Exec(ctx)
	assert.NoError(t, err)
}

func TestDropSchema(t *testing.T) {
	ctx := context.Background()
	bunDB := setupTestDB(t)
	require.NoError(t, migrations.CreateSchema(ctx, bunDB))
	require.NoError(t, migrations.DropSchema(ctx, bunDB))

	_, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	assert.Error(t, err)
}

func TestCustomerEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	bunDB := setupTestDB(t)
	require.NoError(t, migrations.CreateSchema(ctx, bunDB))

	_, err := bunDB.NewInsert().Model(&models.Customer{ID: "c1", Name: "Asha", Email: "asha@example.com", PasswordHash: "x"}).Exec(ctx)
	require.NoError(t, err)
	_, err = bunDB.NewInsert().Model(&models.Customer{ID: "c2", Name: "Other", Email: "asha@example.com", PasswordHash: "y"}).Exec(ctx)
	assert.Error(t, err)
}
