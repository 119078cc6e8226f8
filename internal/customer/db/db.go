package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"smartqueue/internal/customer"
	"smartqueue/internal/models"
)

var _ customer.DBLayer = (*DB)(nil)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if _, err := d.Bun.NewInsert().Model(c).Exec(ctx); err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (d *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Customer)(nil)).
		Where("email = ?", email).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check customer email: %w", err)
	}
	return exists, nil
}

func (d *DB) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return d.getCustomer(ctx, "id = ?", id)
}

func (d *DB) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return d.getCustomer(ctx, "email = ?", email)
}

func (d *DB) getCustomer(ctx context.Context, where string, arg interface{}) (*models.Customer, error) {
	var c models.Customer
	err := d.Bun.NewSelect().Model(&c).Where(where, arg).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customer.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}
