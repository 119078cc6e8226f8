package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"smartqueue/internal/admin"
	"smartqueue/internal/models"
)

var _ admin.DBLayer = (*DB)(nil)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateRequest(ctx context.Context, req *models.AdminAccessRequest) error {
	if _, err := d.Bun.NewInsert().Model(req).Exec(ctx); err != nil {
		return fmt.Errorf("insert access request: %w", err)
	}
	return nil
}

func (d *DB) GetRequest(ctx context.Context, id string) (*models.AdminAccessRequest, error) {
	var req models.AdminAccessRequest
	err := d.Bun.NewSelect().Model(&req).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, admin.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get access request: %w", err)
	}
	return &req, nil
}

func (d *DB) ListRequests(ctx context.Context, status models.RequestStatus) ([]models.AdminAccessRequest, error) {
	var reqs []models.AdminAccessRequest
	q := d.Bun.NewSelect().Model(&reqs).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list access requests: %w", err)
	}
	return reqs, nil
}

func (d *DB) ResolveRequest(ctx context.Context, id string, status models.RequestStatus, reviewer string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.AdminAccessRequest)(nil)).
		Set("status = ?", status).
		Set("reviewed_at = ?", at).
		Set("reviewed_by = ?", reviewer).
		Where("id = ?", id).
		Where("status = ?", models.RequestStatusPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve access request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *DB) FindApprovedRequest(ctx context.Context, email string) (*models.AdminAccessRequest, error) {
	var req models.AdminAccessRequest
	err := d.Bun.NewSelect().
		Model(&req).
		Where("email = ?", email).
		Where("status = ?", models.RequestStatusApproved).
		Order("reviewed_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, admin.ErrNotApproved
	}
	if err != nil {
		return nil, fmt.Errorf("find approved request: %w", err)
	}
	return &req, nil
}

func (d *DB) CreateAccount(ctx context.Context, account *models.AdminAccount) error {
	if _, err := d.Bun.NewInsert().Model(account).Exec(ctx); err != nil {
		return fmt.Errorf("insert admin account: %w", err)
	}
	return nil
}

func (d *DB) AccountExists(ctx context.Context, identifier, email string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.AdminAccount)(nil)).
		WhereOr("identifier = ?", identifier).
		WhereOr("email = ?", email).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check admin account: %w", err)
	}
	return exists, nil
}

// GetAccountByLogin finds an account by identifier or email.
func (d *DB) GetAccountByLogin(ctx context.Context, login string) (*models.AdminAccount, error) {
	var account models.AdminAccount
	err := d.Bun.NewSelect().
		Model(&account).
		WhereOr("identifier = ?", login).
		WhereOr("email = ?", strings.ToLower(login)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, admin.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin account: %w", err)
	}
	return &account, nil
}
