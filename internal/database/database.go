package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"smartqueue/internal/config"
	"smartqueue/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	maxRetries = 5
	retryDelay = 2 * time.Second
)

// Open connects to the configured database, retrying the ping a few times so
// the service can start alongside its database container.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)

	for i := 0; i < maxRetries; i++ {
		log.LogDatabase("CONNECT", cfg.Driver, fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", cfg.Driver, i+1, maxRetries))
		sqldb, err = openSQL(cfg)
		if err == nil {
			err = sqldb.PingContext(ctx)
			if err == nil {
				break
			}
			sqldb.Close()
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.Driver, maxRetries, err)
	}

	bunDB, err := wrap(sqldb, cfg)
	if err != nil {
		sqldb.Close()
		return nil, err
	}
	log.LogDatabase("CONNECT", cfg.Driver, fmt.Sprintf("✅ %s connection successful", cfg.Driver))
	return bunDB, nil
}

func openSQL(cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, err
		}
		// A single connection keeps transactions serialized and makes
		// :memory: databases visible to every query.
		sqldb.SetMaxOpenConns(1)
		return sqldb, nil
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.MaxLifetime > 0 {
			sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		}
		return sqldb, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func wrap(sqldb *sql.DB, cfg config.DatabaseConfig) (*bun.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}
