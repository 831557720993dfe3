// Package db opens the Postgres ledger and applies its schema.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
)

const (
	pingInitialInterval = 250 * time.Millisecond
	pingMaxInterval     = 2 * time.Second
)

// DB is the ledger database holding transactions and idempotency keys
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// Connect opens the ledger through lib/pq and waits for Postgres to accept
// connections, retrying the ping with backoff for up to cfg.ConnectTimeout.
// A zero ConnectTimeout pings once.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger = logger.With("component", "ledger_db")
	logger.Info("connecting to ledger database",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.DBName,
		"application_name", cfg.ApplicationName,
	)

	connector, err := pq.NewConnector(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("invalid ledger database settings: %w", err)
	}

	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitForLedger(ctx, sqlDB, cfg.ConnectTimeout, logger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ledger database unreachable: %w", err)
	}

	logger.Info("ledger database ready",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"conn_max_lifetime", cfg.ConnMaxLifetime,
	)

	return &DB{DB: sqlDB, logger: logger}, nil
}

func waitForLedger(ctx context.Context, sqlDB *sql.DB, timeout time.Duration, logger *slog.Logger) error {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if timeout > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = pingInitialInterval
		eb.MaxInterval = pingMaxInterval
		eb.MaxElapsedTime = timeout
		b = eb
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := sqlDB.PingContext(ctx)
		if err != nil {
			logger.Warn("ledger database not ready", "attempt", attempt, "error", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// Close closes the ledger connection pool.
func (db *DB) Close() error {
	db.logger.Info("closing ledger database", "open_connections", db.Stats().OpenConnections)
	return db.DB.Close()
}
