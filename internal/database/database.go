// Package database opens the event store connections (PostgreSQL via pgx,
// SQLite via modernc) and applies the embedded goose migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/config"
	"github.com/Shivanand-hulikatti/mentor-events/internal/database/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// NewPool creates and validates a pgxpool connection pool.
// It retries cfg.ConnectAttempts times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log logrus.FieldLogger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	attempts := max(cfg.ConnectAttempts, 1)

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		log.WithFields(logrus.Fields{
			"attempt":  attempt,
			"attempts": attempts,
			"backoff":  cfg.ConnectBackoff,
		}).WithError(err).Warn("postgres connect failed")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ConnectBackoff):
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// MigratePostgres applies the postgres migrations through a database/sql
// handle borrowed from the pool.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, log logrus.FieldLogger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrate(ctx, goose.DialectPostgres, db, "postgres", log)
}

// OpenSQLite opens (creating if needed) a SQLite database file and applies
// migrations. Write transactions begin IMMEDIATE so that concurrent
// writers queue on the database lock instead of failing on upgrade.
func OpenSQLite(ctx context.Context, path string, log logrus.FieldLogger) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, goose.DialectSQLite3, db, "sqlite", log); err != nil {
		_ = db.Close()
		return nil, err
	}

	// SQLite allows a single writer; one connection keeps transactions
	// strictly serialized.
	db.SetMaxOpenConns(1)
	return db, nil
}

func migrate(ctx context.Context, dialect goose.Dialect, db *sql.DB, dir string, log logrus.FieldLogger) error {
	fsys, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("open %s migrations: %w", dir, err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply %s migrations: %w", dir, err)
	}
	log.WithFields(logrus.Fields{
		"dialect": string(dialect),
		"applied": len(results),
	}).Info("migrations applied")
	return nil
}
