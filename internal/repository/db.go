package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mkarwowski/receipt2ledger/internal/common"
)

// DB wraps database/sql with the driver kind, since SQLite and Postgres
// disagree on placeholder syntax.
type DB struct {
	sql      *sql.DB
	pool     *pgxpool.Pool // nil for sqlite
	postgres bool
	logger   *slog.Logger
}

// Open connects to the store selected by the DSN: postgres:// goes through a
// pgx pool, anything else is treated as a SQLite file path (":memory:" for
// tests).
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		logger.Info("connecting to postgres")
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		pc.MaxConns = cfg.MaxConns
		pc.MinConns = cfg.MinConns
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		pc.ConnConfig.RuntimeParams["application_name"] = "receipt2ledger"

		dialCtx := ctx
		if cfg.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
		}
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		db := &DB{sql: stdlib.OpenDBFromPool(pool), pool: pool, postgres: true, logger: logger}
		if err := db.migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	logger.Info("opening sqlite store", "path", cfg.DSN)
	sdb, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is not safe for concurrent writers over one connection
	// set without serialization; a single open connection keeps writes ordered.
	sdb.SetMaxOpenConns(1)
	db := &DB{sql: sdb, logger: logger}
	if err := db.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connections gracefully.
func (d *DB) Close() {
	if d.sql != nil {
		if err := d.sql.Close(); err != nil {
			d.logger.Error("failed to close database", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// Ping checks connectivity, catching DSN issues early.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(query string) string {
	if !d.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.sql.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, d.rebind(query), args...)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS processing_run (
		id              TEXT PRIMARY KEY,
		source_path     TEXT NOT NULL,
		status          TEXT NOT NULL,
		ocr_text        TEXT,
		ocr_confidence  REAL,
		error_message   TEXT,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_record (
		id              TEXT PRIMARY KEY,
		run_id          TEXT NOT NULL,
		fingerprint     TEXT NOT NULL,
		tx_type         TEXT NOT NULL,
		tx_date         TEXT NOT NULL,
		amount_cents    BIGINT NOT NULL,
		vendor          TEXT NOT NULL,
		description     TEXT,
		category        TEXT,
		category_source TEXT,
		account_id      TEXT NOT NULL,
		decision        TEXT NOT NULL,
		decision_reason TEXT,
		ledger_tx_id    TEXT,
		confidence      REAL,
		created_at      TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_record_decision
		ON transaction_record (decision)`,
	`CREATE TABLE IF NOT EXISTS fingerprint_reservation (
		fingerprint TEXT PRIMARY KEY,
		reserved_at TIMESTAMP NOT NULL
	)`,
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
