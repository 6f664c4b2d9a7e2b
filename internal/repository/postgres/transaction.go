package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"hoofprint/internal/domain"
)

// Serializes concurrent bootstraps of the same database.
const bootstrapLockKey = 0x686f6f66

const (
	advisoryLockQuery     = `SELECT pg_advisory_xact_lock($1)`
	createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`
	listMigrationsQuery   = `SELECT version FROM schema_migrations`
	recordMigrationQuery  = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// TxManager manages database transactions
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new transaction manager
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx executes fn within a database transaction and implements
// domain.TxStore. If fn returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
func (tm *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return tm.withSQLTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &storeTx{tx: tx})
	})
}

func (tm *TxManager) withSQLTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type storeTx struct {
	tx *sql.Tx
}

func (s *storeTx) Users() domain.UserRepository { return NewUserRepository(s.tx) }
func (s *storeTx) Sites() domain.SiteRepository { return NewSiteRepository(s.tx) }

// AppliedMigrations takes the bootstrap lock, ensures the bookkeeping table
// exists and returns the recorded versions.
func (s *storeTx) AppliedMigrations(ctx context.Context) (map[string]bool, error) {
	if _, err := s.tx.ExecContext(ctx, advisoryLockQuery, bootstrapLockKey); err != nil {
		return nil, fmt.Errorf("failed to acquire bootstrap lock: %w", err)
	}
	if _, err := s.tx.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	rows, err := s.tx.QueryContext(ctx, listMigrationsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate migrations: %w", err)
	}
	return applied, nil
}

func (s *storeTx) ApplyMigration(ctx context.Context, m domain.Migration) error {
	if _, err := s.tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %s: %w", m.Version, err)
	}
	if _, err := s.tx.ExecContext(ctx, recordMigrationQuery, m.Version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
	}
	return nil
}
