package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoofprint/internal/domain"
)

func TestNewTxManager(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := NewTxManager(db)
	assert.NotNil(t, tm)
	assert.NotNil(t, tm.db)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_WithTx_Success(t *testing.T) {
	t.Run("successful_transaction_commits", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectCommit()

		called := false
		err = tm.WithTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			called = true
			assert.NotNil(t, tx.Users())
			assert.NotNil(t, tx.Sites())
			return nil
		})

		require.NoError(t, err)
		assert.True(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("repositories_run_inside_the_transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(getUserByIDQuery)).
			WithArgs(domain.AdminUserID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectCommit()

		err = tm.WithTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			_, err := tx.Users().GetByID(ctx, domain.AdminUserID)
			assert.ErrorIs(t, err, domain.ErrUserNotFound)
			return nil
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTxManager_WithTx_Failure(t *testing.T) {
	t.Run("transaction_rolls_back_on_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectRollback()

		userError := errors.New("operation failed")
		err = tm.WithTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			return userError
		})

		require.Error(t, err)
		assert.Equal(t, userError, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin_transaction_failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin().WillReturnError(errors.New("begin failed"))

		err = tm.WithTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			t.Fatal("fn must not run when begin fails")
			return nil
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit_failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("commit failed"))

		err = tm.WithTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			return nil
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback_failure_after_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("rollback failed"))

		err = tm.WithTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			return errors.New("operation error")
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "operation error")
		assert.Contains(t, err.Error(), "rollback failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStoreTx_Migrations(t *testing.T) {
	t.Run("applied_migrations_locks_and_lists", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(advisoryLockQuery)).
			WithArgs(bootstrapLockKey).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(createMigrationsTable)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(listMigrationsQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001").AddRow("0002"))
		mock.ExpectCommit()

		var applied map[string]bool
		err = tm.WithTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			var err error
			applied, err = tx.AppliedMigrations(ctx)
			return err
		})

		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"0001": true, "0002": true}, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("apply_migration_executes_and_records", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)
		m := domain.Migration{Version: "0003", SQL: "CREATE TABLE t (id INT)"}

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(m.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(recordMigrationQuery)).
			WithArgs("0003").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err = tm.WithTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			return tx.ApplyMigration(ctx, m)
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed_migration_rolls_back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tm := NewTxManager(db)
		m := domain.Migration{Version: "0003", SQL: "CREATE TABLE broken"}

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(m.SQL)).WillReturnError(errors.New("syntax error"))
		mock.ExpectRollback()

		err = tm.WithTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			return tx.ApplyMigration(ctx, m)
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "migration 0003")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
