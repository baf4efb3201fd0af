package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "postgres")
	return db, mock
}

func TestWithinTx_Commit(t *testing.T) {
	db, mock := setupMockDB(t)
	base := NewBaseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE materials").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := base.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := base.ext(ctx).ExecContext(ctx, "UPDATE materials SET quantity = 1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	base := NewBaseRepository(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := base.WithinTx(context.Background(), func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	db, mock := setupMockDB(t)
	base := NewBaseRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = base.WithinTx(context.Background(), func(ctx context.Context) error {
			panic("unexpected")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_NestedReusesTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	base := NewBaseRepository(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := base.WithinTx(context.Background(), func(outer context.Context) error {
		return base.WithinTx(outer, func(inner context.Context) error {
			assert.Same(t, base.ext(outer), base.ext(inner))
			return nil
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_BeginFails(t *testing.T) {
	db, mock := setupMockDB(t)
	base := NewBaseRepository(db)

	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	called := false
	err := base.WithinTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}
