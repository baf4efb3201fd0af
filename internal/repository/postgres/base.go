package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/dental-api/internal/repository"
)

const pgForeignKeyViolation = "23503"

var dialect = goqu.Dialect("postgres")

type txKey struct{}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// ext returns the transaction carried by ctx, or the pool.
func (r *BaseRepository) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

// WithinTx executes fn within a transaction. Nested calls reuse the
// transaction already in ctx.
func (r *BaseRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// NewTxManager exposes WithinTx to the service layer.
func NewTxManager(db *sqlx.DB) repository.TxManager {
	base := NewBaseRepository(db)
	return &base
}

func (r *BaseRepository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, r.ext(ctx), dest, query, args...)
}

func (r *BaseRepository) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, r.ext(ctx), dest, query, args...)
}

// selectDataset runs a goqu select built with prepared placeholders.
func (r *BaseRepository) selectDataset(ctx context.Context, dest interface{}, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return r.selectAll(ctx, dest, query, args...)
}

func (r *BaseRepository) exists(ctx context.Context, table string, id interface{}) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := r.get(ctx, &exists, query, id); err != nil {
		return false, err
	}
	return exists, nil
}

// deleteByID removes a row, mapping a missing row to ErrNotFound and a
// foreign key violation to ErrReferenced.
func (r *BaseRepository) deleteByID(ctx context.Context, table string, id interface{}) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table)
	result, err := r.ext(ctx).ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrReferenced
		}
		return err
	}
	return requireAffected(result.RowsAffected())
}

func requireAffected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation
}
