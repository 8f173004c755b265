package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// txKey is the key type for storing transaction in context.
type txKey struct{}

// TransactionManager implements domain.TransactionManager using PostgreSQL.
type TransactionManager struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// NewTransactionManager creates a new TransactionManager.
func NewTransactionManager(pool *pgxpool.Pool, log logrus.FieldLogger) *TransactionManager {
	return &TransactionManager{
		pool: pool,
		log:  log,
	}
}

// WithTransaction executes fn within a database transaction stored in the
// context passed to fn. The transaction is rolled back when fn fails and
// committed otherwise. Calls made with a context that already carries a
// transaction join it.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if getTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.log.WithError(err).Error("failed to rollback transaction")
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// getTx retrieves the transaction from context.
// If no transaction is found, returns nil.
func getTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// querier is what pgx.Tx and pgxpool.Pool have in common.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn returns the transaction carried by ctx, or the pool when there is none.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := getTx(ctx); tx != nil {
		return tx
	}
	return pool
}
