package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the query surface shared by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txContextKey struct{}

type txState struct {
	tx          pgx.Tx
	afterCommit []func(context.Context)
}

// WithTx executes fn inside a repeatable-read transaction. When the context
// already carries a transaction, fn joins it and commit is left to the
// outermost caller, so a sale, its stock reductions and its credit purchase
// form a single atomic unit.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context) error) error {
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok && state != nil {
		return fn(ctx)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	state := &txState{tx: tx}
	txCtx := context.WithValue(ctx, txContextKey{}, state)

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	for _, hook := range state.afterCommit {
		hook(ctx)
	}
	return nil
}

// ContextWithTx returns a context carrying an existing transaction. Nested
// WithTx blocks and FromContext lookups join it; commit, rollback and
// after-commit hooks stay with the caller that owns tx.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, &txState{tx: tx})
}

// FromContext returns the transaction carried by ctx, falling back to the pool.
func FromContext(ctx context.Context, pool *pgxpool.Pool) Querier {
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok && state != nil {
		return state.tx
	}
	return pool
}

// AfterCommit defers fn until the outermost transaction commits. Outside a
// transaction fn runs immediately. Rolled-back work never fires its hooks,
// which keeps domain events off the queue for failed operations.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if fn == nil {
		return
	}
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok && state != nil {
		state.afterCommit = append(state.afterCommit, fn)
		return
	}
	fn(ctx)
}
