package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type stubTx struct {
	pgx.Tx
	rollbacks int
	commits   int
}

func (s *stubTx) Rollback(ctx context.Context) error {
	s.rollbacks++
	return nil
}

func (s *stubTx) Commit(ctx context.Context) error {
	s.commits++
	return nil
}

func TestWithTxJoinsCarriedTransaction(t *testing.T) {
	tx := &stubTx{}
	ctx := ContextWithTx(context.Background(), tx)

	called := false
	err := WithTx(ctx, nil, func(inner context.Context) error {
		called = true
		require.Equal(t, Querier(tx), FromContext(inner, nil))
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)

	// Commit and rollback stay with the owner of the transaction.
	require.Zero(t, tx.commits)
	require.Zero(t, tx.rollbacks)
}

func TestWithTxJoinedErrorLeavesRollbackToOwner(t *testing.T) {
	tx := &stubTx{}
	ctx := ContextWithTx(context.Background(), tx)

	boom := errors.New("boom")
	err := WithTx(ctx, nil, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Zero(t, tx.rollbacks)
}

func TestAfterCommitDefersInsideTransaction(t *testing.T) {
	ctx := ContextWithTx(context.Background(), &stubTx{})

	fired := false
	AfterCommit(ctx, func(context.Context) { fired = true })
	require.False(t, fired)

	// Without a transaction the hook runs immediately.
	AfterCommit(context.Background(), func(context.Context) { fired = true })
	require.True(t, fired)
}
