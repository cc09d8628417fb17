package shared

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
)

type recordingTx struct {
	pgx.Tx
	sql  []string
	args [][]any
}

func (r *recordingTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	r.sql = append(r.sql, sql)
	r.args = append(r.args, arguments)
	return pgconn.CommandTag{}, nil
}

func TestAuditRecordWritesThroughCarriedTransaction(t *testing.T) {
	tx := &recordingTx{}
	ctx := db.ContextWithTx(context.Background(), tx)

	err := NewAuditLogger(nil).Record(ctx, AuditLog{
		ActorID:  3,
		Action:   "stock:reduce",
		Entity:   "product",
		EntityID: "1",
	})
	require.NoError(t, err)
	require.Len(t, tx.sql, 1)
	require.Contains(t, tx.sql[0], "INSERT INTO audit_logs")
	require.Equal(t, int64(3), tx.args[0][0])
	require.Equal(t, "stock:reduce", tx.args[0][1])
}

func TestAuditRecordRequiresIdentity(t *testing.T) {
	tx := &recordingTx{}
	ctx := db.ContextWithTx(context.Background(), tx)

	err := NewAuditLogger(nil).Record(ctx, AuditLog{Action: "stock:reduce"})
	require.Error(t, err)
	require.Empty(t, tx.sql)
}
