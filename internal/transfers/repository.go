package transfers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// Repository persists warehouse transfers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	Insert(ctx context.Context, t Transfer) (Transfer, error)
	GetForUpdate(ctx context.Context, id int64) (Transfer, error)
	MarkCompleted(ctx context.Context, id int64, completedBy int64) error
}

// WithTx executes the callback inside a transaction, joining one already in
// flight on ctx.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		return fn(ctx, &txRepository{q: db.FromContext(ctx, r.pool)})
	})
}

type txRepository struct {
	q db.Querier
}

const transferColumns = `id, number, from_warehouse_id, to_warehouse_id, product_id, quantity, status, note, created_by, completed_by, completed_at, created_at, updated_at`

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	err := row.Scan(&t.ID, &t.Number, &t.FromWarehouseID, &t.ToWarehouseID, &t.ProductID, &t.Quantity,
		&t.Status, &t.Note, &t.CreatedBy, &t.CompletedBy, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *txRepository) Insert(ctx context.Context, t Transfer) (Transfer, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO warehouse_transfers (number, from_warehouse_id, to_warehouse_id, product_id, quantity, status, note, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+transferColumns,
		t.Number, t.FromWarehouseID, t.ToWarehouseID, t.ProductID, t.Quantity, t.Status, t.Note, t.CreatedBy)
	created, err := scanTransfer(row)
	if err != nil {
		return Transfer{}, fmt.Errorf("transfers: insert: %w", err)
	}
	return created, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Transfer, error) {
	t, err := scanTransfer(r.q.QueryRow(ctx, `SELECT `+transferColumns+` FROM warehouse_transfers WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, fmt.Errorf("%w: transfer %d", shared.ErrNotFound, id)
		}
		return Transfer{}, fmt.Errorf("transfers: get for update: %w", err)
	}
	return t, nil
}

func (r *txRepository) MarkCompleted(ctx context.Context, id int64, completedBy int64) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE warehouse_transfers
		SET status='completed', completed_by=$2, completed_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='pending'`, id, completedBy)
	if err != nil {
		return fmt.Errorf("transfers: mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transfer %d", ErrInvalidTransferState, id)
	}
	return nil
}

// Get loads a transfer.
func (r *Repository) Get(ctx context.Context, id int64) (Transfer, error) {
	t, err := scanTransfer(db.FromContext(ctx, r.pool).QueryRow(ctx, `SELECT `+transferColumns+` FROM warehouse_transfers WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, fmt.Errorf("%w: transfer %d", shared.ErrNotFound, id)
		}
		return Transfer{}, fmt.Errorf("transfers: get: %w", err)
	}
	return t, nil
}

// List returns transfers, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status *TransferStatus, limit int) ([]Transfer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + transferColumns + ` FROM warehouse_transfers`
	args := []any{}
	if status != nil {
		args = append(args, *status)
		query += ` WHERE status=$1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transfers: list: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("transfers: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
