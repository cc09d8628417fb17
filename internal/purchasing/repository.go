package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	InsertLines(ctx context.Context, orderID int64, lines []PurchaseOrderLine) ([]PurchaseOrderLine, error)
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	MarkReceived(ctx context.Context, id int64, receivedBy int64) error
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

const orderColumns = `id, number, supplier_name, status, total_amount, note, warehouse_id, created_by, received_by, received_at, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.SupplierName, &po.Status, &po.TotalAmount, &po.Note,
		&po.WarehouseID, &po.CreatedBy, &po.ReceivedBy, &po.ReceivedAt, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func (r *txRepository) InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO purchase_orders (number, supplier_name, status, total_amount, note, warehouse_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+orderColumns,
		po.Number, po.SupplierName, po.Status, po.TotalAmount, po.Note, po.WarehouseID, po.CreatedBy)
	created, err := scanOrder(row)
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("purchasing: insert order: %w", err)
	}
	return created, nil
}

func (r *txRepository) InsertLines(ctx context.Context, orderID int64, lines []PurchaseOrderLine) ([]PurchaseOrderLine, error) {
	out := make([]PurchaseOrderLine, 0, len(lines))
	for _, line := range lines {
		row := r.q.QueryRow(ctx, `
			INSERT INTO purchase_order_lines (order_id, product_id, quantity, unit_cost, selling_price, batch_number, expiry_date)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id`,
			orderID, line.ProductID, line.Quantity, line.UnitCost, line.SellingPrice, line.BatchNumber, line.ExpiryDate)
		if err := row.Scan(&line.ID); err != nil {
			return nil, fmt.Errorf("purchasing: insert line: %w", err)
		}
		line.OrderID = orderID
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("%w: purchase order %d", shared.ErrNotFound, id)
		}
		return PurchaseOrder{}, fmt.Errorf("purchasing: get order for update: %w", err)
	}
	po.Lines, err = loadLines(ctx, r.q, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (r *txRepository) MarkReceived(ctx context.Context, id int64, receivedBy int64) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE purchase_orders
		SET status='received', received_by=$2, received_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='draft'`, id, receivedBy)
	if err != nil {
		return fmt.Errorf("purchasing: mark received: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase order %d is not a draft", shared.ErrInvalidState, id)
	}
	return nil
}

func loadLines(ctx context.Context, q db.Querier, orderID int64) ([]PurchaseOrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_cost, selling_price, batch_number, expiry_date
		FROM purchase_order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("purchasing: load lines: %w", err)
	}
	defer rows.Close()

	var lines []PurchaseOrderLine
	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitCost, &l.SellingPrice, &l.BatchNumber, &l.ExpiryDate); err != nil {
			return nil, fmt.Errorf("purchasing: scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetOrder loads a purchase order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	q := db.FromContext(ctx, r.pool)
	po, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("%w: purchase order %d", shared.ErrNotFound, id)
		}
		return PurchaseOrder{}, fmt.Errorf("purchasing: get order: %w", err)
	}
	po.Lines, err = loadLines(ctx, q, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// ListOrders returns purchase orders, optionally filtered by status, newest
// first.
func (r *Repository) ListOrders(ctx context.Context, status *PurchaseOrderStatus, limit int) ([]PurchaseOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + orderColumns + ` FROM purchase_orders`
	args := []any{}
	if status != nil {
		args = append(args, *status)
		query += ` WHERE status=$1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("purchasing: list orders: %w", err)
	}
	defer rows.Close()

	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("purchasing: scan order: %w", err)
		}
		out = append(out, po)
	}
	return out, rows.Err()
}
