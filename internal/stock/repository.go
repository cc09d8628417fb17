package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline/internal/catalog"
	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// Repository persists ledger state in PostgreSQL. All reads inside a
// mutation lock the rows they are about to change.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error)
	FindBatchForUpdate(ctx context.Context, code string, batchNumber string) (catalog.Product, error)
	SetProductQuantity(ctx context.Context, id int64, qty int64) error
	ApplyEntryToProduct(ctx context.Context, p catalog.Product) error
	InsertBatch(ctx context.Context, p catalog.Product) (catalog.Product, error)
	GetLevelForUpdate(ctx context.Context, warehouseID, productID int64) (int64, error)
	UpsertLevel(ctx context.Context, warehouseID, productID, qty int64) error
	InsertMovement(ctx context.Context, m Movement) error
}

// ErrLevelNotFound indicates a warehouse has never held the product.
var ErrLevelNotFound = errors.New("stock: level not found")

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

const productColumns = `id, code, name, unit, quantity, buying_price, selling_price, low_stock_threshold, reorder_point, batch_number, expiry_date, created_at, updated_at`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Unit, &p.Quantity, &p.BuyingPrice, &p.SellingPrice,
		&p.LowStockThreshold, &p.ReorderPoint, &p.BatchNumber, &p.ExpiryDate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		return catalog.Product{}, fmt.Errorf("stock: get product for update: %w", err)
	}
	return p, nil
}

func (r *txRepository) FindBatchForUpdate(ctx context.Context, code string, batchNumber string) (catalog.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code=$1 AND batch_number=$2 FOR UPDATE`, code, batchNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Product{}, fmt.Errorf("%w: batch %s/%s", shared.ErrNotFound, code, batchNumber)
		}
		return catalog.Product{}, fmt.Errorf("stock: find batch: %w", err)
	}
	return p, nil
}

func (r *txRepository) SetProductQuantity(ctx context.Context, id int64, qty int64) error {
	tag, err := r.q.Exec(ctx, `UPDATE products SET quantity=$2, updated_at=NOW() WHERE id=$1`, id, qty)
	if err != nil {
		return fmt.Errorf("stock: set product quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return nil
}

// ApplyEntryToProduct writes quantity plus the last-write-wins price and
// expiry fields of an inbound entry.
func (r *txRepository) ApplyEntryToProduct(ctx context.Context, p catalog.Product) error {
	_, err := r.q.Exec(ctx, `UPDATE products
SET quantity=$2, buying_price=$3, selling_price=$4, expiry_date=$5, updated_at=NOW()
WHERE id=$1`, p.ID, p.Quantity, p.BuyingPrice, p.SellingPrice, p.ExpiryDate)
	if err != nil {
		return fmt.Errorf("stock: apply entry: %w", err)
	}
	return nil
}

func (r *txRepository) InsertBatch(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	row := r.q.QueryRow(ctx, `INSERT INTO products
(code, name, unit, quantity, buying_price, selling_price, low_stock_threshold, reorder_point, batch_number, expiry_date, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
RETURNING `+productColumns,
		p.Code, p.Name, p.Unit, p.Quantity, p.BuyingPrice, p.SellingPrice,
		p.LowStockThreshold, p.ReorderPoint, p.BatchNumber, p.ExpiryDate)
	created, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("stock: insert batch: %w", err)
	}
	return created, nil
}

func (r *txRepository) GetLevelForUpdate(ctx context.Context, warehouseID, productID int64) (int64, error) {
	var qty int64
	err := r.q.QueryRow(ctx, `SELECT qty FROM stock_levels WHERE warehouse_id=$1 AND product_id=$2 FOR UPDATE`, warehouseID, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLevelNotFound
		}
		return 0, fmt.Errorf("stock: get level for update: %w", err)
	}
	return qty, nil
}

func (r *txRepository) UpsertLevel(ctx context.Context, warehouseID, productID, qty int64) error {
	_, err := r.q.Exec(ctx, `INSERT INTO stock_levels (warehouse_id, product_id, qty, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (warehouse_id, product_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`, warehouseID, productID, qty)
	if err != nil {
		return fmt.Errorf("stock: upsert level: %w", err)
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.q.Exec(ctx, `INSERT INTO stock_movements
(movement_type, product_id, warehouse_id, qty_change, balance_qty, ref_module, ref_id, note, actor_id, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		string(m.Type), m.ProductID, nullInt(m.WarehouseID), m.QtyChange, m.BalanceQty,
		m.RefModule, nullString(m.RefID), m.Note, nullInt(m.ActorID), m.PostedAt)
	if err != nil {
		return fmt.Errorf("stock: insert movement: %w", err)
	}
	return nil
}

// ListMovements returns the movement trail for a product, oldest first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.FromContext(ctx, r.pool).Query(ctx, `SELECT id, movement_type, product_id, COALESCE(warehouse_id, 0), qty_change, balance_qty, ref_module, COALESCE(ref_id, ''), note, COALESCE(actor_id, 0), posted_at
FROM stock_movements WHERE product_id=$1 ORDER BY posted_at ASC, id ASC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("stock: list movements: %w", err)
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Type, &m.ProductID, &m.WarehouseID, &m.QtyChange, &m.BalanceQty,
			&m.RefModule, &m.RefID, &m.Note, &m.ActorID, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
