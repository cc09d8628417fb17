package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// Repository persists returns in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. Locking
// the sale row serializes concurrent returns against the same sale, so the
// sold/returned snapshot stays consistent through the whole check-then-insert.
type TxRepository interface {
	LockSale(ctx context.Context, saleID int64) error
	SoldQuantities(ctx context.Context, saleID int64) (map[int64]int64, error)
	ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]int64, error)
	SalePrices(ctx context.Context, saleID int64) (map[int64]float64, error)
	InsertReturn(ctx context.Context, ret Return) (Return, error)
	InsertLines(ctx context.Context, returnID int64, lines []ReturnLine) ([]ReturnLine, error)
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

func (r *txRepository) LockSale(ctx context.Context, saleID int64) error {
	var id int64
	err := r.q.QueryRow(ctx, `SELECT id FROM sales WHERE id=$1 AND status='approved' FOR UPDATE`, saleID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: approved sale %d", shared.ErrNotFound, saleID)
		}
		return fmt.Errorf("returns: lock sale: %w", err)
	}
	return nil
}

func (r *txRepository) SoldQuantities(ctx context.Context, saleID int64) (map[int64]int64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT product_id, SUM(quantity) FROM sale_lines WHERE sale_id=$1 GROUP BY product_id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("returns: sold quantities: %w", err)
	}
	return scanQuantities(rows)
}

func (r *txRepository) ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]int64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT rl.product_id, SUM(rl.quantity)
		FROM return_lines rl
		JOIN returns r ON r.id = rl.return_id
		WHERE r.sale_id=$1
		GROUP BY rl.product_id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("returns: returned quantities: %w", err)
	}
	return scanQuantities(rows)
}

func (r *txRepository) SalePrices(ctx context.Context, saleID int64) (map[int64]float64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT ON (product_id) product_id, unit_price
		FROM sale_lines WHERE sale_id=$1 ORDER BY product_id, id DESC`, saleID)
	if err != nil {
		return nil, fmt.Errorf("returns: sale prices: %w", err)
	}
	defer rows.Close()

	prices := map[int64]float64{}
	for rows.Next() {
		var productID int64
		var price float64
		if err := rows.Scan(&productID, &price); err != nil {
			return nil, fmt.Errorf("returns: scan price: %w", err)
		}
		prices[productID] = price
	}
	return prices, rows.Err()
}

func (r *txRepository) InsertReturn(ctx context.Context, ret Return) (Return, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO returns (number, sale_id, status, restock, reason, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		ret.Number, ret.SaleID, ret.Status, ret.Restock, ret.Reason, ret.CreatedBy)
	if err := row.Scan(&ret.ID, &ret.CreatedAt); err != nil {
		return Return{}, fmt.Errorf("returns: insert return: %w", err)
	}
	return ret, nil
}

func (r *txRepository) InsertLines(ctx context.Context, returnID int64, lines []ReturnLine) ([]ReturnLine, error) {
	out := make([]ReturnLine, 0, len(lines))
	for _, line := range lines {
		row := r.q.QueryRow(ctx, `
			INSERT INTO return_lines (return_id, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4)
			RETURNING id`,
			returnID, line.ProductID, line.Quantity, line.UnitPrice)
		if err := row.Scan(&line.ID); err != nil {
			return nil, fmt.Errorf("returns: insert line: %w", err)
		}
		line.ReturnID = returnID
		out = append(out, line)
	}
	return out, nil
}

func scanQuantities(rows pgx.Rows) (map[int64]int64, error) {
	defer rows.Close()
	out := map[int64]int64{}
	for rows.Next() {
		var productID, qty int64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, fmt.Errorf("returns: scan quantity: %w", err)
		}
		out[productID] = qty
	}
	return out, rows.Err()
}

// GetReturn loads a return with its lines.
func (r *Repository) GetReturn(ctx context.Context, id int64) (Return, error) {
	q := db.FromContext(ctx, r.pool)
	var ret Return
	err := q.QueryRow(ctx, `
		SELECT id, number, sale_id, status, restock, reason, created_by, created_at
		FROM returns WHERE id=$1`, id).
		Scan(&ret.ID, &ret.Number, &ret.SaleID, &ret.Status, &ret.Restock, &ret.Reason, &ret.CreatedBy, &ret.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Return{}, fmt.Errorf("%w: return %d", shared.ErrNotFound, id)
		}
		return Return{}, fmt.Errorf("returns: get return: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, return_id, product_id, quantity, unit_price
		FROM return_lines WHERE return_id=$1 ORDER BY id`, id)
	if err != nil {
		return Return{}, fmt.Errorf("returns: load lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l ReturnLine
		if err := rows.Scan(&l.ID, &l.ReturnID, &l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return Return{}, fmt.Errorf("returns: scan line: %w", err)
		}
		ret.Lines = append(ret.Lines, l)
	}
	return ret, rows.Err()
}

// ListReturns returns returns for a sale, newest first. A zero saleID lists
// across all sales.
func (r *Repository) ListReturns(ctx context.Context, saleID int64, limit int) ([]Return, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, number, sale_id, status, restock, reason, created_by, created_at FROM returns`
	args := []any{}
	if saleID > 0 {
		query += ` WHERE sale_id=$1`
		args = append(args, saleID)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("returns: list returns: %w", err)
	}
	defer rows.Close()

	var out []Return
	for rows.Next() {
		var ret Return
		if err := rows.Scan(&ret.ID, &ret.Number, &ret.SaleID, &ret.Status, &ret.Restock, &ret.Reason, &ret.CreatedBy, &ret.CreatedAt); err != nil {
			return nil, fmt.Errorf("returns: scan return: %w", err)
		}
		out = append(out, ret)
	}
	return out, rows.Err()
}
