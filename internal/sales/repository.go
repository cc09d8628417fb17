package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertSale(ctx context.Context, s Sale) (Sale, error)
	InsertLines(ctx context.Context, saleID int64, lines []SaleLine) ([]SaleLine, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	SetStatus(ctx context.Context, id int64, status SaleStatus) error
	SetPayment(ctx context.Context, id int64, paid, due, cash, transfer float64) error
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

const saleColumns = `id, number, customer_id, warehouse_id, status, total_amount, discount, paid_amount, due_amount, cash_amount, transfer_amount, credit_amount, note, created_by, created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.Number, &s.CustomerID, &s.WarehouseID, &s.Status, &s.TotalAmount,
		&s.Discount, &s.PaidAmount, &s.DueAmount, &s.CashAmount, &s.TransferAmount, &s.CreditAmount,
		&s.Note, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *txRepository) InsertSale(ctx context.Context, s Sale) (Sale, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO sales (number, customer_id, warehouse_id, status, total_amount, discount, paid_amount, due_amount, cash_amount, transfer_amount, credit_amount, note, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING `+saleColumns,
		s.Number, s.CustomerID, s.WarehouseID, s.Status, s.TotalAmount, s.Discount, s.PaidAmount,
		s.DueAmount, s.CashAmount, s.TransferAmount, s.CreditAmount, s.Note, s.CreatedBy)
	created, err := scanSale(row)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: insert sale: %w", err)
	}
	return created, nil
}

func (r *txRepository) InsertLines(ctx context.Context, saleID int64, lines []SaleLine) ([]SaleLine, error) {
	out := make([]SaleLine, 0, len(lines))
	for _, line := range lines {
		row := r.q.QueryRow(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, quantity, unit_price, line_total)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id`,
			saleID, line.ProductID, line.Quantity, line.UnitPrice, line.LineTotal)
		if err := row.Scan(&line.ID); err != nil {
			return nil, fmt.Errorf("sales: insert line: %w", err)
		}
		line.SaleID = saleID
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(r.q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
		}
		return Sale{}, fmt.Errorf("sales: get sale for update: %w", err)
	}
	lines, err := loadLines(ctx, r.q, id)
	if err != nil {
		return Sale{}, err
	}
	s.Lines = lines
	return s, nil
}

func (r *txRepository) SetStatus(ctx context.Context, id int64, status SaleStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE sales SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("sales: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *txRepository) SetPayment(ctx context.Context, id int64, paid, due, cash, transfer float64) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE sales SET paid_amount=$2, due_amount=$3, cash_amount=$4, transfer_amount=$5, updated_at=NOW()
		WHERE id=$1`, id, paid, due, cash, transfer)
	if err != nil {
		return fmt.Errorf("sales: set payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
	}
	return nil
}

func loadLines(ctx context.Context, q db.Querier, saleID int64) ([]SaleLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, line_total
		FROM sale_lines WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("sales: load lines: %w", err)
	}
	defer rows.Close()

	var lines []SaleLine
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("sales: scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetSale loads a sale with its lines.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	q := db.FromContext(ctx, r.pool)
	s, err := scanSale(q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
		}
		return Sale{}, fmt.Errorf("sales: get sale: %w", err)
	}
	lines, err := loadLines(ctx, q, id)
	if err != nil {
		return Sale{}, err
	}
	s.Lines = lines
	return s, nil
}

// ListSales returns sales matching the filter, newest first.
func (r *Repository) ListSales(ctx context.Context, f SaleFilter) ([]Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales`
	var (
		conds []string
		args  []any
	)
	if f.CustomerID != nil {
		args = append(args, *f.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sales: list sales: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("sales: scan sale: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
