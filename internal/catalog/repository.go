package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// Repository persists catalog master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, code, name, unit, quantity, buying_price, selling_price, low_stock_threshold, reorder_point, batch_number, expiry_date, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Unit, &p.Quantity, &p.BuyingPrice, &p.SellingPrice,
		&p.LowStockThreshold, &p.ReorderPoint, &p.BatchNumber, &p.ExpiryDate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateProduct inserts a product row.
func (r *Repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	row := db.FromContext(ctx, r.pool).QueryRow(ctx, `INSERT INTO products
(code, name, unit, quantity, buying_price, selling_price, low_stock_threshold, reorder_point, batch_number, expiry_date, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
RETURNING `+productColumns,
		p.Code, p.Name, p.Unit, p.Quantity, p.BuyingPrice, p.SellingPrice,
		p.LowStockThreshold, p.ReorderPoint, p.BatchNumber, p.ExpiryDate)
	created, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, fmt.Errorf("%w: product batch already exists", shared.ErrValidation)
		}
		return Product{}, fmt.Errorf("catalog: create product: %w", err)
	}
	return created, nil
}

// GetProduct loads a product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	row := db.FromContext(ctx, r.pool).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		return Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return p, nil
}

// ListProducts returns products matching the filter, newest first.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var (
		conds []string
		args  []any
	)
	if filter.Code != "" {
		args = append(args, filter.Code)
		conds = append(conds, fmt.Sprintf("code=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.FromContext(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateWarehouse inserts a warehouse.
func (r *Repository) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	row := db.FromContext(ctx, r.pool).QueryRow(ctx, `INSERT INTO warehouses (code, name, created_at)
VALUES ($1,$2,NOW()) RETURNING id, code, name, created_at`, w.Code, w.Name)
	var created Warehouse
	if err := row.Scan(&created.ID, &created.Code, &created.Name, &created.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Warehouse{}, fmt.Errorf("%w: warehouse code already exists", shared.ErrValidation)
		}
		return Warehouse{}, fmt.Errorf("catalog: create warehouse: %w", err)
	}
	return created, nil
}

// GetWarehouse loads a warehouse by id.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	row := db.FromContext(ctx, r.pool).QueryRow(ctx, `SELECT id, code, name, created_at FROM warehouses WHERE id=$1`, id)
	var w Warehouse
	if err := row.Scan(&w.ID, &w.Code, &w.Name, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, fmt.Errorf("%w: warehouse %d", shared.ErrNotFound, id)
		}
		return Warehouse{}, fmt.Errorf("catalog: get warehouse: %w", err)
	}
	return w, nil
}

// ListWarehouses returns all warehouses.
func (r *Repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := db.FromContext(ctx, r.pool).Query(ctx, `SELECT id, code, name, created_at FROM warehouses ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list warehouses: %w", err)
	}
	defer rows.Close()
	warehouses := []Warehouse{}
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}
