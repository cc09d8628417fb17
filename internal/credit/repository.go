package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// Repository persists customer credit state in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error)
	UpdateCredit(ctx context.Context, id int64, spend, balance float64) error
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

const customerColumns = `id, code, name, phone, credit_limit, credit_spend, credit_balance, credit_expires_at, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Phone, &c.CreditLimit, &c.CreditSpend,
		&c.CreditBalance, &c.CreditExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *txRepository) GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.q.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
		}
		return Customer{}, fmt.Errorf("credit: get customer for update: %w", err)
	}
	return c, nil
}

func (r *txRepository) UpdateCredit(ctx context.Context, id int64, spend, balance float64) error {
	tag, err := r.q.Exec(ctx, `UPDATE customers SET credit_spend=$2, credit_balance=$3, updated_at=NOW() WHERE id=$1`, id, spend, balance)
	if err != nil {
		return fmt.Errorf("credit: update credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return nil
}

// CreateCustomer inserts a customer.
func (r *Repository) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	row := db.FromContext(ctx, r.pool).QueryRow(ctx, `INSERT INTO customers
(code, name, phone, credit_limit, credit_spend, credit_balance, credit_expires_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,0,$5,NOW(),NOW())
RETURNING `+customerColumns, c.Code, c.Name, c.Phone, c.CreditLimit, c.CreditExpiresAt)
	created, err := scanCustomer(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Customer{}, fmt.Errorf("%w: customer code already exists", shared.ErrValidation)
		}
		return Customer{}, fmt.Errorf("credit: create customer: %w", err)
	}
	return created, nil
}

// GetCustomer loads a customer by id.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(db.FromContext(ctx, r.pool).QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
		}
		return Customer{}, fmt.Errorf("credit: get customer: %w", err)
	}
	return c, nil
}

// ListCustomers returns customers, newest first.
func (r *Repository) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.FromContext(ctx, r.pool).Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("credit: list customers: %w", err)
	}
	defer rows.Close()
	customers := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
