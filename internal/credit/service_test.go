package credit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline-erp/ledgerline/internal/events"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

type memoryRepo struct {
	customers map[int64]Customer
	nextID    int64
}

func newMemoryRepo(customers ...Customer) *memoryRepo {
	repo := &memoryRepo{customers: map[int64]Customer{}}
	for _, c := range customers {
		repo.customers[c.ID] = c
		if c.ID > repo.nextID {
			repo.nextID = c.ID
		}
	}
	return repo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	r.nextID++
	c.ID = r.nextID
	r.customers[c.ID] = c
	return c, nil
}

func (r *memoryRepo) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return c, nil
}

func (r *memoryRepo) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	var out []Customer
	for _, c := range r.customers {
		out = append(out, c)
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error) {
	return tx.repo.GetCustomer(ctx, id)
}

func (tx *memoryTx) UpdateCredit(ctx context.Context, id int64, spend, balance float64) error {
	c, ok := tx.repo.customers[id]
	if !ok {
		return fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	c.CreditSpend = spend
	c.CreditBalance = balance
	tx.repo.customers[id] = c
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }

func TestProcessCreditPurchaseSoftLimit(t *testing.T) {
	repo := newMemoryRepo(Customer{ID: 1, Code: "CUST-1", Name: "Acme", CreditLimit: 1000})
	pub := &events.MemoryPublisher{}
	svc := NewService(repo, pub, nil, nil, nil)

	// Exceeding the limit succeeds; the breach is a notification.
	customer, err := svc.ProcessCreditPurchase(context.Background(), 1, 1500)
	require.NoError(t, err)
	require.InDelta(t, 1500.0, customer.CreditSpend, 0.001)
	require.InDelta(t, 1500.0, customer.CreditBalance, 0.001)

	exceeded := pub.ByKind(events.KindCreditLimitExceeded)
	require.Len(t, exceeded, 1)
	evt := exceeded[0].(events.CreditLimitExceeded)
	require.InDelta(t, 500.0, evt.Overage, 0.001)
}

func TestProcessCreditPurchaseWithinLimitNoEvent(t *testing.T) {
	repo := newMemoryRepo(Customer{ID: 1, Code: "CUST-1", Name: "Acme", CreditLimit: 1000})
	pub := &events.MemoryPublisher{}
	svc := NewService(repo, pub, nil, nil, nil)

	_, err := svc.ProcessCreditPurchase(context.Background(), 1, 400)
	require.NoError(t, err)
	require.Empty(t, pub.ByKind(events.KindCreditLimitExceeded))
}

func TestProcessCreditPurchaseExpiredPeriod(t *testing.T) {
	expired := timePtr(time.Now().Add(-24 * time.Hour))
	repo := newMemoryRepo(Customer{ID: 1, Code: "CUST-1", Name: "Acme", CreditLimit: 1000, CreditExpiresAt: expired})
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.ProcessCreditPurchase(context.Background(), 1, 100)
	require.ErrorIs(t, err, ErrCreditPeriodExpired)
	require.InDelta(t, 0.0, repo.customers[1].CreditSpend, 0.001)
}

func TestSettleCredit(t *testing.T) {
	repo := newMemoryRepo(Customer{ID: 1, Code: "CUST-1", Name: "Acme", CreditSpend: 800, CreditBalance: 800})
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	customer, err := svc.SettleCredit(ctx, 1, 300)
	require.NoError(t, err)
	require.InDelta(t, 500.0, customer.CreditSpend, 0.001)
	require.InDelta(t, 500.0, customer.CreditBalance, 0.001)

	_, err = svc.SettleCredit(ctx, 1, 600)
	require.ErrorIs(t, err, ErrSettlementExceedsBalance)
	require.InDelta(t, 500.0, repo.customers[1].CreditBalance, 0.001)
}

func TestCanExtendCredit(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil, nil)

	require.True(t, svc.CanExtendCredit(Customer{}))
	require.True(t, svc.CanExtendCredit(Customer{CreditExpiresAt: timePtr(time.Now().Add(time.Hour))}))
	// Expired period blocks credit even with limit to spare.
	require.False(t, svc.CanExtendCredit(Customer{CreditLimit: 10000, CreditExpiresAt: timePtr(time.Now().Add(-time.Hour))}))
}
