package transfers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline-erp/ledgerline/internal/shared"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
)

type memoryRepo struct {
	transfers map[int64]Transfer
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{transfers: map[int64]Transfer{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Transfer, len(r.transfers))
	for id, t := range r.transfers {
		snapshot[id] = t
	}
	snapshotID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.transfers = snapshot
		r.nextID = snapshotID
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Transfer, error) {
	t, ok := r.transfers[id]
	if !ok {
		return Transfer{}, fmt.Errorf("%w: transfer %d", shared.ErrNotFound, id)
	}
	return t, nil
}

func (r *memoryRepo) List(ctx context.Context, status *TransferStatus, limit int) ([]Transfer, error) {
	var out []Transfer
	for _, t := range r.transfers {
		if status == nil || t.Status == *status {
			out = append(out, t)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) Insert(ctx context.Context, t Transfer) (Transfer, error) {
	tx.repo.nextID++
	t.ID = tx.repo.nextID
	t.CreatedAt = time.Now()
	tx.repo.transfers[t.ID] = t
	return t, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (Transfer, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) MarkCompleted(ctx context.Context, id int64, completedBy int64) error {
	t, ok := tx.repo.transfers[id]
	if !ok || t.Status != TransferStatusPending {
		return fmt.Errorf("%w: transfer %d", ErrInvalidTransferState, id)
	}
	now := time.Now()
	t.Status = TransferStatusCompleted
	t.CompletedBy = &completedBy
	t.CompletedAt = &now
	tx.repo.transfers[id] = t
	return nil
}

type levelKey struct {
	warehouseID int64
	productID   int64
}

type memoryStock struct {
	levels map[levelKey]int64
}

func (s *memoryStock) DebitWarehouse(ctx context.Context, input stock.WarehouseMovement) error {
	key := levelKey{input.WarehouseID, input.ProductID}
	if input.Quantity > s.levels[key] {
		return fmt.Errorf("%w: warehouse %d", stock.ErrInsufficientStock, input.WarehouseID)
	}
	s.levels[key] -= input.Quantity
	return nil
}

func (s *memoryStock) CreditWarehouse(ctx context.Context, input stock.WarehouseMovement) error {
	s.levels[levelKey{input.WarehouseID, input.ProductID}] += input.Quantity
	return nil
}

type fixedSequence struct {
	n int
}

func (s *fixedSequence) Next(ctx context.Context, prefix string, day time.Time) (string, error) {
	s.n++
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), s.n), nil
}

func TestTransferTwoPhase(t *testing.T) {
	repo := newMemoryRepo()
	inv := &memoryStock{levels: map[levelKey]int64{{1, 100}: 5}}
	svc := NewService(repo, inv, &fixedSequence{}, nil, nil)
	ctx := context.Background()

	transfer, err := svc.InitiateTransfer(ctx, InitiateInput{
		FromWarehouseID: 1, ToWarehouseID: 2, ProductID: 100, Quantity: 5,
	})
	require.NoError(t, err)
	require.Equal(t, TransferStatusPending, transfer.Status)
	require.EqualValues(t, 0, inv.levels[levelKey{1, 100}])
	// In flight: neither warehouse holds the quantity yet.
	require.EqualValues(t, 0, inv.levels[levelKey{2, 100}])

	transfer, err = svc.CompleteTransfer(ctx, transfer.ID)
	require.NoError(t, err)
	require.Equal(t, TransferStatusCompleted, transfer.Status)
	require.EqualValues(t, 5, inv.levels[levelKey{2, 100}])
}

func TestCompleteTransferOnlyOnce(t *testing.T) {
	repo := newMemoryRepo()
	inv := &memoryStock{levels: map[levelKey]int64{{1, 100}: 5}}
	svc := NewService(repo, inv, &fixedSequence{}, nil, nil)
	ctx := context.Background()

	transfer, err := svc.InitiateTransfer(ctx, InitiateInput{
		FromWarehouseID: 1, ToWarehouseID: 2, ProductID: 100, Quantity: 5,
	})
	require.NoError(t, err)
	_, err = svc.CompleteTransfer(ctx, transfer.ID)
	require.NoError(t, err)

	_, err = svc.CompleteTransfer(ctx, transfer.ID)
	require.ErrorIs(t, err, ErrInvalidTransferState)
	require.EqualValues(t, 5, inv.levels[levelKey{2, 100}])
}

func TestInitiateTransferInsufficientSource(t *testing.T) {
	repo := newMemoryRepo()
	inv := &memoryStock{levels: map[levelKey]int64{{1, 100}: 3}}
	svc := NewService(repo, inv, &fixedSequence{}, nil, nil)

	_, err := svc.InitiateTransfer(context.Background(), InitiateInput{
		FromWarehouseID: 1, ToWarehouseID: 2, ProductID: 100, Quantity: 5,
	})
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
	require.Empty(t, repo.transfers)
	require.EqualValues(t, 3, inv.levels[levelKey{1, 100}])
}

func TestInitiateTransferValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), &memoryStock{levels: map[levelKey]int64{}}, &fixedSequence{}, nil, nil)

	_, err := svc.InitiateTransfer(context.Background(), InitiateInput{
		FromWarehouseID: 1, ToWarehouseID: 1, ProductID: 100, Quantity: 5,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
