package purchasing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline-erp/ledgerline/internal/catalog"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
)

type memoryRepo struct {
	orders map[int64]PurchaseOrder
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[int64]PurchaseOrder{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]PurchaseOrder, len(r.orders))
	for id, po := range r.orders {
		snapshot[id] = po
	}
	snapshotID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.orders = snapshot
		r.nextID = snapshotID
		return err
	}
	return nil
}

func (r *memoryRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order %d", shared.ErrNotFound, id)
	}
	return po, nil
}

func (r *memoryRepo) ListOrders(ctx context.Context, status *PurchaseOrderStatus, limit int) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, po := range r.orders {
		if status == nil || po.Status == *status {
			out = append(out, po)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	po.CreatedAt = time.Now()
	tx.repo.orders[po.ID] = po
	return po, nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, orderID int64, lines []PurchaseOrderLine) ([]PurchaseOrderLine, error) {
	po := tx.repo.orders[orderID]
	for i := range lines {
		lines[i].ID = int64(i + 1)
		lines[i].OrderID = orderID
	}
	po.Lines = lines
	tx.repo.orders[orderID] = po
	return lines, nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return tx.repo.GetOrder(ctx, id)
}

func (tx *memoryTx) MarkReceived(ctx context.Context, id int64, receivedBy int64) error {
	po, ok := tx.repo.orders[id]
	if !ok || po.Status != PurchaseOrderStatusDraft {
		return fmt.Errorf("%w: purchase order %d is not a draft", shared.ErrInvalidState, id)
	}
	now := time.Now()
	po.Status = PurchaseOrderStatusReceived
	po.ReceivedBy = &receivedBy
	po.ReceivedAt = &now
	tx.repo.orders[id] = po
	return nil
}

type memoryStock struct {
	entries []stock.AddEntry
}

func (s *memoryStock) AddStock(ctx context.Context, entry stock.AddEntry) (catalog.Product, error) {
	s.entries = append(s.entries, entry)
	return catalog.Product{ID: entry.ProductID, Quantity: entry.Quantity}, nil
}

type fixedSequence struct {
	n int
}

func (s *fixedSequence) Next(ctx context.Context, prefix string, day time.Time) (string, error) {
	s.n++
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), s.n), nil
}

func TestCreateOrderDraftDoesNotTouchStock(t *testing.T) {
	repo := newMemoryRepo()
	inv := &memoryStock{}
	svc := NewService(repo, inv, &fixedSequence{}, nil, nil)

	po, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierName: "Northside Traders",
		Lines: []OrderLineInput{
			{ProductID: 1, Quantity: 10, UnitCost: 60},
			{ProductID: 2, Quantity: 4, UnitCost: 25},
		},
	})
	require.NoError(t, err)
	require.Equal(t, PurchaseOrderStatusDraft, po.Status)
	require.InDelta(t, 700.0, po.TotalAmount, 0.001)
	require.Len(t, po.Lines, 2)
	require.Empty(t, inv.entries)
}

func TestReceiveOrderPostsStockOnce(t *testing.T) {
	repo := newMemoryRepo()
	inv := &memoryStock{}
	svc := NewService(repo, inv, &fixedSequence{}, nil, nil)
	ctx := context.Background()

	batch := "LOT-7"
	po, err := svc.CreateOrder(ctx, CreateOrderInput{
		SupplierName: "Northside Traders",
		Lines: []OrderLineInput{
			{ProductID: 1, Quantity: 10, UnitCost: 60, BatchNumber: &batch},
		},
	})
	require.NoError(t, err)

	received, err := svc.ReceiveOrder(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, PurchaseOrderStatusReceived, received.Status)
	require.Len(t, inv.entries, 1)
	require.EqualValues(t, 10, inv.entries[0].Quantity)
	require.InDelta(t, 60.0, inv.entries[0].BuyingPrice, 0.001)
	require.Equal(t, &batch, inv.entries[0].BatchNumber)
	require.Equal(t, received.Number, inv.entries[0].RefID)

	// Receiving again must not double-credit inventory.
	_, err = svc.ReceiveOrder(ctx, po.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Len(t, inv.entries, 1)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), &memoryStock{}, &fixedSequence{}, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierName: " "})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{
		SupplierName: "Northside Traders",
		Lines:        []OrderLineInput{{ProductID: 1, Quantity: 0, UnitCost: 10}},
	})
	require.ErrorIs(t, err, stock.ErrInvalidQuantity)
}
