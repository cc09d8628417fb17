package stock

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline-erp/ledgerline/internal/catalog"
	"github.com/ledgerline-erp/ledgerline/internal/events"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

type memoryRepo struct {
	products  map[int64]catalog.Product
	levels    map[string]int64
	movements []Movement
	nextID    int64
}

func newMemoryRepo(products ...catalog.Product) *memoryRepo {
	repo := &memoryRepo{products: map[int64]catalog.Product{}, levels: map[string]int64{}}
	for _, p := range products {
		repo.products[p.ID] = p
		if p.ID > repo.nextID {
			repo.nextID = p.ID
		}
	}
	return repo
}

func levelKey(warehouseID, productID int64) string {
	return fmt.Sprintf("%d:%d", warehouseID, productID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := tx.repo.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (tx *memoryTx) FindBatchForUpdate(ctx context.Context, code string, batchNumber string) (catalog.Product, error) {
	for _, p := range tx.repo.products {
		if p.Code == code && p.BatchNumber != nil && *p.BatchNumber == batchNumber {
			return p, nil
		}
	}
	return catalog.Product{}, fmt.Errorf("%w: batch %s/%s", shared.ErrNotFound, code, batchNumber)
}

func (tx *memoryTx) SetProductQuantity(ctx context.Context, id int64, qty int64) error {
	p, ok := tx.repo.products[id]
	if !ok {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	p.Quantity = qty
	tx.repo.products[id] = p
	return nil
}

func (tx *memoryTx) ApplyEntryToProduct(ctx context.Context, p catalog.Product) error {
	tx.repo.products[p.ID] = p
	return nil
}

func (tx *memoryTx) InsertBatch(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.products[p.ID] = p
	return p, nil
}

func (tx *memoryTx) GetLevelForUpdate(ctx context.Context, warehouseID, productID int64) (int64, error) {
	qty, ok := tx.repo.levels[levelKey(warehouseID, productID)]
	if !ok {
		return 0, ErrLevelNotFound
	}
	return qty, nil
}

func (tx *memoryTx) UpsertLevel(ctx context.Context, warehouseID, productID, qty int64) error {
	tx.repo.levels[levelKey(warehouseID, productID)] = qty
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) error {
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

func strPtr(s string) *string { return &s }

func TestReduceStockEmitsLowStockOnce(t *testing.T) {
	repo := newMemoryRepo(catalog.Product{ID: 1, Code: "SKU-1", Quantity: 10, LowStockThreshold: 5, ReorderPoint: 2})
	pub := &events.MemoryPublisher{}
	svc := NewService(repo, pub, nil, nil, nil)
	ctx := context.Background()

	newQty, err := svc.ReduceStock(ctx, ReduceInput{ProductID: 1, Quantity: 6})
	require.NoError(t, err)
	require.Equal(t, int64(4), newQty)
	require.Len(t, pub.ByKind(events.KindLowStock), 1)

	alert := pub.ByKind(events.KindLowStock)[0].(events.LowStockAlert)
	require.Equal(t, int64(4), alert.Quantity)
	require.Equal(t, int64(5), alert.Threshold)

	// Already below the threshold: no second alert.
	_, err = svc.ReduceStock(ctx, ReduceInput{ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, pub.ByKind(events.KindLowStock), 1)

	// Crossing the reorder point fires its own event.
	_, err = svc.ReduceStock(ctx, ReduceInput{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, pub.ByKind(events.KindReorderLevelReached), 1)
}

func TestReduceStockInsufficient(t *testing.T) {
	repo := newMemoryRepo(catalog.Product{ID: 1, Code: "SKU-1", Quantity: 3})
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.ReduceStock(context.Background(), ReduceInput{ProductID: 1, Quantity: 4})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, int64(3), repo.products[1].Quantity)
	require.Empty(t, repo.movements)
}

func TestReduceStockWarehouseScoped(t *testing.T) {
	repo := newMemoryRepo(catalog.Product{ID: 1, Code: "SKU-1", Quantity: 10})
	repo.levels[levelKey(7, 1)] = 4
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ReduceStock(ctx, ReduceInput{ProductID: 1, WarehouseID: 7, Quantity: 5})
	require.ErrorIs(t, err, ErrInsufficientStock)

	newQty, err := svc.ReduceStock(ctx, ReduceInput{ProductID: 1, WarehouseID: 7, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, int64(6), newQty)
	require.Equal(t, int64(0), repo.levels[levelKey(7, 1)])
}

func TestAddStockInPlace(t *testing.T) {
	repo := newMemoryRepo(catalog.Product{ID: 1, Code: "SKU-1", Quantity: 5, BuyingPrice: 100, SellingPrice: 150})
	svc := NewService(repo, nil, nil, nil, nil)

	product, err := svc.AddStock(context.Background(), AddEntry{ProductID: 1, Quantity: 10, BuyingPrice: 120, SellingPrice: 180})
	require.NoError(t, err)
	require.Equal(t, int64(15), product.Quantity)
	// Last write wins on price fields.
	require.InDelta(t, 120.0, product.BuyingPrice, 0.001)
	require.InDelta(t, 180.0, product.SellingPrice, 0.001)
}

func TestAddStockForksNewBatch(t *testing.T) {
	repo := newMemoryRepo(catalog.Product{ID: 1, Code: "SKU-1", Name: "Widget", Unit: "pcs", Quantity: 5, LowStockThreshold: 2})
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	batch, err := svc.AddStock(ctx, AddEntry{ProductID: 1, Quantity: 8, BuyingPrice: 90, BatchNumber: strPtr("B-2026-01")})
	require.NoError(t, err)
	require.NotEqual(t, int64(1), batch.ID)
	require.Equal(t, "SKU-1", batch.Code)
	require.Equal(t, "Widget", batch.Name)
	require.Equal(t, int64(8), batch.Quantity)
	require.Equal(t, int64(2), batch.LowStockThreshold)
	// Reference row untouched.
	require.Equal(t, int64(5), repo.products[1].Quantity)

	// Same batch number again merges instead of forking.
	merged, err := svc.AddStock(ctx, AddEntry{ProductID: 1, Quantity: 2, BatchNumber: strPtr("B-2026-01")})
	require.NoError(t, err)
	require.Equal(t, batch.ID, merged.ID)
	require.Equal(t, int64(10), merged.Quantity)
}

func TestTransferStockBetweenBatches(t *testing.T) {
	repo := newMemoryRepo(
		catalog.Product{ID: 1, Code: "SKU-1", Quantity: 10},
		catalog.Product{ID: 2, Code: "SKU-1", Quantity: 0, BatchNumber: strPtr("B-2")},
	)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.TransferStock(ctx, TransferInput{FromProductID: 1, ToProductID: 2, Quantity: 4}))
	require.Equal(t, int64(6), repo.products[1].Quantity)
	require.Equal(t, int64(4), repo.products[2].Quantity)

	err := svc.TransferStock(ctx, TransferInput{FromProductID: 1, ToProductID: 2, Quantity: 7})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, int64(6), repo.products[1].Quantity)
	require.Equal(t, int64(4), repo.products[2].Quantity)
}

func TestAdjustStockOverwrites(t *testing.T) {
	repo := newMemoryRepo(catalog.Product{ID: 1, Code: "SKU-1", Quantity: 9})
	svc := NewService(repo, nil, nil, nil, nil)

	product, err := svc.AdjustStock(context.Background(), AdjustInput{ProductID: 1, NewQuantity: 3, Reason: "cycle count"})
	require.NoError(t, err)
	require.Equal(t, int64(3), product.Quantity)
	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementAdjust, repo.movements[0].Type)
	require.Equal(t, int64(-6), repo.movements[0].QtyChange)
	require.Equal(t, "cycle count", repo.movements[0].Note)
}

func TestWarehouseDebitCredit(t *testing.T) {
	repo := newMemoryRepo(catalog.Product{ID: 1, Code: "SKU-1", Quantity: 10})
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	// Never-stocked warehouse has nothing to debit.
	err := svc.DebitWarehouse(ctx, WarehouseMovement{WarehouseID: 3, ProductID: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, svc.CreditWarehouse(ctx, WarehouseMovement{WarehouseID: 3, ProductID: 1, Quantity: 5}))
	require.Equal(t, int64(5), repo.levels[levelKey(3, 1)])

	require.NoError(t, svc.DebitWarehouse(ctx, WarehouseMovement{WarehouseID: 3, ProductID: 1, Quantity: 5}))
	require.Equal(t, int64(0), repo.levels[levelKey(3, 1)])

	// Warehouse legs never change the product total.
	require.Equal(t, int64(10), repo.products[1].Quantity)
}

func TestWarehouseLegsUnknownProduct(t *testing.T) {
	repo := newMemoryRepo(catalog.Product{ID: 1, Code: "SKU-1", Quantity: 10})
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	// A bogus product id is a missing row, not an empty shelf.
	err := svc.DebitWarehouse(ctx, WarehouseMovement{WarehouseID: 3, ProductID: 99, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = svc.CreditWarehouse(ctx, WarehouseMovement{WarehouseID: 3, ProductID: 99, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.NotContains(t, repo.levels, levelKey(3, 99))
}
