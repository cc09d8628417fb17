package returns

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

type saleRecord struct {
	sold   map[int64]int64
	prices map[int64]float64
}

type memoryRepo struct {
	sales   map[int64]saleRecord
	returns map[int64]Return
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sales: map[int64]saleRecord{}, returns: map[int64]Return{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Return, len(r.returns))
	for id, ret := range r.returns {
		snapshot[id] = ret
	}
	snapshotID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.returns = snapshot
		r.nextID = snapshotID
		return err
	}
	return nil
}

func (r *memoryRepo) GetReturn(ctx context.Context, id int64) (Return, error) {
	ret, ok := r.returns[id]
	if !ok {
		return Return{}, fmt.Errorf("%w: return %d", shared.ErrNotFound, id)
	}
	return ret, nil
}

func (r *memoryRepo) ListReturns(ctx context.Context, saleID int64, limit int) ([]Return, error) {
	var out []Return
	for _, ret := range r.returns {
		if saleID == 0 || ret.SaleID == saleID {
			out = append(out, ret)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) LockSale(ctx context.Context, saleID int64) error {
	if _, ok := tx.repo.sales[saleID]; !ok {
		return fmt.Errorf("%w: approved sale %d", shared.ErrNotFound, saleID)
	}
	return nil
}

func (tx *memoryTx) SoldQuantities(ctx context.Context, saleID int64) (map[int64]int64, error) {
	return tx.repo.sales[saleID].sold, nil
}

func (tx *memoryTx) ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]int64, error) {
	out := map[int64]int64{}
	for _, ret := range tx.repo.returns {
		if ret.SaleID != saleID {
			continue
		}
		for _, line := range ret.Lines {
			out[line.ProductID] += line.Quantity
		}
	}
	return out, nil
}

func (tx *memoryTx) SalePrices(ctx context.Context, saleID int64) (map[int64]float64, error) {
	return tx.repo.sales[saleID].prices, nil
}

func (tx *memoryTx) InsertReturn(ctx context.Context, ret Return) (Return, error) {
	tx.repo.nextID++
	ret.ID = tx.repo.nextID
	ret.CreatedAt = time.Now()
	tx.repo.returns[ret.ID] = ret
	return ret, nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, returnID int64, lines []ReturnLine) ([]ReturnLine, error) {
	ret := tx.repo.returns[returnID]
	for i := range lines {
		lines[i].ID = int64(i + 1)
		lines[i].ReturnID = returnID
	}
	ret.Lines = lines
	tx.repo.returns[returnID] = ret
	return lines, nil
}

type memoryCatalog struct {
	products map[int64]catalog.Product
}

func (c *memoryCatalog) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

type memoryStock struct {
	catalog *memoryCatalog
	entries []stock.AddEntry
}

func (s *memoryStock) AddStock(ctx context.Context, entry stock.AddEntry) (catalog.Product, error) {
	p := s.catalog.products[entry.ProductID]
	p.Quantity += entry.Quantity
	s.catalog.products[entry.ProductID] = p
	s.entries = append(s.entries, entry)
	return p, nil
}

type fixedSequence struct {
	n int
}

func (s *fixedSequence) Next(ctx context.Context, prefix string, day time.Time) (string, error) {
	s.n++
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), s.n), nil
}

type returnFixture struct {
	repo    *memoryRepo
	catalog *memoryCatalog
	stock   *memoryStock
	service *Service
}

func newReturnFixture() *returnFixture {
	cat := &memoryCatalog{products: map[int64]catalog.Product{
		1: {ID: 1, Code: "SKU-1", Quantity: 7, BuyingPrice: 60, SellingPrice: 100},
	}}
	f := &returnFixture{
		repo:    newMemoryRepo(),
		catalog: cat,
		stock:   &memoryStock{catalog: cat},
	}
	// Sale of 3 units of product 1 at 100 apiece.
	f.repo.sales[10] = saleRecord{sold: map[int64]int64{1: 3}, prices: map[int64]float64{1: 100}}
	f.service = NewService(f.repo, f.stock, cat, &fixedSequence{}, nil, nil)
	return f
}

func TestProcessReturnRestocks(t *testing.T) {
	f := newReturnFixture()

	ret, err := f.service.ProcessReturn(context.Background(), ProcessReturnInput{
		SaleID:  10,
		Restock: true,
		Lines:   []ReturnLineInput{{ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, ReturnStatusReceived, ret.Status)
	require.Len(t, ret.Lines, 1)
	require.InDelta(t, 100.0, ret.Lines[0].UnitPrice, 0.001)

	require.Len(t, f.stock.entries, 1)
	require.EqualValues(t, 9, f.catalog.products[1].Quantity)
}

func TestProcessReturnBoundedBySoldQuantity(t *testing.T) {
	f := newReturnFixture()
	ctx := context.Background()

	_, err := f.service.ProcessReturn(ctx, ProcessReturnInput{
		SaleID: 10,
		Lines:  []ReturnLineInput{{ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err)

	// Only 1 of the 3 sold units remains returnable.
	_, err = f.service.ProcessReturn(ctx, ProcessReturnInput{
		SaleID: 10,
		Lines:  []ReturnLineInput{{ProductID: 1, Quantity: 2}},
	})
	require.ErrorIs(t, err, ErrReturnQuantityExceeded)
	require.Len(t, f.repo.returns, 1)

	_, err = f.service.ProcessReturn(ctx, ProcessReturnInput{
		SaleID: 10,
		Lines:  []ReturnLineInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
}

func TestProcessReturnPendingDoesNotRestock(t *testing.T) {
	f := newReturnFixture()

	_, err := f.service.ProcessReturn(context.Background(), ProcessReturnInput{
		SaleID:  10,
		Status:  ReturnStatusPending,
		Restock: true,
		Lines:   []ReturnLineInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Empty(t, f.stock.entries)
	require.EqualValues(t, 7, f.catalog.products[1].Quantity)
}

func TestProcessReturnUnknownProductRejected(t *testing.T) {
	f := newReturnFixture()

	_, err := f.service.ProcessReturn(context.Background(), ProcessReturnInput{
		SaleID: 10,
		Lines:  []ReturnLineInput{{ProductID: 99, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, f.repo.returns)
}
