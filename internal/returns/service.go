package returns

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ledgerline-erp/ledgerline/internal/catalog"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReturn(ctx context.Context, id int64) (Return, error)
	ListReturns(ctx context.Context, saleID int64, limit int) ([]Return, error)
}

// StockPort feeds returned goods back into inventory.
type StockPort interface {
	AddStock(ctx context.Context, entry stock.AddEntry) (catalog.Product, error)
}

// CatalogPort reads products for restock pricing.
type CatalogPort interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// SequencePort issues daily document numbers.
type SequencePort interface {
	Next(ctx context.Context, prefix string, day time.Time) (string, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service validates and applies reversals against prior sales.
type Service struct {
	repo      RepositoryPort
	stock     StockPort
	products  CatalogPort
	sequences SequencePort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, stockSvc StockPort, products CatalogPort, sequences SequencePort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		stock:     stockSvc,
		products:  products,
		sequences: sequences,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

const returnNumberPrefix = "RTN"

// ProcessReturn applies a return against a sale. Each line is bounded by the
// quantity sold minus what earlier returns already took back, checked against
// a locked snapshot so concurrent returns cannot jointly exceed the bound.
// When restock is requested and the goods are physically back, inventory is
// credited in the same transaction.
func (s *Service) ProcessReturn(ctx context.Context, input ProcessReturnInput) (Return, error) {
	if len(input.Lines) == 0 {
		return Return{}, fmt.Errorf("%w: return needs at least one line", shared.ErrValidation)
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Return{}, fmt.Errorf("%w: line quantity must be positive", stock.ErrInvalidQuantity)
		}
	}
	status := input.Status
	if status == "" {
		status = ReturnStatusReceived
	}
	switch status {
	case ReturnStatusPending, ReturnStatusReceived, ReturnStatusCompleted:
	default:
		return Return{}, fmt.Errorf("%w: unknown return status %q", shared.ErrValidation, status)
	}

	var created Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockSale(ctx, input.SaleID); err != nil {
			return err
		}
		sold, err := tx.SoldQuantities(ctx, input.SaleID)
		if err != nil {
			return err
		}
		returned, err := tx.ReturnedQuantities(ctx, input.SaleID)
		if err != nil {
			return err
		}
		prices, err := tx.SalePrices(ctx, input.SaleID)
		if err != nil {
			return err
		}

		lines := make([]ReturnLine, 0, len(input.Lines))
		for _, in := range input.Lines {
			soldQty, ok := sold[in.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d was not part of sale %d", shared.ErrValidation, in.ProductID, input.SaleID)
			}
			remaining := soldQty - returned[in.ProductID]
			if in.Quantity > remaining {
				return fmt.Errorf("%w: product %d sold %d, already returned %d, requested %d",
					ErrReturnQuantityExceeded, in.ProductID, soldQty, returned[in.ProductID], in.Quantity)
			}
			lines = append(lines, ReturnLine{
				ProductID: in.ProductID,
				Quantity:  in.Quantity,
				UnitPrice: prices[in.ProductID],
			})
		}

		number, err := s.sequences.Next(ctx, returnNumberPrefix, s.now())
		if err != nil {
			return err
		}
		ret := Return{
			Number:    number,
			SaleID:    input.SaleID,
			Status:    status,
			Restock:   input.Restock,
			Reason:    input.Reason,
			CreatedBy: shared.ActorFromContext(ctx),
		}
		ret, err = tx.InsertReturn(ctx, ret)
		if err != nil {
			return err
		}
		ret.Lines, err = tx.InsertLines(ctx, ret.ID, lines)
		if err != nil {
			return err
		}

		if input.Restock && status.restocks() {
			if err := s.restock(ctx, ret); err != nil {
				return err
			}
		}
		created = ret
		return nil
	})
	if err != nil {
		return Return{}, err
	}
	s.recordAudit(ctx, "returns:process", created.ID, map[string]any{
		"number":  created.Number,
		"sale_id": created.SaleID,
		"restock": created.Restock,
	})
	return created, nil
}

// restock credits each returned line back to inventory at the product's last
// known prices, so the add does not clobber pricing.
func (s *Service) restock(ctx context.Context, ret Return) error {
	actorID := shared.ActorFromContext(ctx)
	for _, line := range ret.Lines {
		product, err := s.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return err
		}
		_, err = s.stock.AddStock(ctx, stock.AddEntry{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			BuyingPrice:  product.BuyingPrice,
			SellingPrice: product.SellingPrice,
			ExpiryDate:   product.ExpiryDate,
			RefModule:    "returns",
			RefID:        ret.Number,
			ActorID:      actorID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GetReturn loads a return with its lines.
func (s *Service) GetReturn(ctx context.Context, id int64) (Return, error) {
	return s.repo.GetReturn(ctx, id)
}

// ListReturns lists returns, optionally scoped to one sale.
func (s *Service) ListReturns(ctx context.Context, saleID int64, limit int) ([]Return, error) {
	return s.repo.ListReturns(ctx, saleID, limit)
}

func (s *Service) recordAudit(ctx context.Context, action string, returnID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "return",
		EntityID: strconv.FormatInt(returnID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
