package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ledgerline-erp/ledgerline/internal/catalog"
	"github.com/ledgerline-erp/ledgerline/internal/events"
	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached product reads after a ledger write.
type Invalidator interface {
	InvalidateProduct(ctx context.Context, id int64)
}

// Service is the stock ledger. Every mutation runs in one transaction with
// the affected rows locked, publishes its events only after commit, and
// invalidates cached product reads.
type Service struct {
	repo      RepositoryPort
	publisher events.Publisher
	audit     AuditPort
	cache     Invalidator
	logger    *slog.Logger
}

// NewService builds Service. publisher, audit and cache may be nil.
func NewService(repo RepositoryPort, publisher events.Publisher, audit AuditPort, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, audit: audit, cache: cache, logger: logger}
}

// ReduceStock removes quantity from a product, failing without side effects
// when the request exceeds what is available. Returns the new quantity.
func (s *Service) ReduceStock(ctx context.Context, input ReduceInput) (int64, error) {
	if input.ProductID == 0 {
		return 0, fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	var newQty int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if input.Quantity > product.Quantity {
			return fmt.Errorf("%w: product %d has %d, requested %d", ErrInsufficientStock, product.ID, product.Quantity, input.Quantity)
		}
		if input.WarehouseID != 0 {
			level, err := tx.GetLevelForUpdate(ctx, input.WarehouseID, input.ProductID)
			if err != nil && !errors.Is(err, ErrLevelNotFound) {
				return err
			}
			if input.Quantity > level {
				return fmt.Errorf("%w: warehouse %d holds %d of product %d, requested %d", ErrInsufficientStock, input.WarehouseID, level, product.ID, input.Quantity)
			}
			if err := tx.UpsertLevel(ctx, input.WarehouseID, input.ProductID, level-input.Quantity); err != nil {
				return err
			}
		}

		newQty = product.Quantity - input.Quantity
		if err := tx.SetProductQuantity(ctx, product.ID, newQty); err != nil {
			return err
		}
		if err := tx.InsertMovement(ctx, Movement{
			Type:        MovementOut,
			ProductID:   product.ID,
			WarehouseID: input.WarehouseID,
			QtyChange:   -input.Quantity,
			BalanceQty:  newQty,
			RefModule:   input.RefModule,
			RefID:       input.RefID,
			Note:        input.Note,
			ActorID:     input.ActorID,
			PostedAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}

		s.emitThresholdEvents(ctx, product, newQty)
		s.invalidateAfterCommit(ctx, product.ID)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, input.ActorID, "stock:reduce", input.ProductID, map[string]any{
		"qty": input.Quantity, "warehouse_id": input.WarehouseID, "ref": input.RefModule,
	})
	return newQty, nil
}

// AddStock posts an inbound entry. A novel batch number forks a new batch row
// inheriting the reference product's static attributes; otherwise the target
// row is incremented in place with last-write-wins price and expiry fields.
func (s *Service) AddStock(ctx context.Context, entry AddEntry) (catalog.Product, error) {
	if entry.ProductID == 0 {
		return catalog.Product{}, fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	if entry.Quantity <= 0 {
		return catalog.Product{}, ErrInvalidQuantity
	}

	var result catalog.Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reference, err := tx.GetProductForUpdate(ctx, entry.ProductID)
		if err != nil {
			return err
		}

		target := reference
		forkBatch := false
		if entry.BatchNumber != nil && !batchMatches(reference, *entry.BatchNumber) {
			existing, err := tx.FindBatchForUpdate(ctx, reference.Code, *entry.BatchNumber)
			switch {
			case err == nil:
				target = existing
			case errors.Is(err, shared.ErrNotFound):
				forkBatch = true
			default:
				return err
			}
		}

		if forkBatch {
			batch := catalog.Product{
				Code:              reference.Code,
				Name:              reference.Name,
				Unit:              reference.Unit,
				Quantity:          entry.Quantity,
				BuyingPrice:       entry.BuyingPrice,
				SellingPrice:      entry.SellingPrice,
				LowStockThreshold: reference.LowStockThreshold,
				ReorderPoint:      reference.ReorderPoint,
				BatchNumber:       entry.BatchNumber,
				ExpiryDate:        entry.ExpiryDate,
			}
			created, err := tx.InsertBatch(ctx, batch)
			if err != nil {
				return err
			}
			result = created
		} else {
			target.Quantity += entry.Quantity
			if entry.BuyingPrice > 0 {
				target.BuyingPrice = entry.BuyingPrice
			}
			if entry.SellingPrice > 0 {
				target.SellingPrice = entry.SellingPrice
			}
			if entry.ExpiryDate != nil {
				target.ExpiryDate = entry.ExpiryDate
			}
			if err := tx.ApplyEntryToProduct(ctx, target); err != nil {
				return err
			}
			result = target
		}

		if entry.WarehouseID != 0 {
			level, err := tx.GetLevelForUpdate(ctx, entry.WarehouseID, result.ID)
			if err != nil && !errors.Is(err, ErrLevelNotFound) {
				return err
			}
			if err := tx.UpsertLevel(ctx, entry.WarehouseID, result.ID, level+entry.Quantity); err != nil {
				return err
			}
		}

		if err := tx.InsertMovement(ctx, Movement{
			Type:        MovementIn,
			ProductID:   result.ID,
			WarehouseID: entry.WarehouseID,
			QtyChange:   entry.Quantity,
			BalanceQty:  result.Quantity,
			RefModule:   entry.RefModule,
			RefID:       entry.RefID,
			Note:        entry.Note,
			ActorID:     entry.ActorID,
			PostedAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}

		s.invalidateAfterCommit(ctx, result.ID)
		return nil
	})
	if err != nil {
		return catalog.Product{}, err
	}
	s.recordAudit(ctx, entry.ActorID, "stock:add", result.ID, map[string]any{
		"qty": entry.Quantity, "warehouse_id": entry.WarehouseID, "ref": entry.RefModule,
	})
	return result, nil
}

// TransferStock moves quantity between two batch rows in one transaction.
// A failure anywhere rolls back both legs, so quantity is never stranded.
func (s *Service) TransferStock(ctx context.Context, input TransferInput) error {
	if input.FromProductID == 0 || input.ToProductID == 0 {
		return fmt.Errorf("%w: source and destination products required", shared.ErrValidation)
	}
	if input.FromProductID == input.ToProductID {
		return fmt.Errorf("%w: source and destination must differ", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Lock in id order so two opposing transfers cannot deadlock.
		firstID, secondID := input.FromProductID, input.ToProductID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}
		locked := map[int64]catalog.Product{}
		for _, id := range []int64{firstID, secondID} {
			p, err := tx.GetProductForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = p
		}
		src, dst := locked[input.FromProductID], locked[input.ToProductID]

		if input.Quantity > src.Quantity {
			return fmt.Errorf("%w: product %d has %d, requested %d", ErrInsufficientStock, src.ID, src.Quantity, input.Quantity)
		}
		if err := tx.SetProductQuantity(ctx, src.ID, src.Quantity-input.Quantity); err != nil {
			return err
		}
		if err := tx.SetProductQuantity(ctx, dst.ID, dst.Quantity+input.Quantity); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.InsertMovement(ctx, Movement{
			Type: MovementTransfer, ProductID: src.ID, QtyChange: -input.Quantity,
			BalanceQty: src.Quantity - input.Quantity, Note: input.Note, ActorID: input.ActorID, PostedAt: now,
		}); err != nil {
			return err
		}
		if err := tx.InsertMovement(ctx, Movement{
			Type: MovementTransfer, ProductID: dst.ID, QtyChange: input.Quantity,
			BalanceQty: dst.Quantity + input.Quantity, Note: input.Note, ActorID: input.ActorID, PostedAt: now,
		}); err != nil {
			return err
		}

		s.invalidateAfterCommit(ctx, src.ID)
		s.invalidateAfterCommit(ctx, dst.ID)
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, input.ActorID, "stock:transfer", input.FromProductID, map[string]any{
		"to_product_id": input.ToProductID, "qty": input.Quantity,
	})
	return nil
}

// AdjustStock overwrites a product quantity after an inventory count. The
// reason is advisory metadata recorded on the movement and audit trail.
func (s *Service) AdjustStock(ctx context.Context, input AdjustInput) (catalog.Product, error) {
	if input.ProductID == 0 {
		return catalog.Product{}, fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	if input.NewQuantity < 0 {
		return catalog.Product{}, fmt.Errorf("%w: quantity must be >= 0", shared.ErrValidation)
	}

	var result catalog.Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if err := tx.SetProductQuantity(ctx, product.ID, input.NewQuantity); err != nil {
			return err
		}
		if err := tx.InsertMovement(ctx, Movement{
			Type:       MovementAdjust,
			ProductID:  product.ID,
			QtyChange:  input.NewQuantity - product.Quantity,
			BalanceQty: input.NewQuantity,
			Note:       input.Reason,
			ActorID:    input.ActorID,
			PostedAt:   time.Now().UTC(),
		}); err != nil {
			return err
		}
		product.Quantity = input.NewQuantity
		result = product

		s.invalidateAfterCommit(ctx, product.ID)
		return nil
	})
	if err != nil {
		return catalog.Product{}, err
	}
	s.recordAudit(ctx, input.ActorID, "stock:adjust", input.ProductID, map[string]any{
		"new_qty": input.NewQuantity, "reason": input.Reason,
	})
	return result, nil
}

// DebitWarehouse removes quantity from a warehouse level without touching the
// product total. Used for the outbound leg of two-phase transfers, where the
// quantity is in flight rather than gone.
func (s *Service) DebitWarehouse(ctx context.Context, input WarehouseMovement) error {
	if input.WarehouseID == 0 || input.ProductID == 0 {
		return fmt.Errorf("%w: warehouse and product required", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProductForUpdate(ctx, input.ProductID); err != nil {
			return err
		}
		level, err := tx.GetLevelForUpdate(ctx, input.WarehouseID, input.ProductID)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return err
		}
		if input.Quantity > level {
			return fmt.Errorf("%w: warehouse %d holds %d of product %d, requested %d", ErrInsufficientStock, input.WarehouseID, level, input.ProductID, input.Quantity)
		}
		if err := tx.UpsertLevel(ctx, input.WarehouseID, input.ProductID, level-input.Quantity); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			Type:        MovementTransfer,
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			QtyChange:   -input.Quantity,
			BalanceQty:  level - input.Quantity,
			RefModule:   input.RefModule,
			RefID:       input.RefID,
			Note:        input.Note,
			ActorID:     input.ActorID,
			PostedAt:    time.Now().UTC(),
		})
	})
}

// CreditWarehouse adds quantity to a warehouse level, creating it lazily.
func (s *Service) CreditWarehouse(ctx context.Context, input WarehouseMovement) error {
	if input.WarehouseID == 0 || input.ProductID == 0 {
		return fmt.Errorf("%w: warehouse and product required", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProductForUpdate(ctx, input.ProductID); err != nil {
			return err
		}
		level, err := tx.GetLevelForUpdate(ctx, input.WarehouseID, input.ProductID)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return err
		}
		if err := tx.UpsertLevel(ctx, input.WarehouseID, input.ProductID, level+input.Quantity); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			Type:        MovementTransfer,
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			QtyChange:   input.Quantity,
			BalanceQty:  level + input.Quantity,
			RefModule:   input.RefModule,
			RefID:       input.RefID,
			Note:        input.Note,
			ActorID:     input.ActorID,
			PostedAt:    time.Now().UTC(),
		})
	})
}

// GetMovements lists the movement trail for a product.
func (s *Service) GetMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if productID == 0 {
		return nil, fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

// emitThresholdEvents publishes low-stock and reorder alerts when the new
// quantity crosses a configured threshold. Crossing means the previous
// quantity was above it, so repeated reductions below a threshold alert once.
func (s *Service) emitThresholdEvents(ctx context.Context, before catalog.Product, newQty int64) {
	if s.publisher == nil {
		return
	}
	now := time.Now().UTC()
	if before.LowStockThreshold > 0 && before.Quantity > before.LowStockThreshold && newQty <= before.LowStockThreshold {
		evt := events.LowStockAlert{
			ProductID:   before.ID,
			ProductCode: before.Code,
			Quantity:    newQty,
			Threshold:   before.LowStockThreshold,
			OccurredAt:  now,
		}
		db.AfterCommit(ctx, func(ctx context.Context) {
			_ = s.publisher.Publish(ctx, evt)
		})
	}
	if before.ReorderPoint > 0 && before.Quantity > before.ReorderPoint && newQty <= before.ReorderPoint {
		evt := events.ReorderLevelReached{
			ProductID:    before.ID,
			ProductCode:  before.Code,
			Quantity:     newQty,
			ReorderPoint: before.ReorderPoint,
			OccurredAt:   now,
		}
		db.AfterCommit(ctx, func(ctx context.Context) {
			_ = s.publisher.Publish(ctx, evt)
		})
	}
}

func (s *Service) invalidateAfterCommit(ctx context.Context, productID int64) {
	if s.cache == nil {
		return
	}
	db.AfterCommit(ctx, func(ctx context.Context) {
		s.cache.InvalidateProduct(ctx, productID)
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if actorID == 0 {
		actorID = shared.ActorFromContext(ctx)
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(productID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}

func batchMatches(p catalog.Product, batchNumber string) bool {
	return p.BatchNumber != nil && *p.BatchNumber == batchNumber
}
