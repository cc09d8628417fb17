package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerline-erp/ledgerline/internal/catalog"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, status *PurchaseOrderStatus, limit int) ([]PurchaseOrder, error)
}

// StockPort posts received quantities into inventory.
type StockPort interface {
	AddStock(ctx context.Context, entry stock.AddEntry) (catalog.Product, error)
}

// SequencePort issues daily document numbers.
type SequencePort interface {
	Next(ctx context.Context, prefix string, day time.Time) (string, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles purchase orders and goods receipt.
type Service struct {
	repo      RepositoryPort
	stock     StockPort
	sequences SequencePort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, stockSvc StockPort, sequences SequencePort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stockSvc, sequences: sequences, audit: audit, logger: logger, now: time.Now}
}

const orderNumberPrefix = "PO"

// CreateOrder persists a draft purchase order. Drafts do not touch inventory.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	if strings.TrimSpace(input.SupplierName) == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier name is required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order needs at least one line", shared.ErrValidation)
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: line quantity must be positive", stock.ErrInvalidQuantity)
		}
		if line.UnitCost < 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: unit cost must not be negative", shared.ErrValidation)
		}
	}

	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := s.sequences.Next(ctx, orderNumberPrefix, s.now())
		if err != nil {
			return err
		}

		lines := make([]PurchaseOrderLine, 0, len(input.Lines))
		var total float64
		for _, in := range input.Lines {
			total += float64(in.Quantity) * in.UnitCost
			lines = append(lines, PurchaseOrderLine{
				ProductID:    in.ProductID,
				Quantity:     in.Quantity,
				UnitCost:     in.UnitCost,
				SellingPrice: in.SellingPrice,
				BatchNumber:  in.BatchNumber,
				ExpiryDate:   in.ExpiryDate,
			})
		}

		created, err = tx.InsertOrder(ctx, PurchaseOrder{
			Number:       number,
			SupplierName: input.SupplierName,
			Status:       PurchaseOrderStatusDraft,
			TotalAmount:  total,
			Note:         input.Note,
			WarehouseID:  input.WarehouseID,
			CreatedBy:    shared.ActorFromContext(ctx),
		})
		if err != nil {
			return err
		}
		created.Lines, err = tx.InsertLines(ctx, created.ID, lines)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "purchase:create", created.ID, map[string]any{
		"number":   created.Number,
		"supplier": created.SupplierName,
		"total":    created.TotalAmount,
	})
	return created, nil
}

// ReceiveOrder transitions a draft to received and posts one stock inbound
// per line. The locked status check makes a second receive fail instead of
// double-crediting inventory.
func (s *Service) ReceiveOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	var received PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != PurchaseOrderStatusDraft {
			return fmt.Errorf("%w: purchase order %s is %s", shared.ErrInvalidState, po.Number, po.Status)
		}

		actorID := shared.ActorFromContext(ctx)
		var warehouseID int64
		if po.WarehouseID != nil {
			warehouseID = *po.WarehouseID
		}
		for _, line := range po.Lines {
			sellingPrice := line.UnitCost
			if line.SellingPrice != nil {
				sellingPrice = *line.SellingPrice
			}
			_, err := s.stock.AddStock(ctx, stock.AddEntry{
				ProductID:    line.ProductID,
				WarehouseID:  warehouseID,
				Quantity:     line.Quantity,
				BuyingPrice:  line.UnitCost,
				SellingPrice: sellingPrice,
				BatchNumber:  line.BatchNumber,
				ExpiryDate:   line.ExpiryDate,
				RefModule:    "purchasing",
				RefID:        po.Number,
				ActorID:      actorID,
			})
			if err != nil {
				return err
			}
		}
		if err := tx.MarkReceived(ctx, id, actorID); err != nil {
			return err
		}
		now := s.now()
		po.Status = PurchaseOrderStatusReceived
		po.ReceivedBy = &actorID
		po.ReceivedAt = &now
		received = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "purchase:received", id, map[string]any{"number": received.Number})
	return received, nil
}

// GetOrder loads a purchase order with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders lists purchase orders, optionally filtered by status.
func (s *Service) ListOrders(ctx context.Context, status *PurchaseOrderStatus, limit int) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, status, limit)
}

func (s *Service) recordAudit(ctx context.Context, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
