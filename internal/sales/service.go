package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ledgerline-erp/ledgerline/internal/catalog"
	"github.com/ledgerline-erp/ledgerline/internal/credit"
	"github.com/ledgerline-erp/ledgerline/internal/events"
	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id int64) (Sale, error)
	ListSales(ctx context.Context, f SaleFilter) ([]Sale, error)
}

// CatalogPort reads products. Inside a sale transaction the read joins the
// transaction, so availability checks see locked-consistent state.
type CatalogPort interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// StockPort decrements inventory for approved sale lines.
type StockPort interface {
	ReduceStock(ctx context.Context, input stock.ReduceInput) (int64, error)
}

// CreditPort books the credit portion of a sale onto the customer account.
type CreditPort interface {
	ProcessCreditPurchase(ctx context.Context, customerID int64, amount float64) (credit.Customer, error)
}

// SequencePort issues daily document numbers.
type SequencePort interface {
	Next(ctx context.Context, prefix string, day time.Time) (string, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates sale creation and approval. An approved sale is the
// single point where inventory and customer credit are mutated, and the
// whole thing commits or rolls back as one transaction.
type Service struct {
	repo      RepositoryPort
	products  CatalogPort
	stock     StockPort
	credit    CreditPort
	sequences SequencePort
	publisher events.Publisher
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. publisher and audit may be nil.
func NewService(repo RepositoryPort, products CatalogPort, stockSvc StockPort, creditSvc CreditPort, sequences SequencePort, publisher events.Publisher, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		products:  products,
		stock:     stockSvc,
		credit:    creditSvc,
		sequences: sequences,
		publisher: publisher,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

const saleNumberPrefix = "INV"

// CreateSale creates a sale. Every line is validated against available stock
// before anything is written; a draft persists the document only, while a
// non-draft sale is approved immediately: stock is reduced per line, the
// credit portion is booked, and a completion event fires after commit.
func (s *Service) CreateSale(ctx context.Context, input CreateSaleInput) (Sale, error) {
	if len(input.Lines) == 0 {
		return Sale{}, fmt.Errorf("%w: sale needs at least one line", shared.ErrValidation)
	}
	if input.Discount < 0 || input.CashAmount < 0 || input.TransferAmount < 0 || input.CreditAmount < 0 {
		return Sale{}, fmt.Errorf("%w: amounts must not be negative", shared.ErrValidation)
	}
	if input.CreditAmount > 0 && input.CustomerID == nil {
		return Sale{}, fmt.Errorf("%w: credit sale requires a customer", shared.ErrValidation)
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Sale{}, fmt.Errorf("%w: line quantity must be positive", stock.ErrInvalidQuantity)
		}
	}

	var created Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines := make([]SaleLine, 0, len(input.Lines))
		var total float64
		for _, in := range input.Lines {
			product, err := s.products.GetProduct(ctx, in.ProductID)
			if err != nil {
				return err
			}
			if in.Quantity > product.Quantity {
				return fmt.Errorf("%w: product %d has %d, requested %d",
					stock.ErrInsufficientStock, product.ID, product.Quantity, in.Quantity)
			}
			price := product.SellingPrice
			if in.UnitPrice != nil {
				price = *in.UnitPrice
			}
			lineTotal := float64(in.Quantity) * price
			total += lineTotal
			lines = append(lines, SaleLine{
				ProductID: in.ProductID,
				Quantity:  in.Quantity,
				UnitPrice: price,
				LineTotal: lineTotal,
			})
		}

		paid := input.CashAmount + input.TransferAmount + input.CreditAmount
		due := total - input.Discount - paid
		if due < 0 {
			return fmt.Errorf("%w: payments %.2f exceed amount due %.2f",
				shared.ErrValidation, paid, total-input.Discount)
		}

		number, err := s.sequences.Next(ctx, saleNumberPrefix, s.now())
		if err != nil {
			return err
		}

		status := SaleStatusApproved
		if input.Draft {
			status = SaleStatusDraft
		}
		sale := Sale{
			Number:         number,
			CustomerID:     input.CustomerID,
			WarehouseID:    input.WarehouseID,
			Status:         status,
			TotalAmount:    total,
			Discount:       input.Discount,
			PaidAmount:     paid,
			DueAmount:      due,
			CashAmount:     input.CashAmount,
			TransferAmount: input.TransferAmount,
			CreditAmount:   input.CreditAmount,
			Note:           input.Note,
			CreatedBy:      shared.ActorFromContext(ctx),
		}
		sale, err = tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.Lines, err = tx.InsertLines(ctx, sale.ID, lines)
		if err != nil {
			return err
		}

		if !input.Draft {
			if err := s.applySale(ctx, sale); err != nil {
				return err
			}
		}
		created = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, "sales:create", created.ID, map[string]any{
		"number": created.Number,
		"status": created.Status,
		"total":  created.TotalAmount,
	})
	return created, nil
}

// ApproveSale transitions a draft to approved. This is the point at which
// stock and credit move for a draft sale; approving twice fails.
func (s *Service) ApproveSale(ctx context.Context, id int64) (Sale, error) {
	var approved Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status != SaleStatusDraft {
			return fmt.Errorf("%w: sale %s is %s", shared.ErrInvalidState, sale.Number, sale.Status)
		}

		for _, line := range sale.Lines {
			product, err := s.products.GetProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if line.Quantity > product.Quantity {
				return fmt.Errorf("%w: product %d has %d, requested %d",
					stock.ErrInsufficientStock, product.ID, product.Quantity, line.Quantity)
			}
		}
		if err := tx.SetStatus(ctx, id, SaleStatusApproved); err != nil {
			return err
		}
		sale.Status = SaleStatusApproved
		if err := s.applySale(ctx, sale); err != nil {
			return err
		}
		approved = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, "sales:approve", id, map[string]any{"number": approved.Number})
	return approved, nil
}

// applySale runs inside the sale transaction: reduce stock per line, book the
// credit portion, schedule the completion event. Any failure rolls back the
// sale document and every reduction already applied.
func (s *Service) applySale(ctx context.Context, sale Sale) error {
	actorID := shared.ActorFromContext(ctx)
	var warehouseID int64
	if sale.WarehouseID != nil {
		warehouseID = *sale.WarehouseID
	}
	for _, line := range sale.Lines {
		_, err := s.stock.ReduceStock(ctx, stock.ReduceInput{
			ProductID:   line.ProductID,
			WarehouseID: warehouseID,
			Quantity:    line.Quantity,
			RefModule:   "sales",
			RefID:       sale.Number,
			ActorID:     actorID,
		})
		if err != nil {
			return err
		}
	}
	if sale.CreditAmount > 0 && sale.CustomerID != nil {
		if _, err := s.credit.ProcessCreditPurchase(ctx, *sale.CustomerID, sale.CreditAmount); err != nil {
			return fmt.Errorf("sale %s: %w", sale.Number, err)
		}
	}
	if s.publisher != nil {
		var customerID int64
		if sale.CustomerID != nil {
			customerID = *sale.CustomerID
		}
		evt := events.SaleCompleted{
			SaleID:      sale.ID,
			Number:      sale.Number,
			CustomerID:  customerID,
			TotalAmount: sale.TotalAmount,
			PaidAmount:  sale.PaidAmount,
			DueAmount:   sale.DueAmount,
			OccurredAt:  s.now().UTC(),
		}
		db.AfterCommit(ctx, func(ctx context.Context) {
			_ = s.publisher.Publish(ctx, evt)
		})
	}
	return nil
}

// RegisterPayment applies a cash or transfer payment against the residual due.
func (s *Service) RegisterPayment(ctx context.Context, id int64, amount float64, method PaymentMethod) (Sale, error) {
	if amount <= 0 {
		return Sale{}, fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	if method != PaymentMethodCash && method != PaymentMethodTransfer {
		return Sale{}, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, method)
	}

	var updated Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status != SaleStatusApproved {
			return fmt.Errorf("%w: sale %s is %s", shared.ErrInvalidState, sale.Number, sale.Status)
		}
		if amount > sale.DueAmount {
			return fmt.Errorf("%w: due %.2f, paid %.2f", ErrPaymentExceedsDue, sale.DueAmount, amount)
		}

		sale.PaidAmount += amount
		sale.DueAmount -= amount
		switch method {
		case PaymentMethodCash:
			sale.CashAmount += amount
		case PaymentMethodTransfer:
			sale.TransferAmount += amount
		}
		if err := tx.SetPayment(ctx, id, sale.PaidAmount, sale.DueAmount, sale.CashAmount, sale.TransferAmount); err != nil {
			return err
		}
		updated = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, "sales:payment", id, map[string]any{"amount": amount, "method": method})
	return updated, nil
}

// GetSale loads a sale with its lines.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales returns sales matching the filter.
func (s *Service) ListSales(ctx context.Context, f SaleFilter) ([]Sale, error) {
	return s.repo.ListSales(ctx, f)
}

func (s *Service) recordAudit(ctx context.Context, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "sale",
		EntityID: strconv.FormatInt(saleID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
