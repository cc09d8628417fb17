package transfers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ledgerline-erp/ledgerline/internal/shared"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Transfer, error)
	List(ctx context.Context, status *TransferStatus, limit int) ([]Transfer, error)
}

// StockPort moves warehouse-level quantity for the two transfer phases.
type StockPort interface {
	DebitWarehouse(ctx context.Context, input stock.WarehouseMovement) error
	CreditWarehouse(ctx context.Context, input stock.WarehouseMovement) error
}

// SequencePort issues daily document numbers.
type SequencePort interface {
	Next(ctx context.Context, prefix string, day time.Time) (string, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the two-phase warehouse transfer state machine.
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

const transferNumberPrefix = "TRF"

// InitiateTransfer debits the source warehouse and records the transfer as
// pending, both in one transaction. Insufficient source stock fails the whole
// initiation.
func (s *Service) InitiateTransfer(ctx context.Context, input InitiateInput) (Transfer, error) {
	if input.FromWarehouseID == 0 || input.ToWarehouseID == 0 || input.ProductID == 0 {
		return Transfer{}, fmt.Errorf("%w: source, destination and product are required", shared.ErrValidation)
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return Transfer{}, fmt.Errorf("%w: source and destination must differ", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return Transfer{}, stock.ErrInvalidQuantity
	}

	var created Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := s.sequences.Next(ctx, transferNumberPrefix, s.now())
		if err != nil {
			return err
		}
		if err := s.stock.DebitWarehouse(ctx, stock.WarehouseMovement{
			WarehouseID: input.FromWarehouseID,
			ProductID:   input.ProductID,
			Quantity:    input.Quantity,
			RefModule:   "transfers",
			RefID:       number,
			ActorID:     shared.ActorFromContext(ctx),
		}); err != nil {
			return err
		}
		created, err = tx.Insert(ctx, Transfer{
			Number:          number,
			FromWarehouseID: input.FromWarehouseID,
			ToWarehouseID:   input.ToWarehouseID,
			ProductID:       input.ProductID,
			Quantity:        input.Quantity,
			Status:          TransferStatusPending,
			Note:            input.Note,
			CreatedBy:       shared.ActorFromContext(ctx),
		})
		return err
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, "transfers:initiate", created.ID, map[string]any{
		"number":   created.Number,
		"from":     created.FromWarehouseID,
		"to":       created.ToWarehouseID,
		"quantity": created.Quantity,
	})
	return created, nil
}

// CompleteTransfer credits the destination warehouse and flips the transfer
// to completed. The status check runs against the locked row, so a transfer
// completes exactly once.
func (s *Service) CompleteTransfer(ctx context.Context, id int64) (Transfer, error) {
	var completed Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		transfer, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if transfer.Status != TransferStatusPending {
			return fmt.Errorf("%w: transfer %s is %s", ErrInvalidTransferState, transfer.Number, transfer.Status)
		}

		actorID := shared.ActorFromContext(ctx)
		if err := s.stock.CreditWarehouse(ctx, stock.WarehouseMovement{
			WarehouseID: transfer.ToWarehouseID,
			ProductID:   transfer.ProductID,
			Quantity:    transfer.Quantity,
			RefModule:   "transfers",
			RefID:       transfer.Number,
			ActorID:     actorID,
		}); err != nil {
			return err
		}
		if err := tx.MarkCompleted(ctx, id, actorID); err != nil {
			return err
		}
		now := s.now()
		transfer.Status = TransferStatusCompleted
		transfer.CompletedBy = &actorID
		transfer.CompletedAt = &now
		completed = transfer
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, "transfers:complete", id, map[string]any{"number": completed.Number})
	return completed, nil
}

// GetTransfer loads a transfer.
func (s *Service) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	return s.repo.Get(ctx, id)
}

// ListTransfers lists transfers, optionally filtered by status.
func (s *Service) ListTransfers(ctx context.Context, status *TransferStatus, limit int) ([]Transfer, error) {
	return s.repo.List(ctx, status, limit)
}

func (s *Service) recordAudit(ctx context.Context, action string, transferID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "warehouse_transfer",
		EntityID: strconv.FormatInt(transferID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
