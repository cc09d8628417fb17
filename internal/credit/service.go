package credit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerline-erp/ledgerline/internal/events"
	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages customer credit accounts. The credit limit is soft: a
// purchase that pushes spend past it still succeeds and reports the overage
// as a notification, never as a failure.
type Service struct {
	repo      RepositoryPort
	publisher events.Publisher
	audit     AuditPort
	cache     *CustomerCache
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. publisher, audit and cache may be nil.
func NewService(repo RepositoryPort, publisher events.Publisher, audit AuditPort, cache *CustomerCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// CanExtendCredit reports purchase eligibility for a loaded customer.
func (s *Service) CanExtendCredit(c Customer) bool {
	return c.CanPurchase(s.now())
}

// ProcessCreditPurchase adds a credit purchase to the customer's account.
// Fails only on an expired credit period; exceeding the limit succeeds and
// emits a CreditLimitExceeded notification after commit.
func (s *Service) ProcessCreditPurchase(ctx context.Context, customerID int64, amount float64) (Customer, error) {
	if amount <= 0 {
		return Customer{}, ErrInvalidAmount
	}

	var updated Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		customer, err := tx.GetCustomerForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if !customer.CanPurchase(s.now()) {
			return fmt.Errorf("%w: customer %d", ErrCreditPeriodExpired, customerID)
		}

		customer.CreditSpend += amount
		customer.CreditBalance += amount
		if err := tx.UpdateCredit(ctx, customerID, customer.CreditSpend, customer.CreditBalance); err != nil {
			return err
		}
		updated = customer

		if s.publisher != nil && customer.CreditLimit > 0 && customer.CreditSpend > customer.CreditLimit {
			evt := events.CreditLimitExceeded{
				CustomerID:  customer.ID,
				CreditLimit: customer.CreditLimit,
				Spend:       customer.CreditSpend,
				Overage:     customer.CreditSpend - customer.CreditLimit,
				OccurredAt:  s.now().UTC(),
			}
			db.AfterCommit(ctx, func(ctx context.Context) {
				_ = s.publisher.Publish(ctx, evt)
			})
		}
		s.invalidateAfterCommit(ctx, customerID)
		return nil
	})
	if err != nil {
		return Customer{}, err
	}
	s.recordAudit(ctx, "credit:purchase", customerID, map[string]any{"amount": amount})
	return updated, nil
}

// SettleCredit pays down the customer's outstanding balance, decrementing
// spend and balance symmetrically.
func (s *Service) SettleCredit(ctx context.Context, customerID int64, amount float64) (Customer, error) {
	if amount <= 0 {
		return Customer{}, ErrInvalidAmount
	}

	var updated Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		customer, err := tx.GetCustomerForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if amount > customer.CreditBalance {
			return fmt.Errorf("%w: balance %.2f, requested %.2f", ErrSettlementExceedsBalance, customer.CreditBalance, amount)
		}

		customer.CreditBalance -= amount
		customer.CreditSpend -= amount
		if customer.CreditSpend < 0 {
			customer.CreditSpend = 0
		}
		if err := tx.UpdateCredit(ctx, customerID, customer.CreditSpend, customer.CreditBalance); err != nil {
			return err
		}
		updated = customer

		s.invalidateAfterCommit(ctx, customerID)
		return nil
	})
	if err != nil {
		return Customer{}, err
	}
	s.recordAudit(ctx, "credit:settle", customerID, map[string]any{"amount": amount})
	return updated, nil
}

// CreateCustomer validates and persists a customer.
func (s *Service) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if strings.TrimSpace(c.Code) == "" || strings.TrimSpace(c.Name) == "" {
		return Customer{}, fmt.Errorf("%w: customer code and name are required", shared.ErrValidation)
	}
	if c.CreditLimit < 0 {
		return Customer{}, fmt.Errorf("%w: credit limit must be >= 0", shared.ErrValidation)
	}
	return s.repo.CreateCustomer(ctx, c)
}

// GetCustomer serves a read-mostly lookup through the cache.
func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	if c, ok := s.cache.Get(ctx, id); ok {
		return c, nil
	}
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := s.cache.Set(ctx, c); err != nil {
		s.logger.Warn("customer cache set failed", slog.Int64("customer_id", id), slog.Any("error", err))
	}
	return c, nil
}

// ListCustomers lists customers from the store.
func (s *Service) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, limit, offset)
}

func (s *Service) invalidateAfterCommit(ctx context.Context, customerID int64) {
	if s.cache == nil {
		return
	}
	db.AfterCommit(ctx, func(ctx context.Context) {
		if err := s.cache.Invalidate(ctx, customerID); err != nil {
			s.logger.Warn("customer cache invalidate failed", slog.Int64("customer_id", customerID), slog.Any("error", err))
		}
	})
}

func (s *Service) recordAudit(ctx context.Context, action string, customerID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "customer",
		EntityID: strconv.FormatInt(customerID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
