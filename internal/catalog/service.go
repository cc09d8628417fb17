package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	CreateProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
}

// Service serves catalog master data, fronted by the product cache.
type Service struct {
	repo   RepositoryPort
	cache  *ProductCache
	logger *slog.Logger
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *ProductCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// CreateProduct validates and persists a product row.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if strings.TrimSpace(p.Code) == "" {
		return Product{}, fmt.Errorf("%w: product code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return Product{}, fmt.Errorf("%w: product name is required", shared.ErrValidation)
	}
	if p.Quantity < 0 {
		return Product{}, fmt.Errorf("%w: quantity must be >= 0", shared.ErrValidation)
	}
	if p.BuyingPrice < 0 || p.SellingPrice < 0 {
		return Product{}, fmt.Errorf("%w: prices must be >= 0", shared.ErrValidation)
	}
	return s.repo.CreateProduct(ctx, p)
}

// GetProduct serves a read-mostly lookup through the cache.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if p, ok := s.cache.Get(ctx, id); ok {
		return p, nil
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.Warn("product cache set failed", slog.Int64("product_id", id), slog.Any("error", err))
	}
	return p, nil
}

// ListProducts lists products from the store.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

// InvalidateProduct drops a cached product entry.
func (s *Service) InvalidateProduct(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("product cache invalidate failed", slog.Int64("product_id", id), slog.Any("error", err))
	}
}

// CreateWarehouse validates and persists a warehouse.
func (s *Service) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	if strings.TrimSpace(w.Code) == "" || strings.TrimSpace(w.Name) == "" {
		return Warehouse{}, fmt.Errorf("%w: warehouse code and name are required", shared.ErrValidation)
	}
	return s.repo.CreateWarehouse(ctx, w)
}

// GetWarehouse loads a warehouse.
func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

// ListWarehouses lists warehouses.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}
