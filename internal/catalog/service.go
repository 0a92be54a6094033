package catalog

import (
	"context"
	"strings"

	"github.com/spindle-erp/spindle-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateInput) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	ListWithStock(ctx context.Context, req ListRequest) ([]ProductWithStock, error)
	SKUExists(ctx context.Context, sku string) (bool, error)
}

// Service manages the product catalog.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a product. SKUs are caller-supplied and must be unique.
func (s *Service) Create(ctx context.Context, input CreateInput) (Product, error) {
	input.SKU = strings.ToUpper(strings.TrimSpace(input.SKU))
	input.Name = strings.TrimSpace(input.Name)
	if input.SKU == "" {
		return Product{}, shared.Validationf("catalog: sku required")
	}
	if input.Name == "" {
		return Product{}, shared.Validationf("catalog: name required")
	}
	if input.RetailPrice < 0 || input.WholesalePrice < 0 {
		return Product{}, shared.Validationf("catalog: prices must not be negative")
	}
	exists, err := s.repo.SKUExists(ctx, input.SKU)
	if err != nil {
		return Product{}, err
	}
	if exists {
		return Product{}, shared.Conflictf("catalog: sku %s already registered", input.SKU)
	}
	return s.repo.Create(ctx, input)
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns products with their derived stock level in one pass.
func (s *Service) List(ctx context.Context, req ListRequest) ([]ProductWithStock, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 200
	}
	return s.repo.ListWithStock(ctx, req)
}
