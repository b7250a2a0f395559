package product

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/core/id"
	"backoffice/internal/core/numerator"
	"backoffice/internal/core/types"
	"backoffice/internal/domain/storage"
	"backoffice/pkg/logger"
)

// Service provides business logic for the product catalog and adapts it to
// the ledger's read-only storage.Catalog contract.
type Service struct {
	repo    Repository
	numbers numerator.Generator
}

// NewService creates a new Product service.
func NewService(repo Repository, numbers numerator.Generator) *Service {
	return &Service{repo: repo, numbers: numbers}
}

// Create validates and inserts a new product, generating a code if missing.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	if p.Code == "" {
		code, err := s.numbers.GetNextNumber(ctx, numerator.DefaultConfig("PR"), nil, now)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		p.Code = code
	}
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	p.IsActive = true
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	logger.Info(ctx, "product created", "product_id", p.ID, "code", p.Code, "name", p.Name)
	return nil
}

// Update validates and saves product changes.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Get retrieves a product by ID.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// List retrieves active products.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx, false)
}

// Deactivate hides a product from new operations. Existing lots remain.
func (s *Service) Deactivate(ctx context.Context, productID id.ID) error {
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, p)
}

// RecordPurchaseCost refreshes the cached last-known cost after a receipt,
// keeping the deficit cost fallback chain warm.
func (s *Service) RecordPurchaseCost(ctx context.Context, productID id.ID, cost types.Money) error {
	if !cost.IsPositive() {
		return nil
	}
	if err := s.repo.UpdateLastKnownCost(ctx, productID, cost); err != nil {
		return fmt.Errorf("update last known cost: %w", err)
	}
	return nil
}

// --- storage.Catalog implementation ---

// GetItem implements storage.Catalog.
func (s *Service) GetItem(ctx context.Context, itemID id.ID) (storage.CatalogItem, error) {
	p, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return storage.CatalogItem{}, err
	}
	return storage.CatalogItem{
		ID:       p.ID,
		Name:     p.Name,
		Unit:     p.Unit,
		MinStock: p.MinStock,
	}, nil
}

// LoadCatalogCost implements storage.Catalog.
func (s *Service) LoadCatalogCost(ctx context.Context, itemID id.ID) (storage.CatalogCost, error) {
	p, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return storage.CatalogCost{}, err
	}
	return storage.CatalogCost{
		LastKnownCost: p.LastKnownCost,
		BaseCost:      p.BaseCost,
	}, nil
}

var _ storage.Catalog = (*Service)(nil)
