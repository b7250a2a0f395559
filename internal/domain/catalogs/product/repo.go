package product

import (
	"context"

	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	// GetByID retrieves a product by ID.
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// List retrieves products, optionally including inactive ones.
	List(ctx context.Context, includeInactive bool) ([]Product, error)

	// Create inserts a new product.
	Create(ctx context.Context, p *Product) error

	// Update saves product changes.
	Update(ctx context.Context, p *Product) error

	// UpdateLastKnownCost refreshes the cached cost without touching the
	// rest of the record.
	UpdateLastKnownCost(ctx context.Context, productID id.ID, cost types.Money) error
}
