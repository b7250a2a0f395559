// Package product provides the product catalog: the items the batch ledger
// stocks, with their units, stock thresholds and cached cost data.
package product

import (
	"context"
	"time"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
)

// Category groups products for reporting.
type Category string

const (
	CategoryIngredient Category = "ingredient"
	CategoryBeverage   Category = "beverage"
	CategorySupply     Category = "supply"
)

// Product is a catalog item.
type Product struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	Category Category `db:"category" json:"category"`
	Unit     string   `db:"unit" json:"unit"`

	// MinStock triggers the below-min-stock flag on balances; zero disables it.
	MinStock types.Quantity `db:"min_stock" json:"minStock"`

	// LastKnownCost is refreshed from receipts; BaseCost is set manually.
	// Both feed deficit cost resolution. Nil means no value recorded.
	LastKnownCost *types.Money `db:"last_known_cost" json:"lastKnownCost,omitempty"`
	BaseCost      *types.Money `db:"base_cost" json:"baseCost,omitempty"`

	IsActive bool `db:"is_active" json:"isActive"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate implements basic input validation.
func (p *Product) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.Unit == "" {
		return apperror.NewValidation("unit is required").WithDetail("field", "unit")
	}
	switch p.Category {
	case CategoryIngredient, CategoryBeverage, CategorySupply:
	default:
		return apperror.NewValidation("unknown category").WithDetail("category", string(p.Category))
	}
	if p.MinStock.IsNegative() {
		return apperror.NewValidation("min stock cannot be negative").WithDetail("field", "minStock")
	}
	if p.LastKnownCost != nil && p.LastKnownCost.IsNegative() {
		return apperror.NewValidation("last known cost cannot be negative").WithDetail("field", "lastKnownCost")
	}
	if p.BaseCost != nil && p.BaseCost.IsNegative() {
		return apperror.NewValidation("base cost cannot be negative").WithDetail("field", "baseCost")
	}
	return nil
}
