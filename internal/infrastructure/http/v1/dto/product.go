package dto

import (
	"backoffice/internal/core/types"
	"backoffice/internal/domain/catalogs/product"
)

// CreateProductRequest for creating catalog items.
type CreateProductRequest struct {
	Code     string   `json:"code"`
	Name     string   `json:"name" binding:"required"`
	Category string   `json:"category" binding:"required"`
	Unit     string   `json:"unit" binding:"required"`
	MinStock float64  `json:"minStock" binding:"min=0"`
	BaseCost *float64 `json:"baseCost,omitempty"`
}

// ToDomain converts to a domain product.
func (r *CreateProductRequest) ToDomain() *product.Product {
	p := &product.Product{
		Code:     r.Code,
		Name:     r.Name,
		Category: product.Category(r.Category),
		Unit:     r.Unit,
		MinStock: types.NewQuantityFromFloat64(r.MinStock),
		IsActive: true,
	}
	if r.BaseCost != nil {
		cost := types.NewMoney(*r.BaseCost)
		p.BaseCost = &cost
	}
	return p
}

// UpdateProductRequest for updating catalog items. Nil fields keep their
// current values.
type UpdateProductRequest struct {
	Name     *string  `json:"name,omitempty"`
	Category *string  `json:"category,omitempty"`
	Unit     *string  `json:"unit,omitempty"`
	MinStock *float64 `json:"minStock,omitempty"`
	BaseCost *float64 `json:"baseCost,omitempty"`
}

// Apply copies the set fields onto the product.
func (r *UpdateProductRequest) Apply(p *product.Product) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Category != nil {
		p.Category = product.Category(*r.Category)
	}
	if r.Unit != nil {
		p.Unit = *r.Unit
	}
	if r.MinStock != nil {
		p.MinStock = types.NewQuantityFromFloat64(*r.MinStock)
	}
	if r.BaseCost != nil {
		cost := types.NewMoney(*r.BaseCost)
		p.BaseCost = &cost
	}
}

// RecordCostRequest updates a product's last known purchase cost.
type RecordCostRequest struct {
	Cost float64 `json:"cost" binding:"required,gt=0"`
}
