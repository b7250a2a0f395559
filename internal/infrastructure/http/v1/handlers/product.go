package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
	"backoffice/internal/domain/catalogs/product"
	"backoffice/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles product catalog endpoints.
type ProductHandler struct {
	*BaseHandler
	service *product.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, service *product.Service) *ProductHandler {
	return &ProductHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /catalog/products
func (h *ProductHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToDomain()
	if err := h.service.Create(ctx, p); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, p.ID.String())
}

// Get handles GET /catalog/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	productID, ok := h.productID(c)
	if !ok {
		return
	}

	p, err := h.service.Get(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// List handles GET /catalog/products
func (h *ProductHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	products, err := h.service.List(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: products, Count: len(products)})
}

// Update handles PUT /catalog/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	productID, ok := h.productID(c)
	if !ok {
		return
	}

	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Get(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.Apply(p)
	if err := h.service.Update(ctx, p); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// Deactivate handles DELETE /catalog/products/:id
func (h *ProductHandler) Deactivate(c *gin.Context) {
	ctx := c.Request.Context()

	productID, ok := h.productID(c)
	if !ok {
		return
	}

	if err := h.service.Deactivate(ctx, productID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RecordCost handles POST /catalog/products/:id/cost
func (h *ProductHandler) RecordCost(c *gin.Context) {
	ctx := c.Request.Context()

	productID, ok := h.productID(c)
	if !ok {
		return
	}

	var req dto.RecordCostRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.RecordPurchaseCost(ctx, productID, types.NewMoney(req.Cost)); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "cost recorded")
}

// RegisterRoutes registers product catalog routes.
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Deactivate)
	rg.POST("/:id/cost", h.RecordCost)
}

func (h *ProductHandler) productID(c *gin.Context) (id.ID, bool) {
	productID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid product id").WithDetail("id", c.Param("id")))
		return id.Nil(), false
	}
	return productID, true
}
