package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
	"backoffice/internal/domain/alerts"
	"backoffice/internal/domain/storage"
	"backoffice/internal/infrastructure/http/v1/dto"
)

// StorageHandler handles batch ledger endpoints.
type StorageHandler struct {
	*BaseHandler
	service *storage.Service
	alerts  *alerts.Engine
}

// NewStorageHandler creates a new storage handler.
func NewStorageHandler(base *BaseHandler, service *storage.Service, alertEngine *alerts.Engine) *StorageHandler {
	return &StorageHandler{
		BaseHandler: base,
		service:     service,
		alerts:      alertEngine,
	}
}

// Receipt handles POST /storage/receipts
func (h *StorageHandler) Receipt(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	domainReq, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Receipt(ctx, domainReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Correction handles POST /storage/corrections
func (h *StorageHandler) Correction(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CorrectionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	domainReq, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Correction(ctx, domainReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Balances handles GET /storage/balances?department=kitchen
func (h *StorageHandler) Balances(c *gin.Context) {
	ctx := c.Request.Context()

	department, ok := h.department(c)
	if !ok {
		return
	}

	balances, err := h.service.Balances(ctx, department)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.BalanceResponse, len(balances))
	for i, balance := range balances {
		items[i] = dto.BalanceResponse{
			Balance: balance,
			Alerts:  h.alerts.Evaluate(ctx, balance),
		}
	}

	h.OK(c, dto.ListResponse{Items: items, Count: len(items)})
}

// Balance handles GET /storage/balances/:itemId?department=kitchen
func (h *StorageHandler) Balance(c *gin.Context) {
	ctx := c.Request.Context()

	itemID, ok := h.itemID(c)
	if !ok {
		return
	}
	department, ok := h.department(c)
	if !ok {
		return
	}

	balance, err := h.service.Balance(ctx, itemID, department)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.BalanceResponse{
		Balance: *balance,
		Alerts:  h.alerts.Evaluate(ctx, *balance),
	})
}

// Batches handles GET /storage/batches/:itemId?department=kitchen
func (h *StorageHandler) Batches(c *gin.Context) {
	ctx := c.Request.Context()

	itemID, ok := h.itemID(c)
	if !ok {
		return
	}
	department, ok := h.department(c)
	if !ok {
		return
	}

	batches, err := h.service.ListBatches(ctx, itemID, department)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: batches, Count: len(batches)})
}

// Availability handles GET /storage/availability/:itemId?department=kitchen&quantity=5
func (h *StorageHandler) Availability(c *gin.Context) {
	ctx := c.Request.Context()

	itemID, ok := h.itemID(c)
	if !ok {
		return
	}
	department, ok := h.department(c)
	if !ok {
		return
	}

	quantity := h.ParseFloatQuery(c, "quantity", 0)
	if quantity <= 0 {
		h.Error(c, apperror.NewValidation("quantity must be positive"))
		return
	}
	required := types.NewQuantityFromFloat64(quantity)

	check, err := h.service.CheckAvailability(ctx, itemID, department, required)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AvailabilityResponse{
		ItemID:     itemID.String(),
		Department: string(department),
		Required:   required,
		StockCheck: check,
	})
}

// NegativeReport handles GET /storage/negatives?department=kitchen
// An omitted department reports across all departments.
func (h *StorageHandler) NegativeReport(c *gin.Context) {
	ctx := c.Request.Context()

	department := storage.Department(c.Query("department"))
	if department != "" && !department.Valid() {
		h.Error(c, apperror.NewValidation("unknown department").WithDetail("department", string(department)))
		return
	}

	rows, err := h.service.NegativeReport(ctx, department)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDeficitSummaries(department, rows))
}

// UndoReconciliation handles POST /storage/reconciliations/:id/undo
func (h *StorageHandler) UndoReconciliation(c *gin.Context) {
	ctx := c.Request.Context()

	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid batch id").WithDetail("id", c.Param("id")))
		return
	}

	restock, err := h.service.UndoReconciliation(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.UndoReconciliationResponse{
		BatchID:         batchID.String(),
		RestockQuantity: restock,
	})
}

// RegisterRoutes registers storage routes.
func (h *StorageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/receipts", h.Receipt)
	rg.POST("/corrections", h.Correction)
	rg.GET("/balances", h.Balances)
	rg.GET("/balances/:itemId", h.Balance)
	rg.GET("/batches/:itemId", h.Batches)
	rg.GET("/availability/:itemId", h.Availability)
	rg.GET("/negatives", h.NegativeReport)
	rg.POST("/reconciliations/:id/undo", h.UndoReconciliation)
}

func (h *StorageHandler) itemID(c *gin.Context) (id.ID, bool) {
	itemID, err := id.Parse(c.Param("itemId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id").WithDetail("itemId", c.Param("itemId")))
		return id.Nil(), false
	}
	return itemID, true
}

func (h *StorageHandler) department(c *gin.Context) (storage.Department, bool) {
	department := storage.Department(c.Query("department"))
	if !department.Valid() {
		h.Error(c, apperror.NewValidation("unknown department").WithDetail("department", c.Query("department")))
		return "", false
	}
	return department, true
}
