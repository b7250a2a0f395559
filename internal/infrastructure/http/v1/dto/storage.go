package dto

import (
	"time"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
	"backoffice/internal/domain/alerts"
	"backoffice/internal/domain/storage"
)

// --- Request DTOs ---

// ReceiptRequest records an incoming delivery as a new lot.
type ReceiptRequest struct {
	ItemID      string     `json:"itemId" binding:"required,uuid"`
	Department  string     `json:"department" binding:"required"`
	Quantity    float64    `json:"quantity" binding:"required,gt=0"`
	CostPerUnit float64    `json:"costPerUnit" binding:"min=0"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
	SourceType  string     `json:"sourceType,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// ToDomain converts to the domain request.
func (r *ReceiptRequest) ToDomain() (storage.ReceiptRequest, error) {
	itemID, err := id.Parse(r.ItemID)
	if err != nil {
		return storage.ReceiptRequest{}, apperror.NewValidation("invalid item id").WithDetail("itemId", r.ItemID)
	}

	sourceType := storage.SourceType(r.SourceType)
	if r.SourceType == "" {
		sourceType = storage.SourcePurchase
	}

	return storage.ReceiptRequest{
		ItemID:      itemID,
		Department:  storage.Department(r.Department),
		Quantity:    types.NewQuantityFromFloat64(r.Quantity),
		CostPerUnit: types.NewMoney(r.CostPerUnit),
		ExpiryDate:  r.ExpiryDate,
		SourceType:  sourceType,
		Notes:       r.Notes,
	}, nil
}

// CorrectionRequest consumes stock in FIFO order.
type CorrectionRequest struct {
	ItemID     string  `json:"itemId" binding:"required,uuid"`
	Department string  `json:"department" binding:"required"`
	Quantity   float64 `json:"quantity" binding:"required,gt=0"`
	Operation  string  `json:"operation" binding:"required"`
	Reason     string  `json:"reason,omitempty"`
}

// ToDomain converts to the domain request.
func (r *CorrectionRequest) ToDomain() (storage.CorrectionRequest, error) {
	itemID, err := id.Parse(r.ItemID)
	if err != nil {
		return storage.CorrectionRequest{}, apperror.NewValidation("invalid item id").WithDetail("itemId", r.ItemID)
	}

	return storage.CorrectionRequest{
		ItemID:     itemID,
		Department: storage.Department(r.Department),
		Quantity:   types.NewQuantityFromFloat64(r.Quantity),
		Operation:  storage.OperationType(r.Operation),
		Reason:     r.Reason,
	}, nil
}

// --- Response DTOs ---

// UndoReconciliationResponse reports the quantity that must be restocked
// manually after a reconciliation is reversed.
type UndoReconciliationResponse struct {
	BatchID         string         `json:"batchId"`
	RestockQuantity types.Quantity `json:"restockQuantity"`
}

// BalanceResponse pairs a balance with its triggered alerts.
type BalanceResponse struct {
	Balance storage.Balance `json:"balance"`
	Alerts  []alerts.Alert  `json:"alerts,omitempty"`
}

// AvailabilityResponse reports a sufficiency probe.
type AvailabilityResponse struct {
	ItemID     string         `json:"itemId"`
	Department string         `json:"department"`
	Required   types.Quantity `json:"required"`
	storage.StockCheck
}

// DeficitReportResponse is the negative inventory report.
type DeficitReportResponse struct {
	Department string               `json:"department"`
	Items      []DeficitSummaryItem `json:"items"`
	Totals     DeficitReportTotals  `json:"totals"`
}

// DeficitSummaryItem is one row of the negative inventory report with the
// outstanding age rendered in hours.
type DeficitSummaryItem struct {
	storage.DeficitSummary
	OutstandingHours float64 `json:"outstandingHours"`
}

// DeficitReportTotals aggregates the report.
type DeficitReportTotals struct {
	Count          int         `json:"count"`
	EstimatedValue types.Money `json:"estimatedValue"`
}

// FromDeficitSummaries builds the report response.
func FromDeficitSummaries(department storage.Department, rows []storage.DeficitSummary) DeficitReportResponse {
	items := make([]DeficitSummaryItem, len(rows))
	total := types.Zero()
	for i, row := range rows {
		items[i] = DeficitSummaryItem{
			DeficitSummary:   row,
			OutstandingHours: row.OutstandingFor.Hours(),
		}
		total = total.Add(row.EstimatedValue)
	}
	return DeficitReportResponse{
		Department: string(department),
		Items:      items,
		Totals: DeficitReportTotals{
			Count:          len(rows),
			EstimatedValue: total,
		},
	}
}
