// Package storage implements the batch ledger: dated, cost-tagged lots per
// (item, department) with FIFO consumption, negative-lot deficit tracking and
// newest-first reconciliation against incoming stock.
package storage

import (
	"context"
	"time"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
)

// Department is the physical storage area a lot belongs to.
type Department string

const (
	DepartmentKitchen Department = "kitchen"
	DepartmentBar     Department = "bar"
)

// Valid reports whether the department is a known storage area.
func (d Department) Valid() bool {
	return d == DepartmentKitchen || d == DepartmentBar
}

// BatchStatus is the lifecycle state of a lot.
type BatchStatus string

const (
	BatchStatusActive    BatchStatus = "active"
	BatchStatusInTransit BatchStatus = "in_transit"
	BatchStatusConsumed  BatchStatus = "consumed"
	BatchStatusExpired   BatchStatus = "expired"
)

// SourceType records how a lot entered the ledger.
type SourceType string

const (
	SourcePurchase       SourceType = "purchase"
	SourceProduction     SourceType = "production"
	SourceCorrection     SourceType = "correction"
	SourceOpeningBalance SourceType = "opening_balance"
	SourceInventory      SourceType = "inventory"
)

// OperationType classifies the business operation that caused a deficit.
type OperationType string

const (
	OperationPOSOrder       OperationType = "pos_order"
	OperationProduction     OperationType = "production"
	OperationManualWriteOff OperationType = "manual_writeoff"
	OperationInventory      OperationType = "inventory"
)

// CostSource tags where a deficit lot's cost basis came from.
// CostSourceUnresolved means cost 0 was assigned because no price history
// exists anywhere - distinct from a legitimately free item.
type CostSource string

const (
	CostSourceLastBatch     CostSource = "last_batch"
	CostSourceHistorical    CostSource = "historical_average"
	CostSourceLastKnownCost CostSource = "last_known_cost"
	CostSourceBaseCost      CostSource = "base_cost"
	CostSourceUnresolved    CostSource = "unresolved"
)

// CostTrend describes recent cost movement across active lots.
type CostTrend string

const (
	TrendUp     CostTrend = "up"
	TrendDown   CostTrend = "down"
	TrendStable CostTrend = "stable"
)

// Batch is a lot of one item in one department: a dated quantity at one cost
// basis. Deficit lots carry negative quantities (IsNegative=true). Lots are
// never deleted; consumed lots stay in the ledger for audit and feed the
// historical cost fallback.
type Batch struct {
	ID         id.ID      `db:"id" json:"id"`
	Number     string     `db:"batch_number" json:"batchNumber"`
	ItemID     id.ID      `db:"item_id" json:"itemId"`
	Department Department `db:"department" json:"department"`

	InitialQuantity types.Quantity `db:"initial_quantity" json:"initialQuantity"`
	CurrentQuantity types.Quantity `db:"current_quantity" json:"currentQuantity"`
	Unit            string         `db:"unit" json:"unit"`

	CostPerUnit types.Money `db:"cost_per_unit" json:"costPerUnit"`
	TotalValue  types.Money `db:"total_value" json:"totalValue"`

	ReceiptDate time.Time  `db:"receipt_date" json:"receiptDate"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	SourceType SourceType  `db:"source_type" json:"sourceType"`
	Status     BatchStatus `db:"status" json:"status"`
	Notes      string      `db:"notes" json:"notes,omitempty"`

	// Deficit lot fields (set only when IsNegative).
	IsNegative      bool          `db:"is_negative" json:"isNegative"`
	SourceBatchID   *id.ID        `db:"source_batch_id" json:"sourceBatchId,omitempty"`
	NegativeReason  string        `db:"negative_reason" json:"negativeReason,omitempty"`
	SourceOperation OperationType `db:"source_operation" json:"sourceOperationType,omitempty"`
	CostSource      CostSource    `db:"cost_source" json:"costSource,omitempty"`
	ReconciledAt    *time.Time    `db:"reconciled_at" json:"reconciledAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsOutstandingDeficit reports whether the lot is an unreconciled negative lot.
func (b *Batch) IsOutstandingDeficit() bool {
	return b.IsNegative && b.ReconciledAt == nil
}

// IsConsumable reports whether the FIFO allocator may draw from the lot.
func (b *Batch) IsConsumable() bool {
	return !b.IsNegative && b.Status == BatchStatusActive && b.CurrentQuantity.IsPositive()
}

// RecalcValue recomputes TotalValue from the current quantity and cost basis.
// For negative lots the value is negative.
func (b *Batch) RecalcValue() {
	b.TotalValue = b.CostPerUnit.Mul(b.CurrentQuantity.Decimal())
}

// BatchAllocation is one slice of a FIFO allocation plan: how much to take
// from which lot and at which cost. Ephemeral - consumed by the apply step
// and by cost-reporting callers, never stored.
type BatchAllocation struct {
	BatchID     id.ID          `json:"batchId"`
	BatchNumber string         `json:"batchNumber"`
	Quantity    types.Quantity `json:"quantity"`
	CostPerUnit types.Money    `json:"costPerUnit"`
	BatchDate   time.Time      `json:"batchDate"`
}

// Cost returns the monetary value of the allocation slice.
func (a BatchAllocation) Cost() types.Money {
	return a.CostPerUnit.Mul(a.Quantity.Decimal())
}

// ExpiryStatus classifies how close a lot set is to its nearest expiry date.
type ExpiryStatus string

const (
	ExpiryFresh    ExpiryStatus = "fresh"
	ExpiryExpiring ExpiryStatus = "expiring"
	ExpiryExpired  ExpiryStatus = "expired"
)

// ExpiryInfo summarizes expiry state across a lot set.
type ExpiryInfo struct {
	NearestExpiry *time.Time   `json:"nearestExpiry,omitempty"`
	Status        ExpiryStatus `json:"status"`
	DaysRemaining *int         `json:"daysRemaining,omitempty"`
	HasExpired    bool         `json:"hasExpired"`
	HasNearExpiry bool         `json:"hasNearExpiry"`
}

// Balance is the derived per-item, per-department stock summary.
// Recomputed on demand from Batch state; carries no independent lifecycle.
type Balance struct {
	ItemID     id.ID      `json:"itemId"`
	ItemName   string     `json:"itemName,omitempty"`
	Department Department `json:"department"`
	Unit       string     `json:"unit,omitempty"`

	TotalQuantity types.Quantity `json:"totalQuantity"`
	TotalValue    types.Money    `json:"totalValue"`
	AverageCost   types.Money    `json:"averageCost"`
	LatestCost    types.Money    `json:"latestCost"`
	CostTrend     CostTrend      `json:"costTrend"`

	Expiry ExpiryInfo `json:"expiry"`

	MinStock          types.Quantity `json:"minStock"`
	BelowMinStock     bool           `json:"belowMinStock"`
	HasDeficit        bool           `json:"hasDeficit"`
	DeficitQuantity   types.Quantity `json:"deficitQuantity"`
	HasUnresolvedCost bool           `json:"hasUnresolvedCost"`

	OldestBatchDate *time.Time `json:"oldestBatchDate,omitempty"`
	NewestBatchDate *time.Time `json:"newestBatchDate,omitempty"`
	CalculatedAt    time.Time  `json:"calculatedAt"`
}

// CostResult is the outcome of deficit cost resolution.
type CostResult struct {
	Cost          types.Money `json:"cost"`
	Source        CostSource  `json:"source"`
	SourceBatchID *id.ID      `json:"sourceBatchId,omitempty"`
}

// Unresolved reports whether the terminal zero-cost fallback was hit.
// Callers must surface this as a data-quality fault, not a free item.
func (r CostResult) Unresolved() bool {
	return r.Source == CostSourceUnresolved
}

// ReconciliationResult reports what a reconciliation pass accomplished.
type ReconciliationResult struct {
	Reconciled       bool           `json:"reconciled"`
	DeficitCleared   types.Quantity `json:"deficitCleared"`
	TouchedLotCount  int            `json:"touchedLotCount"`
	RemainingDeficit types.Quantity `json:"remainingDeficit"`
}

// StockCheck is the outcome of a non-mutating sufficiency probe.
type StockCheck struct {
	Sufficient bool           `json:"sufficient"`
	Available  types.Quantity `json:"available"`
	Shortfall  types.Quantity `json:"shortfall"`
}

// DeficitSummary is one row of the negative inventory report.
type DeficitSummary struct {
	ItemID          id.ID          `json:"itemId"`
	ItemName        string         `json:"itemName,omitempty"`
	Department      Department     `json:"department"`
	BatchNumber     string         `json:"batchNumber"`
	Quantity        types.Quantity `json:"quantity"` // shortage as a positive number
	Unit            string         `json:"unit"`
	EstimatedValue  types.Money    `json:"estimatedValue"`
	CostSource      CostSource     `json:"costSource"`
	Reason          string         `json:"reason,omitempty"`
	SourceOperation OperationType  `json:"sourceOperationType,omitempty"`
	OutstandingFor  time.Duration  `json:"-"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// --- Operation inputs ---

// ReceiptRequest appends a positive lot to the ledger.
type ReceiptRequest struct {
	ItemID      id.ID
	Department  Department
	Quantity    types.Quantity
	CostPerUnit types.Money
	ExpiryDate  *time.Time
	SourceType  SourceType
	Notes       string
}

// Validate implements basic input validation.
func (r *ReceiptRequest) Validate(ctx context.Context) error {
	if id.IsNil(r.ItemID) {
		return apperror.NewValidation("item is required").WithDetail("field", "itemId")
	}
	if !r.Department.Valid() {
		return apperror.NewValidation("unknown department").WithDetail("department", string(r.Department))
	}
	if !r.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", r.Quantity.String())
	}
	if r.CostPerUnit.IsNegative() {
		return apperror.NewValidation("cost per unit must not be negative")
	}
	return nil
}

// CorrectionRequest consumes a quantity from the ledger in FIFO order.
// A shortfall is not an error: it becomes (or tops up) a negative lot.
type CorrectionRequest struct {
	ItemID     id.ID
	Department Department
	Quantity   types.Quantity
	Operation  OperationType
	Reason     string
}

// Validate implements basic input validation.
func (r *CorrectionRequest) Validate(ctx context.Context) error {
	if id.IsNil(r.ItemID) {
		return apperror.NewValidation("item is required").WithDetail("field", "itemId")
	}
	if !r.Department.Valid() {
		return apperror.NewValidation("unknown department").WithDetail("department", string(r.Department))
	}
	if !r.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", r.Quantity.String())
	}
	switch r.Operation {
	case OperationPOSOrder, OperationProduction, OperationManualWriteOff, OperationInventory:
	default:
		return apperror.NewValidation("unknown operation type").WithDetail("operation", string(r.Operation))
	}
	return nil
}

// --- Operation outputs ---

// ReceiptResult is the outcome of a receipt operation.
type ReceiptResult struct {
	Batch          Batch                 `json:"batch"`
	Reconciliation *ReconciliationResult `json:"reconciliation,omitempty"`
}

// CorrectionResult is the outcome of a correction operation.
type CorrectionResult struct {
	Allocations     []BatchAllocation `json:"allocations"`
	TotalCost       types.Money       `json:"totalCost"`
	AverageUnitCost types.Money       `json:"averageUnitCost"`
	Shortfall       types.Quantity    `json:"shortfall"`
	Deficit         *Batch            `json:"deficit,omitempty"`
	CostUnresolved  bool              `json:"costUnresolved"`
}
