package storage

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/numerator"
	"backoffice/internal/core/types"
	"backoffice/pkg/logger"
)

// negativeLotPrefix is the numbering prefix for deficit lots.
const negativeLotPrefix = "NG"

// NegativeBatchManager materializes unfulfillable deficits as negative lots.
// At most one unreconciled negative lot may exist per (item, department);
// repeat deficits top up the existing lot at its original cost basis.
type NegativeBatchManager struct {
	resolver *CostResolver
	numbers  numerator.Generator
}

// NewNegativeBatchManager creates a deficit manager.
func NewNegativeBatchManager(resolver *CostResolver, numbers numerator.Generator) *NegativeBatchManager {
	return &NegativeBatchManager{resolver: resolver, numbers: numbers}
}

// DeficitRequest describes a shortfall to record.
type DeficitRequest struct {
	ItemID     id.ID
	Department Department
	Quantity   types.Quantity // positive magnitude of the shortage
	Unit       string
	Operation  OperationType
	Reason     string
}

// RecordDeficit finds or creates the outstanding negative lot for the key and
// returns the updated lot set, the deficit lot and the cost resolution used.
// Finding more than one outstanding negative lot is an invariant violation:
// the operation must abort without saving.
func (m *NegativeBatchManager) RecordDeficit(ctx context.Context, lots []Batch, req DeficitRequest, now time.Time) ([]Batch, *Batch, CostResult, error) {
	if !req.Quantity.IsPositive() {
		return nil, nil, CostResult{}, apperror.NewValidation("deficit quantity must be positive").
			WithDetail("quantity", req.Quantity.String())
	}

	updated := make([]Batch, len(lots))
	copy(updated, lots)

	var outstanding []*Batch
	for i := range updated {
		if updated[i].IsOutstandingDeficit() {
			outstanding = append(outstanding, &updated[i])
		}
	}

	if len(outstanding) > 1 {
		return nil, nil, CostResult{}, apperror.NewInvariantViolation(
			"multiple outstanding negative lots for one item and department").
			WithDetail("item_id", req.ItemID.String()).
			WithDetail("department", string(req.Department)).
			WithDetail("count", len(outstanding))
	}

	if len(outstanding) == 1 {
		// Cost basis stays fixed at first creation; top-ups only deepen
		// the deficit at the existing lot's cost.
		lot := outstanding[0]
		lot.CurrentQuantity -= req.Quantity
		lot.RecalcValue()
		lot.UpdatedAt = now
		result := CostResult{
			Cost:          lot.CostPerUnit,
			Source:        lot.CostSource,
			SourceBatchID: lot.SourceBatchID,
		}
		return updated, lot, result, nil
	}

	cost, err := m.resolver.ResolveDeficitCost(ctx, req.ItemID, updated)
	if err != nil {
		return nil, nil, CostResult{}, fmt.Errorf("resolve deficit cost: %w", err)
	}
	if cost.Unresolved() {
		logger.Warn(ctx, "deficit cost unresolved, valuing at zero",
			"item_id", req.ItemID,
			"department", req.Department,
			"quantity", req.Quantity,
		)
	}

	number, err := m.numbers.GetNextNumber(ctx, numerator.DefaultConfig(negativeLotPrefix), nil, now)
	if err != nil {
		return nil, nil, CostResult{}, fmt.Errorf("generate negative lot number: %w", err)
	}

	lot := Batch{
		ID:              id.New(),
		Number:          number,
		ItemID:          req.ItemID,
		Department:      req.Department,
		InitialQuantity: req.Quantity.Neg(),
		CurrentQuantity: req.Quantity.Neg(),
		Unit:            req.Unit,
		CostPerUnit:     cost.Cost,
		ReceiptDate:     now,
		SourceType:      SourceCorrection,
		Status:          BatchStatusActive,
		IsNegative:      true,
		SourceBatchID:   cost.SourceBatchID,
		NegativeReason:  req.Reason,
		SourceOperation: req.Operation,
		CostSource:      cost.Source,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	lot.RecalcValue()

	updated = append(updated, lot)
	return updated, &updated[len(updated)-1], cost, nil
}
