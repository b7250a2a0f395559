package storage

import (
	"sort"
	"time"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
)

// ReconciliationEngine offsets outstanding negative lots against positive
// stock, newest positive lot first: the shipment that just arrived is the one
// that should absorb the debt it is covering.
type ReconciliationEngine struct{}

// NewReconciliationEngine creates a reconciliation engine.
func NewReconciliationEngine() *ReconciliationEngine {
	return &ReconciliationEngine{}
}

// Reconcile settles as much outstanding deficit as the positive lots can
// absorb. Positive lots are drawn newest-first; the deducted amount is
// applied back to the negative lots oldest-first. Fully settled negative lots
// get ReconciledAt set and keep their quantity for the audit trail (deficit
// queries exclude them); partially settled lots stay outstanding with their
// magnitude reduced. Stock is neither created nor destroyed - only the lot it
// is attributed to changes.
//
// Returns the updated lot set; the input is not mutated. An uncovered
// remainder is expected, not an error.
func (e *ReconciliationEngine) Reconcile(lots []Batch, now time.Time) ([]Batch, ReconciliationResult) {
	updated := make([]Batch, len(lots))
	copy(updated, lots)

	// Invariant I4 keeps this list at one element; the walk tolerates more.
	var negatives []*Batch
	for i := range updated {
		if updated[i].IsOutstandingDeficit() {
			negatives = append(negatives, &updated[i])
		}
	}
	if len(negatives) == 0 {
		return updated, ReconciliationResult{}
	}
	sort.SliceStable(negatives, func(i, j int) bool {
		return negatives[i].CreatedAt.Before(negatives[j].CreatedAt)
	})

	var totalDeficit types.Quantity
	for _, n := range negatives {
		totalDeficit += n.CurrentQuantity.Abs()
	}

	var positives []*Batch
	for i := range updated {
		if updated[i].IsConsumable() {
			positives = append(positives, &updated[i])
		}
	}
	sort.SliceStable(positives, func(i, j int) bool {
		return positives[i].ReceiptDate.After(positives[j].ReceiptDate)
	})

	result := ReconciliationResult{}
	remaining := totalDeficit
	for _, lot := range positives {
		if !remaining.IsPositive() {
			break
		}
		deduct := lot.CurrentQuantity.Min(remaining)
		lot.CurrentQuantity -= deduct
		if lot.CurrentQuantity <= 0 {
			lot.CurrentQuantity = 0
			lot.Status = BatchStatusConsumed
		}
		lot.RecalcValue()
		lot.UpdatedAt = now
		remaining -= deduct
		result.TouchedLotCount++
	}

	cleared := totalDeficit - remaining
	if !cleared.IsPositive() {
		return updated, ReconciliationResult{RemainingDeficit: totalDeficit}
	}

	// Apply the cleared amount back against the negative lots, oldest first.
	toSettle := cleared
	for _, n := range negatives {
		if !toSettle.IsPositive() {
			break
		}
		magnitude := n.CurrentQuantity.Abs()
		if toSettle >= magnitude {
			reconciledAt := now
			n.ReconciledAt = &reconciledAt
			n.UpdatedAt = now
			toSettle -= magnitude
		} else {
			n.CurrentQuantity += toSettle
			n.RecalcValue()
			n.UpdatedAt = now
			toSettle = 0
		}
	}

	result.Reconciled = !remaining.IsPositive()
	result.DeficitCleared = cleared
	result.RemainingDeficit = remaining
	return updated, result
}

// UndoReconciliation reverts a fully reconciled negative lot back to
// outstanding. It does NOT restore the quantity that was deducted from the
// absorbing positive lot: this is an administrative override, and if the
// inventory was never actually returned it must be paired with a manual
// restock. The returned quantity is the magnitude the caller has to restock
// for the ledger to balance again.
func (e *ReconciliationEngine) UndoReconciliation(lots []Batch, negativeLotID id.ID, now time.Time) ([]Batch, types.Quantity, error) {
	updated := make([]Batch, len(lots))
	copy(updated, lots)

	for i := range updated {
		lot := &updated[i]
		if lot.ID != negativeLotID {
			continue
		}
		if !lot.IsNegative {
			return nil, 0, apperror.NewValidation("lot is not a negative lot").
				WithDetail("batch_id", negativeLotID.String())
		}
		if lot.ReconciledAt == nil {
			return nil, 0, apperror.NewConflict("negative lot is not reconciled").
				WithDetail("batch_id", negativeLotID.String())
		}
		lot.ReconciledAt = nil
		lot.UpdatedAt = now
		return updated, lot.CurrentQuantity.Abs(), nil
	}

	return nil, 0, apperror.NewNotFound("batch", negativeLotID.String())
}
