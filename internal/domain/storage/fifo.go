package storage

import (
	"sort"
	"time"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/types"
)

// Allocate builds a FIFO allocation plan for the requested quantity against
// the given lots. Only active, positive lots with stock are considered;
// consumption order is nondecreasing receipt date, ties broken by insertion
// order. Pure function - lots are not mutated.
//
// The returned remainder is the unfulfillable part of the request. A nonzero
// remainder is a normal outcome (it becomes a deficit lot), not an error.
func Allocate(lots []Batch, quantity types.Quantity) ([]BatchAllocation, types.Quantity, error) {
	if !quantity.IsPositive() {
		return nil, 0, apperror.NewValidation("allocation quantity must be positive").
			WithDetail("quantity", quantity.String())
	}

	ordered := make([]*Batch, 0, len(lots))
	for i := range lots {
		if lots[i].IsConsumable() {
			ordered = append(ordered, &lots[i])
		}
	}
	// Stable sort keeps insertion order for equal receipt dates.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ReceiptDate.Before(ordered[j].ReceiptDate)
	})

	var allocations []BatchAllocation
	remaining := quantity

	for _, lot := range ordered {
		if !remaining.IsPositive() {
			break
		}
		take := lot.CurrentQuantity.Min(remaining)
		if !take.IsPositive() {
			continue
		}
		allocations = append(allocations, BatchAllocation{
			BatchID:     lot.ID,
			BatchNumber: lot.Number,
			Quantity:    take,
			CostPerUnit: lot.CostPerUnit,
			BatchDate:   lot.ReceiptDate,
		})
		remaining -= take
	}

	return allocations, remaining, nil
}

// ApplyAllocations executes an allocation plan against the lots: quantities
// decrease, values are recomputed and exhausted lots transition to consumed
// with quantity clamped to exactly zero. Returns a new slice; the input is
// not mutated.
func ApplyAllocations(lots []Batch, allocations []BatchAllocation, now time.Time) []Batch {
	updated := make([]Batch, len(lots))
	copy(updated, lots)

	byID := make(map[string]*Batch, len(updated))
	for i := range updated {
		byID[updated[i].ID.String()] = &updated[i]
	}

	for _, alloc := range allocations {
		lot, ok := byID[alloc.BatchID.String()]
		if !ok {
			continue
		}
		lot.CurrentQuantity -= alloc.Quantity
		if lot.CurrentQuantity <= 0 {
			lot.CurrentQuantity = 0
			lot.Status = BatchStatusConsumed
		}
		lot.RecalcValue()
		lot.UpdatedAt = now
	}

	return updated
}

// AllocationCost returns the total monetary value of an allocation plan.
func AllocationCost(allocations []BatchAllocation) types.Money {
	total := types.Zero()
	for _, a := range allocations {
		total = total.Add(a.Cost())
	}
	return total
}

// AvailableQuantity sums the stock the allocator could draw from.
func AvailableQuantity(lots []Batch) types.Quantity {
	var total types.Quantity
	for i := range lots {
		if lots[i].IsConsumable() {
			total += lots[i].CurrentQuantity
		}
	}
	return total
}

// CheckSufficiency probes whether a request could be fully allocated,
// without building a plan or mutating anything.
func CheckSufficiency(lots []Batch, required types.Quantity) StockCheck {
	available := AvailableQuantity(lots)
	check := StockCheck{
		Sufficient: available >= required,
		Available:  available,
	}
	if !check.Sufficient {
		check.Shortfall = required - available
	}
	return check
}
