package storage

import (
	"context"
	"fmt"
	"sort"

	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
)

// historicalWindow is how many closed lots feed the historical average.
const historicalWindow = 5

// CostResolver determines the cost basis for a deficit when no FIFO lot
// covers it. A deficit still needs some valuation to keep balance totals
// meaningful, but an unresolved cost must never be confused with "this item
// costs nothing" - hence the tagged terminal fallback.
type CostResolver struct {
	catalog Catalog
}

// NewCostResolver creates a cost resolver backed by the item catalog.
func NewCostResolver(catalog Catalog) *CostResolver {
	return &CostResolver{catalog: catalog}
}

// ResolveDeficitCost tries each fallback in order and stops at the first hit:
//
//  1. cost of the most recently received active positive lot
//  2. average cost of the last 5 consumed/expired lots
//  3. cached last-known cost from the item's catalog record
//  4. manually configured baseline cost from the catalog record
//  5. CostUnresolved: cost 0, tagged so callers surface the gap
//
// lots is the already-loaded lot set for the caller's (item, department) key.
func (r *CostResolver) ResolveDeficitCost(ctx context.Context, itemID id.ID, lots []Batch) (CostResult, error) {
	if lot := latestActiveLot(lots); lot != nil {
		sourceID := lot.ID
		return CostResult{
			Cost:          lot.CostPerUnit,
			Source:        CostSourceLastBatch,
			SourceBatchID: &sourceID,
		}, nil
	}

	if avg, ok := historicalAverage(lots); ok {
		return CostResult{Cost: avg, Source: CostSourceHistorical}, nil
	}

	catalogCost, err := r.catalog.LoadCatalogCost(ctx, itemID)
	if err != nil {
		return CostResult{}, fmt.Errorf("load catalog cost: %w", err)
	}
	if catalogCost.LastKnownCost != nil && catalogCost.LastKnownCost.IsPositive() {
		return CostResult{Cost: *catalogCost.LastKnownCost, Source: CostSourceLastKnownCost}, nil
	}
	if catalogCost.BaseCost != nil && catalogCost.BaseCost.IsPositive() {
		return CostResult{Cost: *catalogCost.BaseCost, Source: CostSourceBaseCost}, nil
	}

	return CostResult{Cost: types.Zero(), Source: CostSourceUnresolved}, nil
}

// latestActiveLot returns the most recently received consumable lot, or nil.
func latestActiveLot(lots []Batch) *Batch {
	var latest *Batch
	for i := range lots {
		if !lots[i].IsConsumable() {
			continue
		}
		if latest == nil || lots[i].ReceiptDate.After(latest.ReceiptDate) {
			latest = &lots[i]
		}
	}
	return latest
}

// historicalAverage averages the cost basis of the most recent closed lots.
func historicalAverage(lots []Batch) (types.Money, bool) {
	closed := make([]*Batch, 0, len(lots))
	for i := range lots {
		if lots[i].IsNegative {
			continue
		}
		if lots[i].Status == BatchStatusConsumed || lots[i].Status == BatchStatusExpired {
			closed = append(closed, &lots[i])
		}
	}
	if len(closed) == 0 {
		return types.Zero(), false
	}

	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].ReceiptDate.After(closed[j].ReceiptDate)
	})
	if len(closed) > historicalWindow {
		closed = closed[:historicalWindow]
	}

	sum := types.Zero()
	for _, lot := range closed {
		sum = sum.Add(lot.CostPerUnit)
	}
	return sum.Div(types.NewMoney(float64(len(closed)))), true
}
