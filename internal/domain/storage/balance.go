package storage

import (
	"sort"
	"time"

	"backoffice/internal/core/types"
)

// Trend band: latest cost beyond ±5% of the oldest active lot's cost.
var (
	trendUpFactor   = types.MustMoney("1.05")
	trendDownFactor = types.MustMoney("0.95")
)

// nearExpiryDays is the inclusive window for the "expiring" status.
const nearExpiryDays = 2

// BalanceCalculator derives per-item, per-department summaries from lot
// state. Pull-based and read-only: it may run concurrently with anything and
// accepts a possibly-stale snapshot.
type BalanceCalculator struct {
	expiry *ExpiryAnalyzer
}

// NewBalanceCalculator creates a balance calculator.
func NewBalanceCalculator() *BalanceCalculator {
	return &BalanceCalculator{expiry: NewExpiryAnalyzer()}
}

// Compute aggregates the lot set into a Balance. item carries catalog
// metadata (name, unit, min stock); pass a zero value when unavailable.
func (c *BalanceCalculator) Compute(lots []Batch, item CatalogItem, now time.Time) Balance {
	balance := Balance{
		ItemID:       item.ID,
		ItemName:     item.Name,
		Unit:         item.Unit,
		AverageCost:  types.Zero(),
		LatestCost:   types.Zero(),
		TotalValue:   types.Zero(),
		CostTrend:    TrendStable,
		CalculatedAt: now,
	}

	active := make([]*Batch, 0, len(lots))
	for i := range lots {
		lot := &lots[i]
		balance.Department = lot.Department
		if balance.Unit == "" {
			balance.Unit = lot.Unit
		}
		if lot.IsOutstandingDeficit() {
			balance.HasDeficit = true
			balance.DeficitQuantity += lot.CurrentQuantity.Abs()
			if lot.CostSource == CostSourceUnresolved {
				balance.HasUnresolvedCost = true
			}
			continue
		}
		if lot.IsConsumable() {
			active = append(active, lot)
		}
	}

	for _, lot := range active {
		balance.TotalQuantity += lot.CurrentQuantity
		balance.TotalValue = balance.TotalValue.Add(lot.TotalValue)
	}
	if balance.TotalQuantity.IsPositive() {
		balance.AverageCost = balance.TotalValue.Div(balance.TotalQuantity.Decimal())
	}

	if len(active) > 0 {
		sort.SliceStable(active, func(i, j int) bool {
			return active[i].ReceiptDate.Before(active[j].ReceiptDate)
		})
		oldest := active[0]
		newest := active[len(active)-1]
		balance.OldestBatchDate = &oldest.ReceiptDate
		balance.NewestBatchDate = &newest.ReceiptDate
		balance.LatestCost = newest.CostPerUnit
		balance.CostTrend = costTrend(oldest.CostPerUnit, newest.CostPerUnit, len(active))
	}

	balance.Expiry = c.expiry.Classify(lots, now)
	balance.MinStock = item.MinStock
	if item.MinStock.IsPositive() {
		balance.BelowMinStock = balance.TotalQuantity < item.MinStock
	}

	return balance
}

// costTrend compares latest vs oldest cost with a strict ±5% band.
// Fewer than two lots is always stable.
func costTrend(oldest, latest types.Money, lotCount int) CostTrend {
	if lotCount < 2 {
		return TrendStable
	}
	if latest.GreaterThan(oldest.Mul(trendUpFactor)) {
		return TrendUp
	}
	if latest.LessThan(oldest.Mul(trendDownFactor)) {
		return TrendDown
	}
	return TrendStable
}

// ExpiryAnalyzer classifies a lot set's expiry status from the nearest
// expiry date among active lots. Lots without an expiry date are excluded.
type ExpiryAnalyzer struct{}

// NewExpiryAnalyzer creates an expiry analyzer.
func NewExpiryAnalyzer() *ExpiryAnalyzer {
	return &ExpiryAnalyzer{}
}

// Classify returns the expiry summary: expired when the nearest date has
// passed, expiring when it is at most two days out, otherwise fresh.
func (a *ExpiryAnalyzer) Classify(lots []Batch, now time.Time) ExpiryInfo {
	info := ExpiryInfo{Status: ExpiryFresh}

	var nearest *time.Time
	for i := range lots {
		lot := &lots[i]
		if !lot.IsConsumable() || lot.ExpiryDate == nil {
			continue
		}
		if nearest == nil || lot.ExpiryDate.Before(*nearest) {
			nearest = lot.ExpiryDate
		}
	}
	if nearest == nil {
		return info
	}

	info.NearestExpiry = nearest
	days := daysUntil(now, *nearest)

	switch {
	case nearest.Before(now):
		info.Status = ExpiryExpired
		info.HasExpired = true
	case days <= nearExpiryDays:
		info.Status = ExpiryExpiring
		info.HasNearExpiry = true
		info.DaysRemaining = &days
	default:
		info.DaysRemaining = &days
	}

	return info
}

// daysUntil counts whole days from now to the deadline, rounding up.
func daysUntil(now, deadline time.Time) int {
	diff := deadline.Sub(now)
	days := int(diff.Hours() / 24)
	if diff > 0 && diff%(24*time.Hour) != 0 {
		days++
	}
	return days
}
