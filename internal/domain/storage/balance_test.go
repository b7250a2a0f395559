package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalogItem() CatalogItem {
	return CatalogItem{ID: testItemID, Name: "Tomato", Unit: "kg"}
}

func TestCompute_Totals(t *testing.T) {
	a := lot("BT-2026-00001", 10, "100", 0)
	b := lot("BT-2026-00002", 5, "110", 1)
	consumed := lot("BT-2026-00003", 8, "90", 2)
	consumed.CurrentQuantity = 0
	consumed.Status = BatchStatusConsumed
	consumed.RecalcValue()

	c := NewBalanceCalculator()
	balance := c.Compute([]Batch{a, b, consumed}, testCatalogItem(), testBase.AddDate(0, 0, 3))

	assert.Equal(t, qty(15), balance.TotalQuantity)
	requireMoney(t, "1550", balance.TotalValue)
	// 1550 / 15
	assert.True(t, balance.AverageCost.Sub(money("103.33")).Abs().LessThan(money("0.01")))
	requireMoney(t, "110", balance.LatestCost)
	assert.False(t, balance.HasDeficit)
	require.NotNil(t, balance.OldestBatchDate)
	assert.True(t, balance.OldestBatchDate.Equal(a.ReceiptDate))
	require.NotNil(t, balance.NewestBatchDate)
	assert.True(t, balance.NewestBatchDate.Equal(b.ReceiptDate))
}

func TestCompute_EmptyLedger(t *testing.T) {
	c := NewBalanceCalculator()
	balance := c.Compute(nil, testCatalogItem(), testBase)

	assert.True(t, balance.TotalQuantity.IsZero())
	assert.True(t, balance.TotalValue.IsZero())
	assert.True(t, balance.AverageCost.IsZero())
	assert.Equal(t, TrendStable, balance.CostTrend)
	assert.Equal(t, ExpiryFresh, balance.Expiry.Status)
}

func TestCompute_DeficitFlags(t *testing.T) {
	neg := negativeLot("NG-2026-00001", 12, "100", 0)
	stock := lot("BT-2026-00002", 5, "100", 1)

	c := NewBalanceCalculator()
	balance := c.Compute([]Batch{neg, stock}, testCatalogItem(), testBase.AddDate(0, 0, 2))

	assert.True(t, balance.HasDeficit)
	assert.Equal(t, qty(12), balance.DeficitQuantity)
	// Outstanding deficits do not reduce the positive totals.
	assert.Equal(t, qty(5), balance.TotalQuantity)
}

func TestCompute_ReconciledDeficitNotFlagged(t *testing.T) {
	neg := negativeLot("NG-2026-00001", 12, "100", 0)
	reconciledAt := testBase.AddDate(0, 0, 1)
	neg.ReconciledAt = &reconciledAt

	c := NewBalanceCalculator()
	balance := c.Compute([]Batch{neg}, testCatalogItem(), testBase.AddDate(0, 0, 2))

	assert.False(t, balance.HasDeficit)
	assert.True(t, balance.DeficitQuantity.IsZero())
}

func TestCompute_UnresolvedCostFlag(t *testing.T) {
	neg := negativeLot("NG-2026-00001", 4, "0", 0)
	neg.CostSource = CostSourceUnresolved

	c := NewBalanceCalculator()
	balance := c.Compute([]Batch{neg}, testCatalogItem(), testBase)

	assert.True(t, balance.HasDeficit)
	assert.True(t, balance.HasUnresolvedCost)
}

func TestCompute_BelowMinStock(t *testing.T) {
	item := testCatalogItem()
	item.MinStock = qty(10)

	c := NewBalanceCalculator()

	low := c.Compute([]Batch{lot("BT-2026-00001", 6, "100", 0)}, item, testBase)
	assert.True(t, low.BelowMinStock)

	ok := c.Compute([]Batch{lot("BT-2026-00001", 10, "100", 0)}, item, testBase)
	assert.False(t, ok.BelowMinStock)
}

func TestCostTrend(t *testing.T) {
	c := NewBalanceCalculator()
	now := testBase.AddDate(0, 0, 5)

	tests := []struct {
		name       string
		oldestCost string
		latestCost string
		want       CostTrend
	}{
		{"up beyond band", "100", "106", TrendUp},
		{"down beyond band", "100", "94", TrendDown},
		{"within band high", "100", "105", TrendStable},
		{"within band low", "100", "95", TrendStable},
		{"flat", "100", "100", TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lots := []Batch{
				lot("BT-2026-00001", 5, tt.oldestCost, 0),
				lot("BT-2026-00002", 5, tt.latestCost, 1),
			}
			balance := c.Compute(lots, testCatalogItem(), now)
			assert.Equal(t, tt.want, balance.CostTrend)
		})
	}
}

func TestCostTrend_SingleLotIsStable(t *testing.T) {
	c := NewBalanceCalculator()
	balance := c.Compute([]Batch{lot("BT-2026-00001", 5, "500", 0)}, testCatalogItem(), testBase)
	assert.Equal(t, TrendStable, balance.CostTrend)
}

func TestClassify_Expiry(t *testing.T) {
	a := NewExpiryAnalyzer()
	now := testBase

	withExpiry := func(offset time.Duration) []Batch {
		b := lot("BT-2026-00001", 5, "100", -1)
		expiry := now.Add(offset)
		b.ExpiryDate = &expiry
		return []Batch{b}
	}

	expired := a.Classify(withExpiry(-time.Hour), now)
	assert.Equal(t, ExpiryExpired, expired.Status)
	assert.True(t, expired.HasExpired)

	expiring := a.Classify(withExpiry(36*time.Hour), now)
	assert.Equal(t, ExpiryExpiring, expiring.Status)
	assert.True(t, expiring.HasNearExpiry)
	require.NotNil(t, expiring.DaysRemaining)
	assert.Equal(t, 2, *expiring.DaysRemaining)

	fresh := a.Classify(withExpiry(10*24*time.Hour), now)
	assert.Equal(t, ExpiryFresh, fresh.Status)
	assert.False(t, fresh.HasNearExpiry)
	require.NotNil(t, fresh.DaysRemaining)
	assert.Equal(t, 10, *fresh.DaysRemaining)
}

func TestClassify_NearestDateWins(t *testing.T) {
	a := NewExpiryAnalyzer()
	now := testBase

	far := lot("BT-2026-00001", 5, "100", 0)
	farDate := now.Add(20 * 24 * time.Hour)
	far.ExpiryDate = &farDate

	near := lot("BT-2026-00002", 5, "100", 1)
	nearDate := now.Add(24 * time.Hour)
	near.ExpiryDate = &nearDate

	info := a.Classify([]Batch{far, near}, now)
	assert.Equal(t, ExpiryExpiring, info.Status)
	require.NotNil(t, info.NearestExpiry)
	assert.True(t, info.NearestExpiry.Equal(nearDate))
}

func TestClassify_IgnoresConsumedLots(t *testing.T) {
	a := NewExpiryAnalyzer()
	now := testBase

	consumed := lot("BT-2026-00001", 5, "100", -5)
	past := now.Add(-time.Hour)
	consumed.ExpiryDate = &past
	consumed.CurrentQuantity = 0
	consumed.Status = BatchStatusConsumed

	info := a.Classify([]Batch{consumed}, now)
	assert.Equal(t, ExpiryFresh, info.Status)
	assert.False(t, info.HasExpired)
}
