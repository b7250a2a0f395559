package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
)

// netQuantity sums current quantities over lots still counted by the ledger:
// consumable stock minus outstanding deficits.
func netQuantity(lots []Batch) types.Quantity {
	var total types.Quantity
	for i := range lots {
		if lots[i].IsConsumable() {
			total += lots[i].CurrentQuantity
		}
		if lots[i].IsOutstandingDeficit() {
			total += lots[i].CurrentQuantity
		}
	}
	return total
}

func TestReconcile_FullSettlement(t *testing.T) {
	neg := negativeLot("NG-2026-00001", 12, "100", 0)
	incoming := lot("BT-2026-00002", 15, "110", 1)
	now := testBase.AddDate(0, 0, 1)

	e := NewReconciliationEngine()
	updated, result := e.Reconcile([]Batch{neg, incoming}, now)

	assert.True(t, result.Reconciled)
	assert.Equal(t, qty(12), result.DeficitCleared)
	assert.True(t, result.RemainingDeficit.IsZero())
	assert.Equal(t, 1, result.TouchedLotCount)

	un := findLot(t, updated, neg.ID)
	require.NotNil(t, un.ReconciledAt)
	assert.True(t, un.ReconciledAt.Equal(now))
	assert.False(t, un.IsOutstandingDeficit())

	ui := findLot(t, updated, incoming.ID)
	assert.Equal(t, qty(3), ui.CurrentQuantity)
	assert.Equal(t, BatchStatusActive, ui.Status)

	assert.Equal(t, qty(3), netQuantity(updated))
}

func TestReconcile_PartialSettlement(t *testing.T) {
	neg := negativeLot("NG-2026-00001", 20, "100", 0)
	incoming := lot("BT-2026-00002", 8, "110", 1)
	now := testBase.AddDate(0, 0, 1)

	e := NewReconciliationEngine()
	updated, result := e.Reconcile([]Batch{neg, incoming}, now)

	assert.False(t, result.Reconciled)
	assert.Equal(t, qty(8), result.DeficitCleared)
	assert.Equal(t, qty(12), result.RemainingDeficit)

	un := findLot(t, updated, neg.ID)
	assert.Nil(t, un.ReconciledAt)
	assert.Equal(t, qty(12).Neg(), un.CurrentQuantity)
	requireMoney(t, "-1200", un.TotalValue)

	ui := findLot(t, updated, incoming.ID)
	assert.True(t, ui.CurrentQuantity.IsZero())
	assert.Equal(t, BatchStatusConsumed, ui.Status)

	assert.Equal(t, qty(12).Neg(), netQuantity(updated))
}

func TestReconcile_NoDeficitNoChanges(t *testing.T) {
	incoming := lot("BT-2026-00001", 10, "100", 0)

	e := NewReconciliationEngine()
	updated, result := e.Reconcile([]Batch{incoming}, testBase)

	assert.False(t, result.Reconciled)
	assert.True(t, result.DeficitCleared.IsZero())
	assert.Equal(t, 0, result.TouchedLotCount)
	assert.Equal(t, qty(10), findLot(t, updated, incoming.ID).CurrentQuantity)
}

func TestReconcile_NoStockLeavesDeficitIntact(t *testing.T) {
	neg := negativeLot("NG-2026-00001", 6, "100", 0)

	e := NewReconciliationEngine()
	updated, result := e.Reconcile([]Batch{neg}, testBase)

	assert.False(t, result.Reconciled)
	assert.Equal(t, qty(6), result.RemainingDeficit)
	assert.Nil(t, findLot(t, updated, neg.ID).ReconciledAt)
}

func TestReconcile_DrawsFromNewestLotFirst(t *testing.T) {
	neg := negativeLot("NG-2026-00001", 5, "100", 0)
	older := lot("BT-2026-00002", 10, "100", 1)
	newer := lot("BT-2026-00003", 10, "120", 2)

	e := NewReconciliationEngine()
	updated, result := e.Reconcile([]Batch{neg, older, newer}, testBase.AddDate(0, 0, 3))

	assert.True(t, result.Reconciled)
	assert.Equal(t, 1, result.TouchedLotCount)

	// The newest lot absorbs the whole deficit; the older one is untouched.
	assert.Equal(t, qty(5), findLot(t, updated, newer.ID).CurrentQuantity)
	assert.Equal(t, qty(10), findLot(t, updated, older.ID).CurrentQuantity)
}

func TestReconcile_MultipleNegativesSettleOldestFirst(t *testing.T) {
	// Legacy data may carry more than one outstanding lot; the walk settles
	// them oldest first and preserves the net quantity.
	oldNeg := negativeLot("NG-2026-00001", 5, "100", 0)
	newNeg := negativeLot("NG-2026-00002", 7, "100", 1)
	incoming := lot("BT-2026-00003", 8, "110", 2)
	now := testBase.AddDate(0, 0, 2)

	before := netQuantity([]Batch{oldNeg, newNeg, incoming})

	e := NewReconciliationEngine()
	updated, result := e.Reconcile([]Batch{oldNeg, newNeg, incoming}, now)

	assert.False(t, result.Reconciled)
	assert.Equal(t, qty(8), result.DeficitCleared)
	assert.Equal(t, qty(4), result.RemainingDeficit)

	uo := findLot(t, updated, oldNeg.ID)
	require.NotNil(t, uo.ReconciledAt)

	un := findLot(t, updated, newNeg.ID)
	assert.Nil(t, un.ReconciledAt)
	assert.Equal(t, qty(4).Neg(), un.CurrentQuantity)

	assert.Equal(t, before, netQuantity(updated))
}

func TestUndoReconciliation(t *testing.T) {
	neg := negativeLot("NG-2026-00001", 12, "100", 0)
	incoming := lot("BT-2026-00002", 15, "110", 1)
	now := testBase.AddDate(0, 0, 1)

	e := NewReconciliationEngine()
	settled, _ := e.Reconcile([]Batch{neg, incoming}, now)

	later := now.AddDate(0, 0, 1)
	updated, restock, err := e.UndoReconciliation(settled, neg.ID, later)
	require.NoError(t, err)

	assert.Equal(t, qty(12), restock)

	un := findLot(t, updated, neg.ID)
	assert.Nil(t, un.ReconciledAt)
	assert.True(t, un.IsOutstandingDeficit())

	// The absorbing lot is not restored; the ledger is short until the
	// returned quantity is restocked.
	assert.Equal(t, qty(3), findLot(t, updated, incoming.ID).CurrentQuantity)
}

func TestUndoReconciliation_Errors(t *testing.T) {
	e := NewReconciliationEngine()

	positive := lot("BT-2026-00001", 5, "100", 0)
	_, _, err := e.UndoReconciliation([]Batch{positive}, positive.ID, testBase)
	require.Error(t, err)

	outstanding := negativeLot("NG-2026-00001", 5, "100", 0)
	_, _, err = e.UndoReconciliation([]Batch{outstanding}, outstanding.ID, testBase)
	require.Error(t, err)

	_, _, err = e.UndoReconciliation(nil, id.New(), testBase)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
