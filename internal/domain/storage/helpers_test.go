package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
)

var testBase = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func qty(v float64) types.Quantity {
	return types.NewQuantityFromFloat64(v)
}

func money(s string) types.Money {
	return types.MustMoney(s)
}

func requireMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	require.True(t, money(want).Equal(got),
		"money mismatch: want %s, got %s", want, got.String())
}

// lot builds an active positive lot received dayOffset days after testBase.
func lot(number string, quantity float64, cost string, dayOffset int) Batch {
	receipt := testBase.AddDate(0, 0, dayOffset)
	b := Batch{
		ID:              id.New(),
		Number:          number,
		ItemID:          testItemID,
		Department:      DepartmentKitchen,
		InitialQuantity: qty(quantity),
		CurrentQuantity: qty(quantity),
		Unit:            "kg",
		CostPerUnit:     money(cost),
		ReceiptDate:     receipt,
		SourceType:      SourcePurchase,
		Status:          BatchStatusActive,
		CreatedAt:       receipt,
		UpdatedAt:       receipt,
	}
	b.RecalcValue()
	return b
}

// negativeLot builds an outstanding deficit lot created dayOffset days after
// testBase.
func negativeLot(number string, magnitude float64, cost string, dayOffset int) Batch {
	created := testBase.AddDate(0, 0, dayOffset)
	b := Batch{
		ID:              id.New(),
		Number:          number,
		ItemID:          testItemID,
		Department:      DepartmentKitchen,
		InitialQuantity: qty(magnitude).Neg(),
		CurrentQuantity: qty(magnitude).Neg(),
		Unit:            "kg",
		CostPerUnit:     money(cost),
		ReceiptDate:     created,
		SourceType:      SourceCorrection,
		Status:          BatchStatusActive,
		IsNegative:      true,
		SourceOperation: OperationPOSOrder,
		CostSource:      CostSourceLastBatch,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	b.RecalcValue()
	return b
}

var testItemID = id.MustParse("0196f3a0-0000-7000-8000-000000000001")

func findLot(t *testing.T, lots []Batch, lotID id.ID) *Batch {
	t.Helper()
	for i := range lots {
		if lots[i].ID == lotID {
			return &lots[i]
		}
	}
	t.Fatalf("lot %s not found", lotID)
	return nil
}

// fakeCatalog is an in-memory Catalog for tests.
type fakeCatalog struct {
	items map[id.ID]CatalogItem
	costs map[id.ID]CatalogCost
	err   error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		items: map[id.ID]CatalogItem{
			testItemID: {ID: testItemID, Name: "Tomato", Unit: "kg"},
		},
		costs: map[id.ID]CatalogCost{},
	}
}

func (c *fakeCatalog) GetItem(ctx context.Context, itemID id.ID) (CatalogItem, error) {
	if c.err != nil {
		return CatalogItem{}, c.err
	}
	return c.items[itemID], nil
}

func (c *fakeCatalog) LoadCatalogCost(ctx context.Context, itemID id.ID) (CatalogCost, error) {
	if c.err != nil {
		return CatalogCost{}, c.err
	}
	return c.costs[itemID], nil
}
