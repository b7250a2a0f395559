package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/numerator"
)

// fakeRepo is an in-memory Repository. SaveBatches applies all-or-nothing,
// matching the contract the Postgres implementation provides.
type fakeRepo struct {
	lots      map[string][]Batch
	saveErr   error
	saveCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{lots: make(map[string][]Batch)}
}

func (r *fakeRepo) key(itemID id.ID, department Department) string {
	return itemID.String() + ":" + string(department)
}

func (r *fakeRepo) seed(batches ...Batch) {
	for _, b := range batches {
		k := r.key(b.ItemID, b.Department)
		r.lots[k] = append(r.lots[k], b)
	}
}

func (r *fakeRepo) LoadBatches(ctx context.Context, itemID id.ID, department Department) ([]Batch, error) {
	src := r.lots[r.key(itemID, department)]
	out := make([]Batch, len(src))
	copy(out, src)
	return out, nil
}

func (r *fakeRepo) LoadBatchesForUpdate(ctx context.Context, itemID id.ID, department Department) ([]Batch, error) {
	return r.LoadBatches(ctx, itemID, department)
}

func (r *fakeRepo) LoadBatchesByDepartment(ctx context.Context, department Department) ([]Batch, error) {
	var out []Batch
	for _, set := range r.lots {
		for _, b := range set {
			if b.Department == department {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) GetBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	for _, set := range r.lots {
		for _, b := range set {
			if b.ID == batchID {
				found := b
				return &found, nil
			}
		}
	}
	return nil, apperror.NewNotFound("batch", batchID.String())
}

func (r *fakeRepo) LoadOutstandingNegatives(ctx context.Context, department Department) ([]Batch, error) {
	var out []Batch
	for _, set := range r.lots {
		for _, b := range set {
			if !b.IsOutstandingDeficit() {
				continue
			}
			if department != "" && b.Department != department {
				continue
			}
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeRepo) SaveBatches(ctx context.Context, batches []Batch) error {
	r.saveCalls++
	if r.saveErr != nil {
		return r.saveErr
	}
	for _, b := range batches {
		k := r.key(b.ItemID, b.Department)
		replaced := false
		for i := range r.lots[k] {
			if r.lots[k][i].ID == b.ID {
				r.lots[k][i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			r.lots[k] = append(r.lots[k], b)
		}
	}
	return nil
}

// fakeTxManager runs the function directly; atomicity in these tests comes
// from the repository's single-save contract.
type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingAudit struct {
	operations []string
}

func (a *recordingAudit) Record(ctx context.Context, rec AuditRecord) error {
	a.operations = append(a.operations, rec.Operation)
	return nil
}

func newTestService(repo *fakeRepo) (*Service, *recordingAudit) {
	audit := &recordingAudit{}
	svc := NewService(repo, newFakeCatalog(), audit, fakeTxManager{}, &numerator.MockGenerator{})
	return svc, audit
}

func TestServiceReceipt_CreatesLot(t *testing.T) {
	repo := newFakeRepo()
	svc, audit := newTestService(repo)

	result, err := svc.Receipt(context.Background(), ReceiptRequest{
		ItemID:      testItemID,
		Department:  DepartmentKitchen,
		Quantity:    qty(10),
		CostPerUnit: money("100"),
	})
	require.NoError(t, err)

	assert.Contains(t, result.Batch.Number, "BT-")
	assert.Equal(t, qty(10), result.Batch.CurrentQuantity)
	assert.Equal(t, SourcePurchase, result.Batch.SourceType)
	assert.Equal(t, "kg", result.Batch.Unit)
	requireMoney(t, "1000", result.Batch.TotalValue)
	assert.Nil(t, result.Reconciliation)

	stored, err := repo.LoadBatches(context.Background(), testItemID, DepartmentKitchen)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, []string{"receipt"}, audit.operations)
}

func TestServiceReceipt_SettlesOutstandingDeficit(t *testing.T) {
	repo := newFakeRepo()
	neg := negativeLot("NG-2026-00001", 12, "100", 0)
	repo.seed(neg)

	svc, _ := newTestService(repo)

	result, err := svc.Receipt(context.Background(), ReceiptRequest{
		ItemID:      testItemID,
		Department:  DepartmentKitchen,
		Quantity:    qty(15),
		CostPerUnit: money("110"),
	})
	require.NoError(t, err)

	require.NotNil(t, result.Reconciliation)
	assert.True(t, result.Reconciliation.Reconciled)
	assert.Equal(t, qty(12), result.Reconciliation.DeficitCleared)
	assert.Equal(t, qty(3), result.Batch.CurrentQuantity)

	stored, _ := repo.LoadBatches(context.Background(), testItemID, DepartmentKitchen)
	un := findLot(t, stored, neg.ID)
	require.NotNil(t, un.ReconciledAt)

	balance, err := svc.Balance(context.Background(), testItemID, DepartmentKitchen)
	require.NoError(t, err)
	assert.Equal(t, qty(3), balance.TotalQuantity)
	assert.False(t, balance.HasDeficit)
}

func TestServiceReceipt_PartialSettlement(t *testing.T) {
	repo := newFakeRepo()
	neg := negativeLot("NG-2026-00001", 20, "100", 0)
	repo.seed(neg)

	svc, _ := newTestService(repo)

	result, err := svc.Receipt(context.Background(), ReceiptRequest{
		ItemID:      testItemID,
		Department:  DepartmentKitchen,
		Quantity:    qty(8),
		CostPerUnit: money("110"),
	})
	require.NoError(t, err)

	require.NotNil(t, result.Reconciliation)
	assert.False(t, result.Reconciliation.Reconciled)
	assert.Equal(t, qty(12), result.Reconciliation.RemainingDeficit)
	assert.True(t, result.Batch.CurrentQuantity.IsZero())
	assert.Equal(t, BatchStatusConsumed, result.Batch.Status)

	stored, _ := repo.LoadBatches(context.Background(), testItemID, DepartmentKitchen)
	un := findLot(t, stored, neg.ID)
	assert.Nil(t, un.ReconciledAt)
	assert.Equal(t, qty(12).Neg(), un.CurrentQuantity)
}

func TestServiceReceipt_Validation(t *testing.T) {
	svc, _ := newTestService(newFakeRepo())

	_, err := svc.Receipt(context.Background(), ReceiptRequest{
		ItemID:      testItemID,
		Department:  "garage",
		Quantity:    qty(10),
		CostPerUnit: money("100"),
	})
	require.Error(t, err)

	_, err = svc.Receipt(context.Background(), ReceiptRequest{
		ItemID:      testItemID,
		Department:  DepartmentKitchen,
		Quantity:    qty(-1),
		CostPerUnit: money("100"),
	})
	require.Error(t, err)
}

func TestServiceCorrection_FIFOAcrossLots(t *testing.T) {
	repo := newFakeRepo()
	a := lot("BT-2026-00001", 10, "100", 0)
	b := lot("BT-2026-00002", 5, "110", 1)
	repo.seed(a, b)

	svc, audit := newTestService(repo)

	result, err := svc.Correction(context.Background(), CorrectionRequest{
		ItemID:     testItemID,
		Department: DepartmentKitchen,
		Quantity:   qty(12),
		Operation:  OperationPOSOrder,
	})
	require.NoError(t, err)

	require.Len(t, result.Allocations, 2)
	requireMoney(t, "1220", result.TotalCost)
	assert.True(t, result.Shortfall.IsZero())
	assert.Nil(t, result.Deficit)
	// 1220 / 12
	assert.True(t, result.AverageUnitCost.Sub(money("101.6667")).Abs().LessThan(money("0.001")))

	stored, _ := repo.LoadBatches(context.Background(), testItemID, DepartmentKitchen)
	assert.Equal(t, BatchStatusConsumed, findLot(t, stored, a.ID).Status)
	assert.Equal(t, qty(3), findLot(t, stored, b.ID).CurrentQuantity)
	assert.Equal(t, []string{"correction"}, audit.operations)
}

func TestServiceCorrection_ShortfallCreatesDeficit(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(lot("BT-2026-00001", 8, "100", 0))

	svc, _ := newTestService(repo)

	result, err := svc.Correction(context.Background(), CorrectionRequest{
		ItemID:     testItemID,
		Department: DepartmentKitchen,
		Quantity:   qty(20),
		Operation:  OperationPOSOrder,
		Reason:     "evening rush",
	})
	require.NoError(t, err)

	assert.Equal(t, qty(12), result.Shortfall)
	require.NotNil(t, result.Deficit)
	assert.Equal(t, qty(12).Neg(), result.Deficit.CurrentQuantity)
	// The just-consumed lot feeds the historical cost fallback.
	assert.Equal(t, CostSourceHistorical, result.Deficit.CostSource)
	requireMoney(t, "100", result.Deficit.CostPerUnit)
	// 8 allocated + 12 deficit, both at 100.
	requireMoney(t, "2000", result.TotalCost)
	requireMoney(t, "100", result.AverageUnitCost)
	assert.False(t, result.CostUnresolved)

	negatives, err := svc.NegativeReport(context.Background(), DepartmentKitchen)
	require.NoError(t, err)
	require.Len(t, negatives, 1)
	assert.Equal(t, qty(12), negatives[0].Quantity)
	assert.Equal(t, "evening rush", negatives[0].Reason)
	assert.Equal(t, "Tomato", negatives[0].ItemName)
}

func TestServiceCorrection_RepeatShortfallTopsUp(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(negativeLot("NG-2026-00001", 5, "80", 0))

	svc, _ := newTestService(repo)

	result, err := svc.Correction(context.Background(), CorrectionRequest{
		ItemID:     testItemID,
		Department: DepartmentKitchen,
		Quantity:   qty(3),
		Operation:  OperationManualWriteOff,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Deficit)
	assert.Equal(t, qty(8).Neg(), result.Deficit.CurrentQuantity)

	negatives, _ := svc.NegativeReport(context.Background(), "")
	require.Len(t, negatives, 1)
	assert.Equal(t, qty(8), negatives[0].Quantity)
}

func TestServiceCorrection_EmptyLedgerUnresolvedCost(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	result, err := svc.Correction(context.Background(), CorrectionRequest{
		ItemID:     testItemID,
		Department: DepartmentKitchen,
		Quantity:   qty(5),
		Operation:  OperationInventory,
	})
	require.NoError(t, err)

	assert.True(t, result.CostUnresolved)
	require.NotNil(t, result.Deficit)
	assert.Equal(t, CostSourceUnresolved, result.Deficit.CostSource)
	assert.True(t, result.TotalCost.IsZero())
}

func TestServiceCorrection_InvariantViolationAbortsBeforeSave(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(
		negativeLot("NG-2026-00001", 5, "80", 0),
		negativeLot("NG-2026-00002", 3, "80", 1),
	)

	svc, audit := newTestService(repo)

	_, err := svc.Correction(context.Background(), CorrectionRequest{
		ItemID:     testItemID,
		Department: DepartmentKitchen,
		Quantity:   qty(2),
		Operation:  OperationPOSOrder,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInvariantViolation(err))
	assert.Equal(t, 0, repo.saveCalls)
	assert.Empty(t, audit.operations)
}

func TestServiceCorrection_RepositoryFailureLeavesStateIntact(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(lot("BT-2026-00001", 10, "100", 0))
	repo.saveErr = errors.New("connection reset")

	svc, audit := newTestService(repo)

	_, err := svc.Correction(context.Background(), CorrectionRequest{
		ItemID:     testItemID,
		Department: DepartmentKitchen,
		Quantity:   qty(4),
		Operation:  OperationPOSOrder,
	})
	require.Error(t, err)
	assert.Empty(t, audit.operations)

	stored, _ := repo.LoadBatches(context.Background(), testItemID, DepartmentKitchen)
	require.Len(t, stored, 1)
	assert.Equal(t, qty(10), stored[0].CurrentQuantity)
}

func TestServiceUndoReconciliation(t *testing.T) {
	repo := newFakeRepo()
	neg := negativeLot("NG-2026-00001", 12, "100", 0)
	repo.seed(neg)

	svc, audit := newTestService(repo)

	_, err := svc.Receipt(context.Background(), ReceiptRequest{
		ItemID:      testItemID,
		Department:  DepartmentKitchen,
		Quantity:    qty(15),
		CostPerUnit: money("110"),
	})
	require.NoError(t, err)

	restock, err := svc.UndoReconciliation(context.Background(), neg.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(12), restock)

	negatives, _ := svc.NegativeReport(context.Background(), DepartmentKitchen)
	require.Len(t, negatives, 1)
	assert.Equal(t, qty(12), negatives[0].Quantity)
	assert.Equal(t, []string{"receipt", "undo_reconciliation"}, audit.operations)
}

func TestServiceUndoReconciliation_NotReconciled(t *testing.T) {
	repo := newFakeRepo()
	neg := negativeLot("NG-2026-00001", 5, "100", 0)
	repo.seed(neg)

	svc, _ := newTestService(repo)

	_, err := svc.UndoReconciliation(context.Background(), neg.ID)
	require.Error(t, err)
}

func TestServiceCheckAvailability(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(lot("BT-2026-00001", 8, "100", 0))

	svc, _ := newTestService(repo)

	check, err := svc.CheckAvailability(context.Background(), testItemID, DepartmentKitchen, qty(10))
	require.NoError(t, err)
	assert.False(t, check.Sufficient)
	assert.Equal(t, qty(8), check.Available)
	assert.Equal(t, qty(2), check.Shortfall)
	assert.Equal(t, 0, repo.saveCalls)
}

func TestServiceBalances_GroupsByItem(t *testing.T) {
	repo := newFakeRepo()
	otherItem := id.MustParse("0196f3a0-0000-7000-8000-000000000002")
	other := lot("BT-2026-00002", 4, "50", 1)
	other.ItemID = otherItem
	repo.seed(lot("BT-2026-00001", 10, "100", 0), other)

	svc, _ := newTestService(repo)

	balances, err := svc.Balances(context.Background(), DepartmentKitchen)
	require.NoError(t, err)
	require.Len(t, balances, 2)
}

func TestServiceListBatches_NewestFirst(t *testing.T) {
	repo := newFakeRepo()
	older := lot("BT-2026-00001", 10, "100", 0)
	newer := lot("BT-2026-00002", 5, "110", 1)
	repo.seed(older, newer)

	svc, _ := newTestService(repo)

	batches, err := svc.ListBatches(context.Background(), testItemID, DepartmentKitchen)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, newer.ID, batches[0].ID)
	assert.Equal(t, older.ID, batches[1].ID)
}
