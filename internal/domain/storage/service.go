package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"backoffice/internal/core/id"
	"backoffice/internal/core/keylock"
	"backoffice/internal/core/numerator"
	"backoffice/internal/core/tx"
	"backoffice/internal/core/types"
	"backoffice/pkg/logger"
)

// receiptLotPrefix is the numbering prefix for positive lots.
const receiptLotPrefix = "BT"

// Service is the batch ledger facade: receipts, corrections, balances,
// reconciliation control and reporting. Every write runs as
// lock → load → mutate in memory → single save, inside one transaction, so
// repository failures leave the ledger untouched.
type Service struct {
	repo    Repository
	catalog Catalog
	audit   AuditTrail
	txm     tx.Manager

	negatives  *NegativeBatchManager
	reconciler *ReconciliationEngine
	balances   *BalanceCalculator
	numbers    numerator.Generator
	locks      *keylock.Map
}

// NewService creates a batch ledger service.
func NewService(
	repo Repository,
	catalog Catalog,
	audit AuditTrail,
	txm tx.Manager,
	numbers numerator.Generator,
) *Service {
	resolver := NewCostResolver(catalog)
	return &Service{
		repo:       repo,
		catalog:    catalog,
		audit:      audit,
		txm:        txm,
		negatives:  NewNegativeBatchManager(resolver, numbers),
		reconciler: NewReconciliationEngine(),
		balances:   NewBalanceCalculator(),
		numbers:    numbers,
		locks:      keylock.NewMap(),
	}
}

func ledgerKey(itemID id.ID, department Department) string {
	return itemID.String() + ":" + string(department)
}

// Receipt appends a positive lot and immediately runs reconciliation, so an
// incoming shipment settles any outstanding deficit before it is available
// for new consumption.
func (s *Service) Receipt(ctx context.Context, req ReceiptRequest) (*ReceiptResult, error) {
	if err := req.Validate(ctx); err != nil {
		return nil, err
	}

	item, err := s.catalog.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}

	key := ledgerKey(req.ItemID, req.Department)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var result ReceiptResult
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()

		lots, err := s.repo.LoadBatchesForUpdate(ctx, req.ItemID, req.Department)
		if err != nil {
			return fmt.Errorf("load batches: %w", err)
		}

		number, err := s.numbers.GetNextNumber(ctx, numerator.DefaultConfig(receiptLotPrefix), nil, now)
		if err != nil {
			return fmt.Errorf("generate lot number: %w", err)
		}

		sourceType := req.SourceType
		if sourceType == "" {
			sourceType = SourcePurchase
		}

		lot := Batch{
			ID:              id.New(),
			Number:          number,
			ItemID:          req.ItemID,
			Department:      req.Department,
			InitialQuantity: req.Quantity,
			CurrentQuantity: req.Quantity,
			Unit:            item.Unit,
			CostPerUnit:     req.CostPerUnit,
			ReceiptDate:     now,
			ExpiryDate:      req.ExpiryDate,
			SourceType:      sourceType,
			Status:          BatchStatusActive,
			Notes:           req.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		lot.RecalcValue()
		lots = append(lots, lot)

		updated, recon := s.reconciler.Reconcile(lots, now)
		if recon.TouchedLotCount > 0 || recon.DeficitCleared.IsPositive() {
			result.Reconciliation = &recon
		}

		changed := changedLots(lots, updated, lot.ID)
		if err := s.repo.SaveBatches(ctx, changed); err != nil {
			return fmt.Errorf("save batches: %w", err)
		}

		for i := range updated {
			if updated[i].ID == lot.ID {
				result.Batch = updated[i]
			}
		}

		return s.audit.Record(ctx, AuditRecord{
			Operation:  "receipt",
			ItemID:     req.ItemID,
			Department: req.Department,
			Payload:    result,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "receipt recorded",
		"batch_number", result.Batch.Number,
		"item_id", req.ItemID,
		"department", req.Department,
		"quantity", req.Quantity,
		"reconciled", result.Reconciliation != nil,
	)

	return &result, nil
}

// Correction consumes a quantity in FIFO order. A shortfall is not rejected:
// it becomes (or deepens) the key's negative lot, and the consumption cost
// includes the deficit portion at its resolved cost basis.
func (s *Service) Correction(ctx context.Context, req CorrectionRequest) (*CorrectionResult, error) {
	if err := req.Validate(ctx); err != nil {
		return nil, err
	}

	item, err := s.catalog.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}

	key := ledgerKey(req.ItemID, req.Department)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var result CorrectionResult
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()

		lots, err := s.repo.LoadBatchesForUpdate(ctx, req.ItemID, req.Department)
		if err != nil {
			return fmt.Errorf("load batches: %w", err)
		}

		allocations, remaining, err := Allocate(lots, req.Quantity)
		if err != nil {
			return err
		}
		updated := ApplyAllocations(lots, allocations, now)

		result = CorrectionResult{
			Allocations: allocations,
			TotalCost:   AllocationCost(allocations),
			Shortfall:   remaining,
		}

		if remaining.IsPositive() {
			withDeficit, deficit, cost, err := s.negatives.RecordDeficit(ctx, updated, DeficitRequest{
				ItemID:     req.ItemID,
				Department: req.Department,
				Quantity:   remaining,
				Unit:       item.Unit,
				Operation:  req.Operation,
				Reason:     req.Reason,
			}, now)
			if err != nil {
				return err
			}
			updated = withDeficit
			result.Deficit = deficit
			result.CostUnresolved = cost.Unresolved()
			result.TotalCost = result.TotalCost.Add(cost.Cost.Mul(remaining.Decimal()))
		}
		if req.Quantity.IsPositive() {
			result.AverageUnitCost = result.TotalCost.Div(req.Quantity.Decimal())
		}

		changed := changedLots(lots, updated, id.Nil())
		if err := s.repo.SaveBatches(ctx, changed); err != nil {
			return fmt.Errorf("save batches: %w", err)
		}

		return s.audit.Record(ctx, AuditRecord{
			Operation:  "correction",
			ItemID:     req.ItemID,
			Department: req.Department,
			Payload:    result,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "correction recorded",
		"item_id", req.ItemID,
		"department", req.Department,
		"quantity", req.Quantity,
		"operation", req.Operation,
		"shortfall", result.Shortfall,
		"total_cost", result.TotalCost,
	)
	if result.CostUnresolved {
		logger.Warn(ctx, "correction deficit valued at zero, no price history",
			"item_id", req.ItemID,
			"department", req.Department,
		)
	}

	return &result, nil
}

// UndoReconciliation reverts a reconciled negative lot to outstanding. The
// positive stock it absorbed is not restored; the returned quantity is what
// has to be restocked manually for the ledger to balance.
func (s *Service) UndoReconciliation(ctx context.Context, batchID id.ID) (types.Quantity, error) {
	lot, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("get batch: %w", err)
	}

	key := ledgerKey(lot.ItemID, lot.Department)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var restock types.Quantity
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()

		lots, err := s.repo.LoadBatchesForUpdate(ctx, lot.ItemID, lot.Department)
		if err != nil {
			return fmt.Errorf("load batches: %w", err)
		}

		updated, qty, err := s.reconciler.UndoReconciliation(lots, batchID, now)
		if err != nil {
			return err
		}
		restock = qty

		changed := changedLots(lots, updated, id.Nil())
		if err := s.repo.SaveBatches(ctx, changed); err != nil {
			return fmt.Errorf("save batches: %w", err)
		}

		return s.audit.Record(ctx, AuditRecord{
			Operation:  "undo_reconciliation",
			ItemID:     lot.ItemID,
			Department: lot.Department,
			Payload:    map[string]any{"batchId": batchID, "restockQuantity": qty},
		})
	})
	if err != nil {
		return 0, err
	}

	logger.Warn(ctx, "reconciliation undone, manual restock required",
		"batch_id", batchID,
		"item_id", lot.ItemID,
		"department", lot.Department,
		"restock_quantity", restock,
	)

	return restock, nil
}

// Balance computes the derived stock summary for one (item, department) key.
// Read-only; the snapshot may be stale relative to in-flight writes.
func (s *Service) Balance(ctx context.Context, itemID id.ID, department Department) (*Balance, error) {
	if !department.Valid() {
		return nil, fmt.Errorf("unknown department %q", department)
	}

	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}

	lots, err := s.repo.LoadBatches(ctx, itemID, department)
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}

	balance := s.balances.Compute(lots, item, time.Now().UTC())
	balance.Department = department
	return &balance, nil
}

// Balances computes summaries for every item present in a department.
func (s *Service) Balances(ctx context.Context, department Department) ([]Balance, error) {
	lots, err := s.repo.LoadBatchesByDepartment(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}

	byItem := make(map[id.ID][]Batch)
	for _, lot := range lots {
		byItem[lot.ItemID] = append(byItem[lot.ItemID], lot)
	}

	now := time.Now().UTC()
	result := make([]Balance, 0, len(byItem))
	for itemID, itemLots := range byItem {
		item, err := s.catalog.GetItem(ctx, itemID)
		if err != nil {
			logger.Warn(ctx, "catalog item missing for stocked lots",
				"item_id", itemID, "department", department)
			item = CatalogItem{ID: itemID}
		}
		balance := s.balances.Compute(itemLots, item, now)
		balance.Department = department
		result = append(result, balance)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ItemName < result[j].ItemName
	})
	return result, nil
}

// CheckAvailability probes whether a quantity could be consumed right now,
// without allocating or mutating anything.
func (s *Service) CheckAvailability(ctx context.Context, itemID id.ID, department Department, required types.Quantity) (StockCheck, error) {
	lots, err := s.repo.LoadBatches(ctx, itemID, department)
	if err != nil {
		return StockCheck{}, fmt.Errorf("load batches: %w", err)
	}
	return CheckSufficiency(lots, required), nil
}

// ListBatches returns the full lot history for one (item, department) key,
// newest first.
func (s *Service) ListBatches(ctx context.Context, itemID id.ID, department Department) ([]Batch, error) {
	lots, err := s.repo.LoadBatches(ctx, itemID, department)
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].ReceiptDate.After(lots[j].ReceiptDate)
	})
	return lots, nil
}

// NegativeReport lists outstanding deficits, oldest first. An empty
// department means all departments.
func (s *Service) NegativeReport(ctx context.Context, department Department) ([]DeficitSummary, error) {
	lots, err := s.repo.LoadOutstandingNegatives(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("load outstanding negatives: %w", err)
	}

	now := time.Now().UTC()
	report := make([]DeficitSummary, 0, len(lots))
	for _, lot := range lots {
		name := ""
		if item, err := s.catalog.GetItem(ctx, lot.ItemID); err == nil {
			name = item.Name
		}
		report = append(report, DeficitSummary{
			ItemID:          lot.ItemID,
			ItemName:        name,
			Department:      lot.Department,
			BatchNumber:     lot.Number,
			Quantity:        lot.CurrentQuantity.Abs(),
			Unit:            lot.Unit,
			EstimatedValue:  lot.CostPerUnit.Mul(lot.CurrentQuantity.Abs().Decimal()),
			CostSource:      lot.CostSource,
			Reason:          lot.NegativeReason,
			SourceOperation: lot.SourceOperation,
			OutstandingFor:  now.Sub(lot.CreatedAt),
			CreatedAt:       lot.CreatedAt,
		})
	}

	sort.SliceStable(report, func(i, j int) bool {
		return report[i].CreatedAt.Before(report[j].CreatedAt)
	})
	return report, nil
}

// changedLots diffs the updated set against the loaded one and returns only
// lots that need persisting: new lots plus lots whose UpdatedAt moved.
// createdID forces inclusion of a freshly appended lot even when untouched
// by later steps.
func changedLots(before, after []Batch, createdID id.ID) []Batch {
	prev := make(map[id.ID]Batch, len(before))
	for _, lot := range before {
		prev[lot.ID] = lot
	}

	var changed []Batch
	for _, lot := range after {
		old, existed := prev[lot.ID]
		if !existed || lot.ID == createdID || !old.UpdatedAt.Equal(lot.UpdatedAt) {
			changed = append(changed, lot)
			continue
		}
	}
	return changed
}
