package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/domain/storage"
)

const batchesTable = "storage_batches"

var batchColumns = []string{
	"id", "batch_number", "item_id", "department",
	"initial_quantity", "current_quantity", "unit",
	"cost_per_unit", "total_value",
	"receipt_date", "expiry_date",
	"source_type", "status", "notes",
	"is_negative", "source_batch_id", "negative_reason", "source_operation",
	"cost_source", "reconciled_at",
	"created_at", "updated_at",
}

// BatchRepo implements storage.Repository on PostgreSQL.
type BatchRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(txm *TxManager) *BatchRepo {
	return &BatchRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ storage.Repository = (*BatchRepo)(nil)

func (r *BatchRepo) selectBatches() squirrel.SelectBuilder {
	return r.builder.Select(batchColumns...).From(batchesTable)
}

// LoadBatches returns every lot for the key, including consumed and
// reconciled lots.
func (r *BatchRepo) LoadBatches(ctx context.Context, itemID id.ID, department storage.Department) ([]storage.Batch, error) {
	q := r.selectBatches().
		Where(squirrel.Eq{"item_id": itemID, "department": department}).
		OrderBy("receipt_date", "created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []storage.Batch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	return batches, nil
}

// LoadBatchesForUpdate is LoadBatches with FOR UPDATE row locks, so
// concurrent processes serialize on the key's rows for the rest of the
// transaction.
func (r *BatchRepo) LoadBatchesForUpdate(ctx context.Context, itemID id.ID, department storage.Department) ([]storage.Batch, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE item_id = $1 AND department = $2
		ORDER BY receipt_date, created_at
		FOR UPDATE
	`, strings.Join(batchColumns, ", "), batchesTable)

	var batches []storage.Batch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &batches, sql, itemID, department); err != nil {
		return nil, fmt.Errorf("select batches for update: %w", err)
	}
	return batches, nil
}

// LoadBatchesByDepartment returns every lot in a department.
func (r *BatchRepo) LoadBatchesByDepartment(ctx context.Context, department storage.Department) ([]storage.Batch, error) {
	q := r.selectBatches().
		Where(squirrel.Eq{"department": department}).
		OrderBy("item_id", "receipt_date")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []storage.Batch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select department batches: %w", err)
	}
	return batches, nil
}

// GetBatch returns a single lot by ID.
func (r *BatchRepo) GetBatch(ctx context.Context, batchID id.ID) (*storage.Batch, error) {
	q := r.selectBatches().Where(squirrel.Eq{"id": batchID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batch storage.Batch
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &batch, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", batchID.String())
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &batch, nil
}

// LoadOutstandingNegatives returns unreconciled negative lots, optionally
// scoped to a department.
func (r *BatchRepo) LoadOutstandingNegatives(ctx context.Context, department storage.Department) ([]storage.Batch, error) {
	q := r.selectBatches().
		Where(squirrel.Eq{"is_negative": true}).
		Where(squirrel.Eq{"reconciled_at": nil}).
		OrderBy("created_at")

	if department != "" {
		q = q.Where(squirrel.Eq{"department": department})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []storage.Batch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select outstanding negatives: %w", err)
	}
	return batches, nil
}

// SaveBatches upserts the given lots in one statement, so the write is
// all-or-nothing even outside an explicit transaction.
func (r *BatchRepo) SaveBatches(ctx context.Context, batches []storage.Batch) error {
	if len(batches) == 0 {
		return nil
	}

	q := r.builder.Insert(batchesTable).Columns(batchColumns...)
	for _, b := range batches {
		q = q.Values(
			b.ID, b.Number, b.ItemID, b.Department,
			b.InitialQuantity, b.CurrentQuantity, b.Unit,
			b.CostPerUnit, b.TotalValue,
			b.ReceiptDate, b.ExpiryDate,
			b.SourceType, b.Status, b.Notes,
			b.IsNegative, b.SourceBatchID, b.NegativeReason, b.SourceOperation,
			b.CostSource, b.ReconciledAt,
			b.CreatedAt, b.UpdatedAt,
		)
	}
	q = q.Suffix(`
		ON CONFLICT (id) DO UPDATE SET
			current_quantity = EXCLUDED.current_quantity,
			total_value = EXCLUDED.total_value,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			cost_source = EXCLUDED.cost_source,
			reconciled_at = EXCLUDED.reconciled_at,
			updated_at = EXCLUDED.updated_at
	`)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("upsert batches: %w", err))
	}
	return nil
}
