package storage

import (
	"context"

	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
)

// Repository defines persistence operations for the batch ledger.
// Implementations must make SaveBatches all-or-nothing; the service issues a
// single save per operation so a repository failure never leaves a partial
// write behind.
type Repository interface {
	// LoadBatches returns every lot for the (item, department) key,
	// including consumed and reconciled lots.
	LoadBatches(ctx context.Context, itemID id.ID, department Department) ([]Batch, error)

	// LoadBatchesForUpdate is LoadBatches with the rows locked for the
	// duration of the surrounding transaction (SELECT ... FOR UPDATE).
	// Write paths use it so concurrent processes serialize per key.
	LoadBatchesForUpdate(ctx context.Context, itemID id.ID, department Department) ([]Batch, error)

	// LoadBatchesByDepartment returns every lot in a department.
	LoadBatchesByDepartment(ctx context.Context, department Department) ([]Batch, error)

	// GetBatch returns a single lot by ID.
	GetBatch(ctx context.Context, batchID id.ID) (*Batch, error)

	// LoadOutstandingNegatives returns unreconciled negative lots,
	// optionally scoped to a department (empty = all).
	LoadOutstandingNegatives(ctx context.Context, department Department) ([]Batch, error)

	// SaveBatches upserts the given lots atomically.
	SaveBatches(ctx context.Context, batches []Batch) error
}

// CatalogCost carries cached cost data from the item's catalog record.
// Nil fields mean the catalog has no value recorded.
type CatalogCost struct {
	LastKnownCost *types.Money
	BaseCost      *types.Money
}

// CatalogItem is the read-only item metadata the ledger consumes.
type CatalogItem struct {
	ID       id.ID
	Name     string
	Unit     string
	MinStock types.Quantity
}

// Catalog is the read-only product catalog collaborator.
type Catalog interface {
	// GetItem returns item metadata (name, unit, min stock threshold).
	GetItem(ctx context.Context, itemID id.ID) (CatalogItem, error)

	// LoadCatalogCost returns the cached and baseline costs for an item.
	LoadCatalogCost(ctx context.Context, itemID id.ID) (CatalogCost, error)
}

// AuditRecord is one entry of the operation audit trail.
type AuditRecord struct {
	Operation  string
	ItemID     id.ID
	Department Department
	Payload    any
}

// AuditTrail appends operation records for later review. Implementations
// write within the surrounding transaction so the trail is atomic with the
// lot mutations it describes.
type AuditTrail interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// NopAuditTrail discards records. Used in tests and when auditing is disabled.
type NopAuditTrail struct{}

// Record implements AuditTrail.
func (NopAuditTrail) Record(ctx context.Context, rec AuditRecord) error { return nil }
