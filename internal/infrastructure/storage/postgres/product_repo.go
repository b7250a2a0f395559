package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/id"
	"backoffice/internal/core/types"
	"backoffice/internal/domain/catalogs/product"
)

const productsTable = "products"

var productColumns = []string{
	"id", "code", "name", "category", "unit",
	"min_stock", "last_known_cost", "base_cost",
	"is_active", "created_at", "updated_at",
}

// ProductRepo implements product.Repository on PostgreSQL.
type ProductRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *TxManager) *ProductRepo {
	return &ProductRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ product.Repository = (*ProductRepo)(nil)

// GetByID retrieves a product by ID.
func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	q := r.builder.Select(productColumns...).From(productsTable).
		Where(squirrel.Eq{"id": productID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID.String())
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// List retrieves products ordered by name.
func (r *ProductRepo) List(ctx context.Context, includeInactive bool) ([]product.Product, error) {
	q := r.builder.Select(productColumns...).From(productsTable).OrderBy("name")
	if !includeInactive {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var products []product.Product
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &products, sql, args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return products, nil
}

// Create inserts a new product.
func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	q := r.builder.Insert(productsTable).Columns(productColumns...).Values(
		p.ID, p.Code, p.Name, p.Category, p.Unit,
		p.MinStock, p.LastKnownCost, p.BaseCost,
		p.IsActive, p.CreatedAt, p.UpdatedAt,
	)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert product: %w", err))
	}
	return nil
}

// Update saves product changes.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	q := r.builder.Update(productsTable).
		Set("name", p.Name).
		Set("category", p.Category).
		Set("unit", p.Unit).
		Set("min_stock", p.MinStock).
		Set("last_known_cost", p.LastKnownCost).
		Set("base_cost", p.BaseCost).
		Set("is_active", p.IsActive).
		Set("updated_at", p.UpdatedAt).
		Where(squirrel.Eq{"id": p.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("update product: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", p.ID.String())
	}
	return nil
}

// UpdateLastKnownCost refreshes the cached cost only.
func (r *ProductRepo) UpdateLastKnownCost(ctx context.Context, productID id.ID, cost types.Money) error {
	q := r.builder.Update(productsTable).
		Set("last_known_cost", cost).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": productID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("update last known cost: %w", err))
	}
	return nil
}
