package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/catalogue"
)

const (
	getProductSQL = `SELECT id, name, class_id, price, is_discountable
		FROM products WHERE id = $1`

	productCategoriesSQL = `SELECT c.id, c.path
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = $1`
)

var _ catalogue.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalogue.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns one product with its categories and price. Returns
// catalogue.ErrNotFound for unknown identifiers.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*catalogue.PricedProduct, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading product %d: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(catalogue.ErrNotFound, "product %d", id)
		}
		return nil, fmt.Errorf("loading product %d: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, productCategoriesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading categories for product %d: %w", id, err)
	}
	p.Product.Categories, err = pgx.CollectRows(rows, pgx.RowToStructByPos[catalogue.Category])
	if err != nil {
		return nil, fmt.Errorf("loading categories for product %d: %w", id, err)
	}
	return p, nil
}

func scanProduct(row pgx.CollectableRow) (*catalogue.PricedProduct, error) {
	var p catalogue.PricedProduct
	err := row.Scan(&p.Product.ID, &p.Name, &p.Product.ClassID, &p.Price, &p.Product.IsDiscountable)
	return &p, err
}
