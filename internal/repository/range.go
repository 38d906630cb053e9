package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/catalogue"
	"github.com/xenking/promo-engine/internal/domain/offer"
)

const (
	getRangeSQL = `SELECT id, name, includes_all_products FROM ranges WHERE id = $1`

	rangeProductsSQL = `SELECT product_id, excluded FROM range_products WHERE range_id = $1`

	rangeClassesSQL = `SELECT class_id FROM range_classes WHERE range_id = $1`

	rangeCategoriesSQL = `SELECT c.id, c.path
		FROM range_categories rc
		JOIN categories c ON c.id = rc.category_id
		WHERE rc.range_id = $1`
)

// RangeRepository hydrates product ranges from PostgreSQL.
type RangeRepository struct {
	pool *pgxpool.Pool
}

// NewRangeRepository returns a RangeRepository that uses the given pool.
func NewRangeRepository(pool *pgxpool.Pool) *RangeRepository {
	return &RangeRepository{pool: pool}
}

// GetByID loads one range with its product, class, and category membership.
// Returns offer.ErrNotFound for unknown identifiers.
func (r *RangeRepository) GetByID(ctx context.Context, id int64) (*offer.Range, error) {
	rows, err := r.pool.Query(ctx, getRangeSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading range %d: %w", id, err)
	}

	rng, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (*offer.Range, error) {
		rng := &offer.Range{
			IncludedProducts: make(map[int64]struct{}),
			ExcludedProducts: make(map[int64]struct{}),
			Classes:          make(map[int64]struct{}),
		}
		err := row.Scan(&rng.ID, &rng.Name, &rng.IncludesAllProducts)
		return rng, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(offer.ErrNotFound, "range %d", id)
		}
		return nil, fmt.Errorf("loading range %d: %w", id, err)
	}

	if err := r.loadMembership(ctx, rng); err != nil {
		return nil, fmt.Errorf("loading range %d membership: %w", id, err)
	}
	return rng, nil
}

func (r *RangeRepository) loadMembership(ctx context.Context, rng *offer.Range) error {
	rows, err := r.pool.Query(ctx, rangeProductsSQL, rng.ID)
	if err != nil {
		return err
	}
	type productRow struct {
		ProductID int64
		Excluded  bool
	}
	products, err := pgx.CollectRows(rows, pgx.RowToStructByPos[productRow])
	if err != nil {
		return err
	}
	for _, p := range products {
		if p.Excluded {
			rng.ExcludedProducts[p.ProductID] = struct{}{}
		} else {
			rng.IncludedProducts[p.ProductID] = struct{}{}
		}
	}

	rows, err = r.pool.Query(ctx, rangeClassesSQL, rng.ID)
	if err != nil {
		return err
	}
	classes, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return err
	}
	for _, c := range classes {
		rng.Classes[c] = struct{}{}
	}

	rows, err = r.pool.Query(ctx, rangeCategoriesSQL, rng.ID)
	if err != nil {
		return err
	}
	rng.IncludedCategories, err = pgx.CollectRows(rows, pgx.RowToStructByPos[catalogue.Category])
	return err
}
