package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// seedStatements builds a small demo shop: a category tree, a handful of
// products, two ranges, three site offers, and one voucher. Everything
// upserts, so repeated --seed runs are safe.
var seedStatements = []string{
	`INSERT INTO categories (id, name, path) VALUES
		(1, 'All', '/1/'),
		(10, 'Clothing', '/1/10/'),
		(11, 'Shirts', '/1/10/11/'),
		(20, 'Books', '/1/20/')
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, path = EXCLUDED.path`,

	`INSERT INTO products (id, name, class_id, price, is_discountable) VALUES
		(101, 'Oxford shirt', 1, 35.00, TRUE),
		(102, 'Linen shirt', 1, 49.50, TRUE),
		(103, 'Denim jacket', 1, 89.00, TRUE),
		(201, 'Go programming book', 2, 27.99, TRUE),
		(202, 'Gift card', 3, 50.00, FALSE)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, class_id = EXCLUDED.class_id,
		price = EXCLUDED.price, is_discountable = EXCLUDED.is_discountable`,

	`INSERT INTO product_categories (product_id, category_id) VALUES
		(101, 11), (102, 11), (103, 10), (201, 20)
	ON CONFLICT DO NOTHING`,

	`INSERT INTO ranges (id, name, includes_all_products) VALUES
		(1, 'Everything', TRUE),
		(2, 'Shirts', FALSE)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, includes_all_products = EXCLUDED.includes_all_products`,

	`INSERT INTO range_categories (range_id, category_id) VALUES (2, 11)
	ON CONFLICT DO NOTHING`,

	`INSERT INTO offers (id, name, description, offer_type, status, priority,
		condition_kind, condition_range_id, condition_value,
		benefit_kind, benefit_range_id, benefit_value, benefit_max_affected_items,
		max_basket_applications)
	VALUES
		(1, 'Shirt multibuy', 'Buy 2 shirts, get 20% off one', 'Site', 'Open', 10,
			'Count', 2, 2, 'Percentage', 2, 20, 1, 0),
		(2, 'Big spender', 'Spend 100.00, get 10% off everything', 'Site', 'Open', 5,
			'Value', 1, 100, 'Percentage', 1, 10, 0, 1),
		(3, 'Free shipping', 'Orders over 50.00 ship free', 'Site', 'Open', 0,
			'Value', 1, 50, 'Shipping absolute', NULL, 100, 0, 1)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description,
		priority = EXCLUDED.priority,
		condition_kind = EXCLUDED.condition_kind,
		condition_range_id = EXCLUDED.condition_range_id,
		condition_value = EXCLUDED.condition_value,
		benefit_kind = EXCLUDED.benefit_kind,
		benefit_range_id = EXCLUDED.benefit_range_id,
		benefit_value = EXCLUDED.benefit_value,
		benefit_max_affected_items = EXCLUDED.benefit_max_affected_items,
		max_basket_applications = EXCLUDED.max_basket_applications`,

	`INSERT INTO offers (id, name, description, offer_type, status, priority,
		condition_kind, condition_range_id, condition_value,
		benefit_kind, benefit_range_id, benefit_value, benefit_max_affected_items,
		max_basket_applications)
	VALUES
		(4, 'Voucher: 15% off', '15% off everything with code SUMMER15', 'Voucher', 'Open', 20,
			'Count', 1, 1, 'Percentage', 1, 15, 0, 1)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description,
		priority = EXCLUDED.priority`,

	`INSERT INTO vouchers (id, name, code, usage, start_at, end_at) VALUES
		(1, 'Summer promotion', 'SUMMER15', 'Multi-use',
			now() - INTERVAL '30 days', now() + INTERVAL '30 days')
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, code = EXCLUDED.code, usage = EXCLUDED.usage,
		start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at`,

	`INSERT INTO voucher_offers (voucher_id, offer_id) VALUES (1, 4)
	ON CONFLICT DO NOTHING`,
}

// Seed inserts the demo data set.
func Seed(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool) error {
	for i, stmt := range seedStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "seed statement %d", i+1)
		}
	}
	lg.Info("Seeded demo data",
		zap.Int("statements", len(seedStatements)))
	return nil
}
