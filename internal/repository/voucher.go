package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/voucher"
)

const (
	findVoucherSQL = `SELECT id, name, code, usage, start_at, end_at,
			num_basket_additions, num_orders, total_discount
		FROM vouchers WHERE UPPER(code) = UPPER($1)`

	voucherOfferIDsSQL = `SELECT offer_id FROM voucher_offers WHERE voucher_id = $1 ORDER BY offer_id`

	voucherRedemptionsSQL = `SELECT COUNT(*), COUNT(*) FILTER (WHERE user_id = $2)
		FROM voucher_redemptions WHERE voucher_id = $1`

	insertRedemptionSQL = `INSERT INTO voucher_redemptions (voucher_id, user_id, order_ref)
		VALUES ($1, $2, $3)`

	bumpVoucherOrdersSQL = `UPDATE vouchers SET num_orders = num_orders + 1 WHERE id = $1`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool   *pgxpool.Pool
	offers *OfferRepository
}

// NewVoucherRepository returns a VoucherRepository that uses the given
// pool and hydrates linked offers through offers.
func NewVoucherRepository(pool *pgxpool.Pool, offers *OfferRepository) *VoucherRepository {
	return &VoucherRepository{pool: pool, offers: offers}
}

// FindByCode resolves a code (case-insensitive) to its voucher with
// linked offers hydrated, plus the redemption counts for the given user.
// Returns voucher.ErrNotFound for unknown codes.
func (r *VoucherRepository) FindByCode(ctx context.Context, code, userID string) (*voucher.Voucher, voucher.Redemptions, error) {
	var red voucher.Redemptions

	rows, err := r.pool.Query(ctx, findVoucherSQL, code)
	if err != nil {
		return nil, red, fmt.Errorf("finding voucher %q: %w", code, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, red, errors.Wrapf(voucher.ErrNotFound, "code %q", code)
		}
		return nil, red, fmt.Errorf("finding voucher %q: %w", code, err)
	}

	rows, err = r.pool.Query(ctx, voucherOfferIDsSQL, v.ID)
	if err != nil {
		return nil, red, fmt.Errorf("loading offers for voucher %q: %w", code, err)
	}
	offerIDs, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, red, fmt.Errorf("loading offers for voucher %q: %w", code, err)
	}
	for _, id := range offerIDs {
		o, err := r.offers.GetByID(ctx, id)
		if err != nil {
			return nil, red, fmt.Errorf("loading offer %d for voucher %q: %w", id, code, err)
		}
		v.Offers = append(v.Offers, o)
	}

	err = r.pool.QueryRow(ctx, voucherRedemptionsSQL, v.ID, userID).Scan(&red.Total, &red.ByUser)
	if err != nil {
		return nil, red, fmt.Errorf("counting redemptions for voucher %q: %w", code, err)
	}
	return v, red, nil
}

// RecordRedemption notes one completed order redeeming the voucher.
func (r *VoucherRepository) RecordRedemption(ctx context.Context, voucherID int64, userID, orderRef string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recording redemption of voucher %d: %w", voucherID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertRedemptionSQL, voucherID, userID, orderRef); err != nil {
		return fmt.Errorf("recording redemption of voucher %d: %w", voucherID, err)
	}
	if _, err := tx.Exec(ctx, bumpVoucherOrdersSQL, voucherID); err != nil {
		return fmt.Errorf("updating voucher %d totals: %w", voucherID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("recording redemption of voucher %d: %w", voucherID, err)
	}
	return nil
}

func scanVoucher(row pgx.CollectableRow) (*voucher.Voucher, error) {
	var v voucher.Voucher
	err := row.Scan(
		&v.ID, &v.Name, &v.Code, &v.Usage, &v.Start, &v.End,
		&v.NumBasketAdditions, &v.NumOrders, &v.TotalDiscount,
	)
	return &v, err
}
