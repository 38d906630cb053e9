package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/offer"
)

const (
	offerColumns = `id, name, description, offer_type, status, priority,
		start_at, end_at,
		condition_kind, condition_range_id, condition_value,
		benefit_kind, benefit_range_id, benefit_value, benefit_max_affected_items,
		max_global_applications, max_user_applications, max_basket_applications,
		max_discount, num_applications, num_orders, total_discount`

	activeSiteOffersSQL = `SELECT ` + offerColumns + ` FROM offers
		WHERE offer_type = 'Site' AND status = 'Open'
			AND (start_at IS NULL OR start_at <= $1)
			AND (end_at IS NULL OR end_at >= $1)
		ORDER BY priority DESC, id`

	getOfferSQL = `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	lockOfferSQL = getOfferSQL + ` FOR UPDATE`

	saveOfferSQL = `UPDATE offers
		SET status = $2, num_applications = $3, num_orders = $4, total_discount = $5
		WHERE id = $1`

	bumpUserApplicationsSQL = `INSERT INTO offer_user_applications (offer_id, user_id, applications)
		VALUES ($1, $2, $3)
		ON CONFLICT (offer_id, user_id)
		DO UPDATE SET applications = offer_user_applications.applications + EXCLUDED.applications`
)

var _ offer.Repository = (*OfferRepository)(nil)

// OfferRepository implements offer.Repository backed by PostgreSQL.
type OfferRepository struct {
	pool   *pgxpool.Pool
	ranges *RangeRepository
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool, ranges: NewRangeRepository(pool)}
}

// offerRow is the flat scan target before range hydration.
type offerRow struct {
	offer            offer.ConditionalOffer
	condition        offer.Condition
	benefit          offer.Benefit
	conditionRangeID *int64
	benefitRangeID   *int64
}

// ActiveSiteOffers returns the open site offers available at the given
// time, hydrated and sorted by priority descending. Offers failing
// validation are excluded rather than let into a pass.
func (r *OfferRepository) ActiveSiteOffers(ctx context.Context, at time.Time) ([]*offer.ConditionalOffer, error) {
	rows, err := r.pool.Query(ctx, activeSiteOffersSQL, at)
	if err != nil {
		return nil, fmt.Errorf("loading active site offers: %w", err)
	}
	raw, err := pgx.CollectRows(rows, scanOfferRow)
	if err != nil {
		return nil, fmt.Errorf("loading active site offers: %w", err)
	}

	// Hydrate ranges once per distinct ID across the whole batch.
	cache := make(map[int64]*offer.Range)
	offers := make([]*offer.ConditionalOffer, 0, len(raw))
	for _, row := range raw {
		o, err := r.hydrate(ctx, row, cache)
		if err != nil {
			return nil, err
		}
		if err := o.Validate(); err != nil {
			continue
		}
		offers = append(offers, o)
	}
	return offers, nil
}

// GetByID returns one offer, fully hydrated. Returns offer.ErrNotFound
// for unknown identifiers.
func (r *OfferRepository) GetByID(ctx context.Context, id int64) (*offer.ConditionalOffer, error) {
	rows, err := r.pool.Query(ctx, getOfferSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading offer %d: %w", id, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, scanOfferRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(offer.ErrNotFound, "offer %d", id)
		}
		return nil, fmt.Errorf("loading offer %d: %w", id, err)
	}
	return r.hydrate(ctx, row, make(map[int64]*offer.Range))
}

// Save persists the offer's mutable state.
func (r *OfferRepository) Save(ctx context.Context, o *offer.ConditionalOffer) error {
	_, err := r.pool.Exec(ctx, saveOfferSQL,
		o.ID, o.Status, o.NumApplications, o.NumOrders, o.TotalDiscount)
	if err != nil {
		return fmt.Errorf("saving offer %d: %w", o.ID, err)
	}
	return nil
}

// RecordUsage folds a settled application into the stored offer totals
// and the per-user count, atomically. The offer row is locked for the
// duration so concurrent checkouts serialize their updates.
func (r *OfferRepository) RecordUsage(ctx context.Context, app offer.Application, userID string) error {
	if app.Frequency == 0 {
		return nil
	}
	offerID := app.Offer.ID

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recording usage for offer %d: %w", offerID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, lockOfferSQL, offerID)
	if err != nil {
		return fmt.Errorf("locking offer %d: %w", offerID, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, scanOfferRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.Wrapf(offer.ErrNotFound, "offer %d", offerID)
		}
		return fmt.Errorf("locking offer %d: %w", offerID, err)
	}

	// Totals and status are rederived on the stored row, not the
	// in-memory offer, so stale pass snapshots cannot roll counters back.
	stored := row.offer
	stored.RecordUsage(offer.Application{Frequency: app.Frequency, Discount: app.Discount})

	if _, err := tx.Exec(ctx, saveOfferSQL,
		stored.ID, stored.Status, stored.NumApplications, stored.NumOrders, stored.TotalDiscount); err != nil {
		return fmt.Errorf("updating offer %d totals: %w", offerID, err)
	}

	if userID != "" {
		if _, err := tx.Exec(ctx, bumpUserApplicationsSQL, offerID, userID, app.Frequency); err != nil {
			return fmt.Errorf("updating user applications for offer %d: %w", offerID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("recording usage for offer %d: %w", offerID, err)
	}
	return nil
}

func scanOfferRow(row pgx.CollectableRow) (offerRow, error) {
	var (
		r     offerRow
		start *time.Time
		end   *time.Time
	)
	err := row.Scan(
		&r.offer.ID, &r.offer.Name, &r.offer.Description, &r.offer.Type, &r.offer.Status, &r.offer.Priority,
		&start, &end,
		&r.condition.Kind, &r.conditionRangeID, &r.condition.Value,
		&r.benefit.Kind, &r.benefitRangeID, &r.benefit.Value, &r.benefit.MaxAffectedItems,
		&r.offer.MaxGlobalApplications, &r.offer.MaxUserApplications, &r.offer.MaxBasketApplications,
		&r.offer.MaxDiscount, &r.offer.NumApplications, &r.offer.NumOrders, &r.offer.TotalDiscount,
	)
	r.offer.Start = start
	r.offer.End = end
	return r, err
}

func (r *OfferRepository) hydrate(ctx context.Context, row offerRow, cache map[int64]*offer.Range) (*offer.ConditionalOffer, error) {
	o := row.offer
	cond := row.condition
	bn := row.benefit

	var err error
	if row.conditionRangeID != nil {
		if cond.Range, err = r.cachedRange(ctx, *row.conditionRangeID, cache); err != nil {
			return nil, err
		}
	}
	if row.benefitRangeID != nil {
		if bn.Range, err = r.cachedRange(ctx, *row.benefitRangeID, cache); err != nil {
			return nil, err
		}
	}

	o.Condition = &cond
	o.Benefit = &bn
	return &o, nil
}

func (r *OfferRepository) cachedRange(ctx context.Context, id int64, cache map[int64]*offer.Range) (*offer.Range, error) {
	if rng, ok := cache[id]; ok {
		return rng, nil
	}
	rng, err := r.ranges.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = rng
	return rng, nil
}
