package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/offer"
)

const userApplicationsSQL = `SELECT offer_id, applications
	FROM offer_user_applications WHERE user_id = $1`

var _ offer.UsageRepository = (*UsageRepository)(nil)

// UsageRepository resolves per-user application counts from PostgreSQL.
// The host fetches the whole snapshot once per pass so cap checks inside
// the engine never hit the database.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// UserApplications returns offer ID to past application count for one user.
func (r *UsageRepository) UserApplications(ctx context.Context, userID string) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, userApplicationsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("loading applications for user %q: %w", userID, err)
	}

	apps := make(map[int64]int)
	type appRow struct {
		OfferID      int64
		Applications int
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByPos[appRow])
	if err != nil {
		return nil, fmt.Errorf("loading applications for user %q: %w", userID, err)
	}
	for _, a := range collected {
		apps[a.OfferID] = a.Applications
	}
	return apps, nil
}
