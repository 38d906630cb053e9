package offer

import (
	"context"
	"time"
)

// Repository loads and persists conditional offers. Lookups return
// ErrNotFound for unknown identifiers.
type Repository interface {
	// ActiveSiteOffers returns the site offers available at the given
	// time, fully hydrated with their conditions, benefits, and ranges,
	// sorted by priority descending.
	ActiveSiteOffers(ctx context.Context, at time.Time) ([]*ConditionalOffer, error)

	// GetByID returns one offer, fully hydrated.
	GetByID(ctx context.Context, id int64) (*ConditionalOffer, error)

	// Save persists the offer's mutable state (status, running totals).
	Save(ctx context.Context, o *ConditionalOffer) error

	// RecordUsage atomically folds a settled application into the offer's
	// stored totals and the per-user application count.
	RecordUsage(ctx context.Context, app Application, userID string) error
}

// UsageRepository resolves the per-user usage snapshot an application
// pass evaluates caps against.
type UsageRepository interface {
	// UserApplications returns offer ID to past application count for
	// one user.
	UserApplications(ctx context.Context, userID string) (map[int64]int, error)
}
