//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/domain/catalogue"
	"github.com/xenking/promo-engine/internal/domain/offer"
	"github.com/xenking/promo-engine/internal/repository"
)

func TestOfferRepository_ActiveSiteOffers(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOfferRepository(pool)

	offers, err := repo.ActiveSiteOffers(ctx, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, offers)

	// Priority descending.
	for i := 1; i < len(offers); i++ {
		assert.GreaterOrEqual(t, offers[i-1].Priority, offers[i].Priority)
	}
	// Voucher offers never show up in the site source.
	for _, o := range offers {
		assert.Equal(t, offer.TypeSite, o.Type)
		assert.NoError(t, o.Validate())
	}
}

func TestOfferRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOfferRepository(pool)

	o, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Shirt multibuy", o.Name)
	assert.Equal(t, offer.ConditionCount, o.Condition.Kind)
	require.NotNil(t, o.Condition.Range)
	assert.Equal(t, offer.BenefitPercentage, o.Benefit.Kind)
	assert.Equal(t, 1, o.Benefit.MaxAffectedItems)

	// The shirts range matches via category ancestry.
	shirt := &catalogue.Product{
		ID:             101,
		ClassID:        1,
		Categories:     []catalogue.Category{catalogue.NewCategory(11, 1, 10)},
		IsDiscountable: true,
	}
	assert.True(t, o.Condition.Range.Contains(shirt))

	_, err = repo.GetByID(ctx, 99999)
	require.ErrorIs(t, err, offer.ErrNotFound)
}

func TestOfferRepository_RecordUsage(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOfferRepository(pool)

	before, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)

	app := offer.Application{
		Offer:     before,
		Frequency: 1,
		Discount:  decimal.RequireFromString("3.50"),
	}
	require.NoError(t, repo.RecordUsage(ctx, app, "integration-user"))

	after, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, before.NumApplications+1, after.NumApplications)
	assert.Equal(t, before.NumOrders+1, after.NumOrders)
	assert.True(t, after.TotalDiscount.Equal(before.TotalDiscount.Add(app.Discount)))

	apps, err := repository.NewUsageRepository(pool).UserApplications(ctx, "integration-user")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, apps[2], 1)
}
