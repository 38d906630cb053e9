package voucher

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/domain/basket"
	"github.com/xenking/promo-engine/internal/domain/offer"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func activeVoucher(code string, usage Usage, offers ...*offer.ConditionalOffer) *Voucher {
	return &Voucher{
		ID:     1,
		Name:   code,
		Code:   code,
		Usage:  usage,
		Start:  now.Add(-24 * time.Hour),
		End:    now.Add(24 * time.Hour),
		Offers: offers,
	}
}

func TestVoucher_IsActive(t *testing.T) {
	v := activeVoucher("SUMMER10", UsageMulti)

	assert.True(t, v.IsActive(now))
	assert.True(t, v.IsActive(v.Start))
	assert.True(t, v.IsActive(v.End))
	assert.False(t, v.IsActive(v.Start.Add(-time.Second)))
	assert.False(t, v.IsActive(v.End.Add(time.Second)))
}

func TestVoucher_IsAvailable(t *testing.T) {
	tests := []struct {
		name       string
		usage      Usage
		red        Redemptions
		want       bool
		wantReason string
	}{
		{"multi use always available", UsageMulti, Redemptions{Total: 50, ByUser: 5}, true, ""},
		{"single use fresh", UsageSingle, Redemptions{}, true, ""},
		{"single use spent", UsageSingle, Redemptions{Total: 1}, false, "This voucher has already been used"},
		{"once per customer fresh for this user", UsageOncePerCustomer, Redemptions{Total: 9}, true, ""},
		{"once per customer spent by this user", UsageOncePerCustomer, Redemptions{Total: 9, ByUser: 1}, false, "You have already used this voucher in a previous order"},
		{"unknown policy", Usage("Weekly"), Redemptions{}, false, "This voucher cannot be redeemed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := activeVoucher("CODE", tt.usage)
			ok, reason := v.IsAvailable(tt.red)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestVoucher_RecordUsage(t *testing.T) {
	v := activeVoucher("CODE", UsageMulti)
	v.RecordUsage()
	v.RecordUsage()
	v.RecordDiscount(decimal.RequireFromString("4.20"))
	v.RecordDiscount(decimal.RequireFromString("1.00"))

	assert.Equal(t, 2, v.NumOrders)
	assert.True(t, decimal.RequireFromString("5.20").Equal(v.TotalDiscount))
}

func TestBasketOffers(t *testing.T) {
	off1 := &offer.ConditionalOffer{ID: 1, Type: offer.TypeVoucher}
	off2 := &offer.ConditionalOffer{ID: 2, Type: offer.TypeVoucher}
	off3 := &offer.ConditionalOffer{ID: 3, Type: offer.TypeVoucher}

	active := activeVoucher("ACTIVE", UsageMulti, off1, off2)
	expired := activeVoucher("EXPIRED", UsageMulti, off3)
	expired.End = now.Add(-time.Hour)
	spent := activeVoucher("SPENT", UsageSingle, off3)

	lookup := func(code string) (*Voucher, Redemptions, error) {
		switch code {
		case "ACTIVE":
			return active, Redemptions{}, nil
		case "EXPIRED":
			return expired, Redemptions{}, nil
		case "SPENT":
			return spent, Redemptions{Total: 1}, nil
		case "BROKEN":
			return nil, Redemptions{}, errors.New("connection reset")
		default:
			return nil, Redemptions{}, ErrNotFound
		}
	}

	t.Run("eligible voucher contributes its tagged offers", func(t *testing.T) {
		b := &basket.Basket{VoucherCodes: []string{"ACTIVE"}}
		got, err := BasketOffers(b, now, lookup)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Same(t, off1, got[0])
		assert.Same(t, off2, got[1])
		assert.Equal(t, "ACTIVE", got[0].VoucherCode())
		assert.Equal(t, "ACTIVE", got[1].VoucherCode())
	})

	t.Run("unknown, expired and spent codes contribute nothing", func(t *testing.T) {
		b := &basket.Basket{VoucherCodes: []string{"NOPE", "EXPIRED", "SPENT"}}
		got, err := BasketOffers(b, now, lookup)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("lookup failures other than not-found propagate", func(t *testing.T) {
		b := &basket.Basket{VoucherCodes: []string{"BROKEN"}}
		_, err := BasketOffers(b, now, lookup)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `resolve voucher "BROKEN"`)
	})

	t.Run("no codes yields no offers", func(t *testing.T) {
		got, err := BasketOffers(&basket.Basket{}, now, lookup)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
