// Package voucher models the codes that activate voucher-type offers.
// A voucher is the shopper-facing handle; the discounts themselves are
// ordinary conditional offers linked to it.
package voucher

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/basket"
	"github.com/xenking/promo-engine/internal/domain/offer"
)

// Usage is a voucher's redemption policy.
type Usage string

const (
	// UsageSingle vouchers can be redeemed once, by anyone.
	UsageSingle Usage = "Single use"
	// UsageMulti vouchers can be redeemed any number of times.
	UsageMulti Usage = "Multi-use"
	// UsageOncePerCustomer vouchers can be redeemed once per customer.
	UsageOncePerCustomer Usage = "Once per customer"
)

// ErrNotFound is returned by voucher lookups for unknown codes.
var ErrNotFound = errors.New("voucher not found")

// Voucher is a named redemption code linked to one or more offers.
type Voucher struct {
	ID    int64
	Name  string
	Code  string
	Usage Usage

	Start time.Time
	End   time.Time

	Offers []*offer.ConditionalOffer

	// Running totals maintained by the host at checkout.
	NumBasketAdditions int
	NumOrders          int
	TotalDiscount      decimal.Decimal
}

// Redemptions is the prefetched redemption state for one voucher and one
// requesting user. Like offer usage caps, it is resolved by the host
// before a pass so availability never depends on a live query.
type Redemptions struct {
	// Total counts redemptions by anyone.
	Total int
	// ByUser counts redemptions by the requesting user.
	ByUser int
}

// IsActive reports whether the voucher's validity window covers at.
func (v *Voucher) IsActive(at time.Time) bool {
	return !v.Start.After(at) && !at.After(v.End)
}

// IsAvailable reports whether the voucher's usage policy still permits a
// redemption, with a shopper-facing reason when it does not.
func (v *Voucher) IsAvailable(r Redemptions) (bool, string) {
	switch v.Usage {
	case UsageSingle:
		if r.Total > 0 {
			return false, "This voucher has already been used"
		}
	case UsageOncePerCustomer:
		if r.ByUser > 0 {
			return false, "You have already used this voucher in a previous order"
		}
	case UsageMulti:
	default:
		return false, "This voucher cannot be redeemed"
	}
	return true, ""
}

// RecordUsage notes one completed order redeeming this voucher.
func (v *Voucher) RecordUsage() {
	v.NumOrders++
}

// RecordDiscount folds an order's voucher discount into the running total.
func (v *Voucher) RecordDiscount(amount decimal.Decimal) {
	v.TotalDiscount = v.TotalDiscount.Add(amount)
}

// Lookup resolves a code to its voucher and the prefetched redemption
// state for the requesting user. Implementations return ErrNotFound for
// unknown codes.
type Lookup func(code string) (*Voucher, Redemptions, error)

// BasketOffers assembles the voucher-linked offer source for one pass from
// the codes attached to the basket. Inactive, exhausted, and unknown
// vouchers contribute nothing; offers from an eligible voucher are tagged
// with the code that activated them.
func BasketOffers(b *basket.Basket, at time.Time, lookup Lookup) ([]*offer.ConditionalOffer, error) {
	var out []*offer.ConditionalOffer
	for _, code := range b.VoucherCodes {
		v, red, err := lookup(code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, errors.Wrapf(err, "resolve voucher %q", code)
		}
		if !v.IsActive(at) {
			continue
		}
		if ok, _ := v.IsAvailable(red); !ok {
			continue
		}
		for _, off := range v.Offers {
			off.SetVoucherCode(v.Code)
			out = append(out, off)
		}
	}
	return out, nil
}
