package offer

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain/basket"
)

// Offers holds the candidate offers for one application pass, already
// fetched and partitioned by source. The host resolves all four sources
// before the pass starts; the applicator never fetches anything itself.
type Offers struct {
	Session []*ConditionalOffer
	Basket  []*ConditionalOffer
	User    []*ConditionalOffer
	Site    []*ConditionalOffer
}

// Sorted merges the four sources into application order: priority
// descending, ties broken by source precedence (session, basket, user,
// site) and then original fetch order. The sort is stable, so the result
// is deterministic for a fixed input.
func (o Offers) Sorted() []*ConditionalOffer {
	merged := make([]*ConditionalOffer, 0,
		len(o.Session)+len(o.Basket)+len(o.User)+len(o.Site))
	merged = append(merged, o.Session...)
	merged = append(merged, o.Basket...)
	merged = append(merged, o.User...)
	merged = append(merged, o.Site...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Priority > merged[j].Priority
	})
	return merged
}

// LineDiscount is the settled discount on one basket line.
type LineDiscount struct {
	Line     *basket.Line
	Amount   decimal.Decimal
	Quantity int
}

// Settlement is the outcome of one application pass: the per-line
// discounts, the shipping discount, triggered post-order actions, and the
// per-offer application records for receipts and usage recording.
type Settlement struct {
	Applications     []Application
	LineDiscounts    []LineDiscount
	ShippingDiscount decimal.Decimal
	PostOrderActions []string
	TotalDiscount    decimal.Decimal
}

// Applicator runs application passes. It holds no per-basket state, so a
// single Applicator may serve concurrent passes over distinct baskets.
type Applicator struct {
	lg *zap.Logger
}

// NewApplicator returns an Applicator logging through lg. A nil logger
// disables logging.
func NewApplicator(lg *zap.Logger) *Applicator {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Applicator{lg: lg}
}

// Apply runs one pass of the given offers over the basket snapshot.
//
// Offers apply in Sorted order. Each offer is reapplied until it fails,
// reports a final result, or reaches its per-pass application cap. A
// failing offer never blocks the rest of the pass; an offer observing a
// bookkeeping invariant violation is aborted and logged, and the pass
// continues with the next offer.
func (a *Applicator) Apply(b *basket.Basket, u *User, offers Offers) *Settlement {
	b.ResetOfferState()

	s := &Settlement{ShippingDiscount: decimal.Zero, TotalDiscount: decimal.Zero}
	for _, off := range offers.Sorted() {
		app := Application{Offer: off, Discount: decimal.Zero}
		maxApps := off.MaxApplications(u)
		for i := 0; i < maxApps; i++ {
			result, err := off.ApplyBenefit(b)
			if err != nil {
				a.lg.Error("offer application aborted",
					zap.Int64("offer_id", off.ID),
					zap.String("offer", off.Name),
					zap.Error(err))
				break
			}
			if !result.IsSuccessful() {
				break
			}
			app.Result = result
			app.Frequency++
			switch r := result.(type) {
			case BasketDiscount:
				app.Discount = app.Discount.Add(r.Amount)
			case ShippingDiscount:
				// Shipping discounts stack against the remaining charge,
				// never below zero.
				remaining := b.ShippingCharge.Sub(s.ShippingDiscount)
				granted := decimal.Min(r.Amount, remaining)
				s.ShippingDiscount = s.ShippingDiscount.Add(granted)
				app.Discount = app.Discount.Add(granted)
			case PostOrderAction:
				s.PostOrderActions = append(s.PostOrderActions, r.Description)
			}
			if result.IsFinal() {
				break
			}
		}
		if app.Frequency > 0 {
			s.Applications = append(s.Applications, app)
		}
	}

	// Settle per-line discounts in basket order.
	for _, line := range b.AllLines() {
		if !line.DiscountValue().IsPositive() {
			continue
		}
		s.LineDiscounts = append(s.LineDiscounts, LineDiscount{
			Line:     line,
			Amount:   line.DiscountValue(),
			Quantity: line.QuantityWithDiscount(),
		})
		s.TotalDiscount = s.TotalDiscount.Add(line.DiscountValue())
	}
	s.TotalDiscount = s.TotalDiscount.Add(s.ShippingDiscount)

	return s
}
