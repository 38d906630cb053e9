// Package offer implements the promotion rule engine: product ranges,
// offer conditions and benefits, conditional offers with availability
// windows and usage caps, and the applicator that runs one application
// pass over a basket snapshot.
//
// The engine is pure decision logic over in-memory data. Offers, usage
// counts, and basket contents are resolved by the host application before
// a pass starts; nothing in this package performs I/O.
package offer

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/basket"
)

// Type partitions offers by how a shopper obtains them.
type Type string

const (
	// TypeSite offers are available to everyone.
	TypeSite Type = "Site"
	// TypeVoucher offers activate once a voucher code is in the basket.
	TypeVoucher Type = "Voucher"
	// TypeUser offers are linked to particular users.
	TypeUser Type = "User"
	// TypeSession offers are temporary, granted for one session.
	TypeSession Type = "Session"
)

// Status is an offer's lifecycle state. StatusConsumed is derived from the
// usage caps, never set directly.
type Status string

const (
	StatusOpen      Status = "Open"
	StatusSuspended Status = "Suspended"
	StatusConsumed  Status = "Consumed"
)

// ErrNotFound is returned by offer lookups for unknown identifiers.
var ErrNotFound = errors.New("offer not found")

// User identifies a shopper together with the per-offer usage counts the
// host prefetched for this pass. Caps are always evaluated against this
// snapshot, never against live queries.
type User struct {
	ID string

	// OfferApplications maps offer ID to the number of times this user
	// has already had that offer applied across past orders.
	OfferApplications map[int64]int
}

func (u *User) applicationsOf(offerID int64) int {
	if u == nil {
		return 0
	}
	return u.OfferApplications[offerID]
}

// Restriction describes one availability constraint for UI rendering.
type Restriction struct {
	Description string
	IsSatisfied bool
}

// ConditionalOffer binds a condition to a benefit with priority,
// availability window, and usage caps.
type ConditionalOffer struct {
	ID          int64
	Name        string
	Description string
	Type        Type
	Status      Status

	Condition *Condition
	Benefit   *Benefit

	// Priority orders application; higher priority offers apply first.
	Priority int

	// Availability window. A nil bound is unbounded on that side.
	Start *time.Time
	End   *time.Time

	// Caps. Zero means uncapped. MaxDiscount is a spend ceiling across
	// the offer's whole lifetime.
	MaxGlobalApplications int
	MaxUserApplications   int
	MaxBasketApplications int
	MaxDiscount           decimal.Decimal

	// Running totals maintained through RecordUsage.
	NumApplications int
	NumOrders       int
	TotalDiscount   decimal.Decimal

	voucherCode string
}

// IsOpen reports whether the offer is in the open state.
func (o *ConditionalOffer) IsOpen() bool { return o.Status == StatusOpen }

// IsSuspended reports whether the offer has been suspended.
func (o *ConditionalOffer) IsSuspended() bool { return o.Status == StatusSuspended }

// Suspend takes the offer out of circulation until Unsuspend.
func (o *ConditionalOffer) Suspend() {
	o.Status = StatusSuspended
}

// Unsuspend returns the offer to circulation, rederiving whether its caps
// have already consumed it.
func (o *ConditionalOffer) Unsuspend() {
	o.Status = StatusOpen
	o.RefreshStatus()
}

// RefreshStatus rederives the Open/Consumed state from the usage caps.
// Suspension is sticky and only lifted by Unsuspend. Call after any
// usage-recording event and before persisting the offer.
func (o *ConditionalOffer) RefreshStatus() {
	if o.IsSuspended() {
		return
	}
	if o.MaxApplications(nil) == 0 {
		o.Status = StatusConsumed
	} else {
		o.Status = StatusOpen
	}
}

// IsAvailable reports whether the offer can be used at the given time by
// the given user (nil for anonymous shoppers).
func (o *ConditionalOffer) IsAvailable(u *User, at time.Time) bool {
	if o.IsSuspended() {
		return false
	}
	if o.Start != nil && o.Start.After(at) {
		return false
	}
	if o.End != nil && at.After(*o.End) {
		return false
	}
	return o.MaxApplications(u) > 0
}

// MaxApplications returns how many times the offer may still be applied
// within one basket pass for the given user. Zero means the offer is
// exhausted. The result is the minimum over all configured caps, bounded
// by a large sentinel when nothing else applies.
func (o *ConditionalOffer) MaxApplications(u *User) int {
	if o.MaxDiscount.IsPositive() && o.TotalDiscount.GreaterThanOrEqual(o.MaxDiscount) {
		return 0
	}
	limit := maxAffectedItemsSentinel
	if o.MaxUserApplications > 0 && u != nil {
		if n := o.MaxUserApplications - u.applicationsOf(o.ID); n < limit {
			limit = max(0, n)
		}
	}
	if o.MaxBasketApplications > 0 && o.MaxBasketApplications < limit {
		limit = o.MaxBasketApplications
	}
	if o.MaxGlobalApplications > 0 {
		if n := o.MaxGlobalApplications - o.NumApplications; n < limit {
			limit = max(0, n)
		}
	}
	return limit
}

// IsConditionSatisfied reports whether the basket meets the offer's condition.
func (o *ConditionalOffer) IsConditionSatisfied(b *basket.Basket) bool {
	return o.Condition.IsSatisfied(o, b)
}

// IsConditionPartiallySatisfied reports partial satisfaction for upselling.
func (o *ConditionalOffer) IsConditionPartiallySatisfied(b *basket.Basket) bool {
	return o.Condition.IsPartiallySatisfied(o, b)
}

// UpsellMessage returns the condition's upsell hint, if any.
func (o *ConditionalOffer) UpsellMessage(b *basket.Basket) string {
	return o.Condition.UpsellMessage(o, b)
}

// ApplyBenefit applies the offer's benefit once the condition is
// satisfied. An unsatisfied condition yields NoEffect and touches nothing.
func (o *ConditionalOffer) ApplyBenefit(b *basket.Basket) (ApplicationResult, error) {
	if !o.IsConditionSatisfied(b) {
		return NoEffect{}, nil
	}
	return o.Benefit.Apply(b, o.Condition, o)
}

// ShippingDiscountAmount returns the discount the offer's benefit grants
// off the given shipping charge.
func (o *ConditionalOffer) ShippingDiscountAmount(charge decimal.Decimal) decimal.Decimal {
	return o.Benefit.ShippingDiscountAmount(charge)
}

// Application aggregates one offer's results within a settlement: how many
// times it applied and the discount it produced.
type Application struct {
	Offer     *ConditionalOffer
	Result    ApplicationResult
	Frequency int
	Discount  decimal.Decimal
}

// RecordUsage folds a settled application into the offer's running totals.
// The host calls this once per completed checkout, under whatever
// serialization it uses for concurrent orders, then persists the offer.
func (o *ConditionalOffer) RecordUsage(app Application) {
	o.NumApplications += app.Frequency
	o.TotalDiscount = o.TotalDiscount.Add(app.Discount)
	o.NumOrders++
	o.RefreshStatus()
}

// SetVoucherCode attaches the voucher code this offer was activated by.
func (o *ConditionalOffer) SetVoucherCode(code string) { o.voucherCode = code }

// VoucherCode returns the code the offer was activated by, or "".
func (o *ConditionalOffer) VoucherCode() string { return o.voucherCode }

// Validate checks the cross-field invariants of the offer and its parts.
// Offers failing validation are configuration errors: the loader excludes
// them from the active set instead of letting them into a pass.
func (o *ConditionalOffer) Validate() error {
	if o.Condition == nil {
		return errors.New("offer has no condition")
	}
	if o.Benefit == nil {
		return errors.New("offer has no benefit")
	}
	if o.Start != nil && o.End != nil && o.Start.After(*o.End) {
		return errors.New("offer end date precedes start date")
	}
	if o.Condition.Custom == nil {
		switch o.Condition.Kind {
		case ConditionNone:
		case ConditionCount, ConditionValue, ConditionCoverage:
			if o.Condition.Range == nil {
				return errors.Errorf("%s conditions require a product range", o.Condition.Kind)
			}
			if !o.Condition.Value.IsPositive() {
				return errors.Errorf("%s conditions require a positive value", o.Condition.Kind)
			}
		default:
			return errors.Errorf("unrecognised condition kind %q", o.Condition.Kind)
		}
	}
	if err := o.Benefit.Validate(); err != nil {
		return errors.Wrap(err, "benefit")
	}
	return nil
}

// AvailabilityRestrictions returns the offer's availability constraints in
// a structured form for UI rendering. Amounts are rendered with plain
// two-decimal formatting; currency localization belongs to the host.
func (o *ConditionalOffer) AvailabilityRestrictions(at time.Time) []Restriction {
	var rs []Restriction
	if o.IsSuspended() {
		rs = append(rs, Restriction{Description: "Offer is suspended", IsSatisfied: false})
	}
	if o.MaxGlobalApplications > 0 {
		remaining := o.MaxGlobalApplications - o.NumApplications
		rs = append(rs, Restriction{
			Description: fmt.Sprintf("Limited to %d uses (%d remaining)", o.MaxGlobalApplications, remaining),
			IsSatisfied: remaining > 0,
		})
	}
	if o.MaxUserApplications > 0 {
		desc := fmt.Sprintf("Limited to %d uses per user", o.MaxUserApplications)
		if o.MaxUserApplications == 1 {
			desc = "Limited to 1 use per user"
		}
		rs = append(rs, Restriction{Description: desc, IsSatisfied: true})
	}
	if o.MaxBasketApplications > 0 {
		desc := fmt.Sprintf("Limited to %d uses per basket", o.MaxBasketApplications)
		if o.MaxBasketApplications == 1 {
			desc = "Limited to 1 use per basket"
		}
		rs = append(rs, Restriction{Description: desc, IsSatisfied: true})
	}
	switch {
	case o.Start != nil && o.End != nil:
		rs = append(rs, Restriction{
			Description: fmt.Sprintf("Available between %s and %s",
				o.Start.Format("2 Jan 2006"), o.End.Format("2 Jan 2006")),
			IsSatisfied: !o.Start.After(at) && !at.After(*o.End),
		})
	case o.Start != nil:
		rs = append(rs, Restriction{
			Description: fmt.Sprintf("Available from %s", o.Start.Format("2 Jan 2006")),
			IsSatisfied: !o.Start.After(at),
		})
	case o.End != nil:
		rs = append(rs, Restriction{
			Description: fmt.Sprintf("Available until %s", o.End.Format("2 Jan 2006")),
			IsSatisfied: !at.After(*o.End),
		})
	}
	if o.MaxDiscount.IsPositive() {
		rs = append(rs, Restriction{
			Description: fmt.Sprintf("Limited to a cost of %s", o.MaxDiscount.StringFixed(2)),
			IsSatisfied: o.TotalDiscount.LessThan(o.MaxDiscount),
		})
	}
	return rs
}
