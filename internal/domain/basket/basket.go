// Package basket models the basket snapshot one application pass operates
// on. Lines carry two independent per-pass counters: units consumed by a
// satisfied condition and units discounted by a benefit. Both are scratch
// state; they are reset at the start of a pass and never persisted.
package basket

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/catalogue"
)

// ErrOverDiscount is returned when a discount is applied to more units
// than a line still has undiscounted. It signals corrupted bookkeeping,
// never a normal "offer does not apply" outcome.
var ErrOverDiscount = errors.New("discount exceeds remaining line quantity")

// Line is one basket line.
type Line struct {
	ID             int64
	Product        *catalogue.Product
	UnitPrice      decimal.Decimal
	Quantity       int
	HasStockRecord bool

	// Per-pass scratch state.
	consumed      int // units claimed by a satisfied condition
	discountedQty int // units discounted by a benefit
	discount      decimal.Decimal
}

// Consume marks up to qty units as consumed by a condition. The counter
// is clamped so it never exceeds the line quantity, and negative input is
// ignored, so repeated calls are safe.
func (l *Line) Consume(qty int) {
	if qty <= 0 {
		return
	}
	l.consumed += qty
	if l.consumed > l.Quantity {
		l.consumed = l.Quantity
	}
}

// QuantityUnconsumed returns the units still available to satisfy a
// condition in this pass.
func (l *Line) QuantityUnconsumed() int {
	return l.Quantity - l.consumed
}

// QuantityConsumed returns the units already claimed by conditions.
func (l *Line) QuantityConsumed() int {
	return l.consumed
}

// QuantityWithoutDiscount returns the units a benefit may still discount.
func (l *Line) QuantityWithoutDiscount() int {
	return l.Quantity - l.discountedQty
}

// QuantityWithDiscount returns the units already discounted by benefits.
func (l *Line) QuantityWithDiscount() int {
	return l.discountedQty
}

// DiscountValue returns the discount accumulated on this line so far.
func (l *Line) DiscountValue() decimal.Decimal {
	return l.discount
}

// ApplyDiscount records a benefit discount of amount covering qty units.
// Discounting more units than remain undiscounted violates the
// no-double-discount invariant and returns ErrOverDiscount.
func (l *Line) ApplyDiscount(amount decimal.Decimal, qty int) error {
	if qty < 0 || amount.IsNegative() {
		return errors.Errorf("negative discount (amount=%s qty=%d)", amount, qty)
	}
	if qty > l.QuantityWithoutDiscount() {
		return errors.Wrapf(ErrOverDiscount, "line %d: %d units requested, %d available",
			l.ID, qty, l.QuantityWithoutDiscount())
	}
	l.discountedQty += qty
	l.discount = l.discount.Add(amount)
	return nil
}

// ResetOfferState clears the per-pass counters.
func (l *Line) ResetOfferState() {
	l.consumed = 0
	l.discountedQty = 0
	l.discount = decimal.Zero
}

// Basket is one shopper's basket snapshot.
type Basket struct {
	Lines          []*Line
	ShippingCharge decimal.Decimal

	// VoucherCodes are the codes the shopper has entered. The host uses
	// them to assemble the voucher-linked offer source; the engine itself
	// never resolves codes.
	VoucherCodes []string
}

// AllLines returns the basket lines in their stable basket order.
func (b *Basket) AllLines() []*Line {
	return b.Lines
}

// Total returns the undiscounted sum of price times quantity.
func (b *Basket) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// ResetOfferState clears per-pass counters on every line.
func (b *Basket) ResetOfferState() {
	for _, l := range b.Lines {
		l.ResetOfferState()
	}
}
