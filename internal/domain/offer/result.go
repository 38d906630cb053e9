package offer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Effect says which part of an order an application result touches.
type Effect int

const (
	// EffectNone marks a result with no impact at all.
	EffectNone Effect = iota
	// EffectBasket marks a discount off the basket total.
	EffectBasket
	// EffectShipping marks a discount off the shipping charge.
	EffectShipping
	// EffectPostOrder marks an action deferred until after the order is placed.
	EffectPostOrder
)

// ApplicationResult is the outcome of applying one offer once.
//
// IsSuccessful distinguishes "the offer did something" from the ordinary
// no-effect branch; neither is an error. IsFinal tells the applicator to
// stop re-applying the offer within the current pass even after success.
type ApplicationResult interface {
	IsSuccessful() bool
	IsFinal() bool
	Affects() Effect
}

// NoEffect is the outcome when a condition is unsatisfied, a benefit
// produces zero discount, or an offer is misconfigured past the loading
// boundary. It mutates nothing.
type NoEffect struct{}

func (NoEffect) IsSuccessful() bool { return false }
func (NoEffect) IsFinal() bool      { return false }
func (NoEffect) Affects() Effect    { return EffectNone }

// BasketDiscount is a plain discount off the basket total. It is
// successful only when the amount is positive, and never final: the
// applicator keeps reapplying the offer until its cap or a failure.
type BasketDiscount struct {
	Amount decimal.Decimal
}

func (d BasketDiscount) IsSuccessful() bool { return d.Amount.IsPositive() }
func (d BasketDiscount) IsFinal() bool      { return false }
func (d BasketDiscount) Affects() Effect    { return EffectBasket }

func (d BasketDiscount) String() string {
	return fmt.Sprintf("basket discount of %s", d.Amount)
}

// ShippingDiscount is a discount off the shipping charge. Shipping
// discounts apply at most once per pass, so the result is final.
type ShippingDiscount struct {
	Amount decimal.Decimal
}

func (ShippingDiscount) IsSuccessful() bool { return true }
func (ShippingDiscount) IsFinal() bool      { return true }
func (ShippingDiscount) Affects() Effect    { return EffectShipping }

// PostOrderAction defers the benefit until after the order is placed,
// e.g. crediting loyalty points. Final by definition.
type PostOrderAction struct {
	Description string
}

func (PostOrderAction) IsSuccessful() bool { return true }
func (PostOrderAction) IsFinal() bool      { return true }
func (PostOrderAction) Affects() Effect    { return EffectPostOrder }
