package offer

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/basket"
)

// BenefitKind selects one of the built-in benefit behaviours.
type BenefitKind string

const (
	// BenefitPercentage discounts a percentage off matching product lines.
	BenefitPercentage BenefitKind = "Percentage"
	// BenefitShippingAbsolute takes a fixed amount off the shipping charge.
	BenefitShippingAbsolute BenefitKind = "Shipping absolute"
	// BenefitShippingFixedPrice caps shipping at a fixed price.
	BenefitShippingFixedPrice BenefitKind = "Shipping fixed price"
	// BenefitShippingPercentage discounts a percentage off the shipping charge.
	BenefitShippingPercentage BenefitKind = "Shipping percentage"
)

// maxAffectedItemsSentinel bounds line iteration when no explicit cap is set.
const maxAffectedItemsSentinel = 10000

var hundred = decimal.NewFromInt(100)

// RoundingFunc reduces a raw discount amount to a settled monetary value.
type RoundingFunc func(decimal.Decimal) decimal.Decimal

// TruncateRounding is the default product-discount rounding: truncate
// toward zero at two decimal places.
func TruncateRounding(d decimal.Decimal) decimal.Decimal {
	return d.RoundDown(2)
}

// CustomBenefit is the extension point for discount logic beyond the
// built-in kinds. A Benefit carrying a custom implementation delegates
// Apply to it entirely.
type CustomBenefit interface {
	Apply(b *basket.Basket, c *Condition, o *ConditionalOffer) (ApplicationResult, error)
}

// Benefit computes and applies a discount once its offer's condition is
// satisfied.
type Benefit struct {
	ID    int64
	Kind  BenefitKind
	Range *Range
	Value decimal.Decimal

	// MaxAffectedItems caps how many units one application may discount.
	// Zero means unbounded.
	MaxAffectedItems int

	// Rounding overrides the default truncate-to-2dp line rounding.
	Rounding RoundingFunc

	// Custom overrides the built-in kinds when set.
	Custom CustomBenefit
}

// Validate checks the benefit's own invariants. Violations are
// configuration errors: they must be rejected at the loading boundary and
// never reach an application pass.
func (bn *Benefit) Validate() error {
	if bn.Custom != nil {
		return nil
	}
	switch bn.Kind {
	case BenefitPercentage:
		if bn.Range == nil {
			return errors.New("percentage benefits require a product range")
		}
		if bn.Value.IsNegative() || bn.Value.GreaterThan(hundred) {
			return errors.Errorf("percentage value %s outside [0,100]", bn.Value)
		}
	case BenefitShippingAbsolute:
		if !bn.Value.IsPositive() {
			return errors.New("shipping absolute benefits require a positive value")
		}
		if err := bn.validateShippingShape(); err != nil {
			return err
		}
	case BenefitShippingFixedPrice:
		if bn.Value.IsNegative() {
			return errors.New("shipping fixed price cannot be negative")
		}
		if err := bn.validateShippingShape(); err != nil {
			return err
		}
	case BenefitShippingPercentage:
		if bn.Value.IsNegative() || bn.Value.GreaterThan(hundred) {
			return errors.Errorf("shipping percentage value %s outside [0,100]", bn.Value)
		}
		if err := bn.validateShippingShape(); err != nil {
			return err
		}
	default:
		return errors.Errorf("unrecognised benefit kind %q", bn.Kind)
	}
	return nil
}

func (bn *Benefit) validateShippingShape() error {
	if bn.Range != nil {
		return errors.New("shipping benefits do not apply to products and take no range")
	}
	if bn.MaxAffectedItems != 0 {
		return errors.New("shipping benefits take no max affected items")
	}
	return nil
}

// Apply computes the benefit against the basket and commits it when it
// produced an effect. A NoEffect outcome leaves both the basket and the
// condition's consumption state untouched. The returned error is reserved
// for invariant violations (see ErrOverDiscount), not for offers that
// simply do not apply.
func (bn *Benefit) Apply(b *basket.Basket, c *Condition, o *ConditionalOffer) (ApplicationResult, error) {
	if bn.Custom != nil {
		return bn.Custom.Apply(b, c, o)
	}
	switch bn.Kind {
	case BenefitPercentage:
		return bn.ApplyPercentage(b, c, o, bn.Value)
	case BenefitShippingAbsolute, BenefitShippingFixedPrice, BenefitShippingPercentage:
		return bn.applyShipping(b, c, o)
	}
	return NoEffect{}, errors.Errorf("unrecognised benefit kind %q", bn.Kind)
}

// ApplyPercentage runs the percentage algorithm with an explicit rate,
// letting callers override the stored value (e.g. a promotional override).
// Line selection is cheapest first and skips units already discounted this
// pass. The offer's remaining MaxDiscount budget, when set, caps the total.
func (bn *Benefit) ApplyPercentage(b *basket.Basket, c *Condition, o *ConditionalOffer, percent decimal.Decimal) (ApplicationResult, error) {
	if !percent.IsPositive() {
		return NoEffect{}, nil
	}

	available, bounded := remainingDiscountBudget(o)
	maxItems := bn.effectiveMaxAffectedItems()

	// Compute phase: decide the affected lines without mutating anything,
	// so a zero-effect outcome frees the lines for later offers.
	var (
		affected []AffectedLine
		discount = decimal.Zero
		items    = 0
	)
	for _, pl := range bn.ApplicableLines(o, b, nil, c) {
		if items >= maxItems {
			break
		}
		if bounded && !available.IsPositive() {
			break
		}
		qty := pl.Line.QuantityWithoutDiscount()
		if qty > maxItems-items {
			qty = maxItems - items
		}
		lineDiscount := bn.round(percent.Div(hundred).Mul(pl.Price).Mul(decimal.NewFromInt(int64(qty))))
		if bounded {
			if lineDiscount.GreaterThan(available) {
				lineDiscount = available
			}
			available = available.Sub(lineDiscount)
		}
		affected = append(affected, AffectedLine{Line: pl.Line, Discount: lineDiscount, Quantity: qty})
		items += qty
		discount = discount.Add(lineDiscount)
	}

	if !discount.IsPositive() {
		return NoEffect{}, nil
	}

	// Commit phase: write the discounts, then lock the condition's units.
	for _, al := range affected {
		if err := al.Line.ApplyDiscount(al.Discount, al.Quantity); err != nil {
			return NoEffect{}, errors.Wrap(err, "apply line discount")
		}
	}
	c.ConsumeItems(o, b, affected)
	return BasketDiscount{Amount: discount}, nil
}

func (bn *Benefit) applyShipping(b *basket.Basket, c *Condition, o *ConditionalOffer) (ApplicationResult, error) {
	c.ConsumeItems(o, b, nil)
	return ShippingDiscount{Amount: bn.ShippingDiscountAmount(b.ShippingCharge)}, nil
}

// ShippingDiscountAmount returns the discount this benefit grants off the
// given shipping charge. Non-shipping benefits grant none.
func (bn *Benefit) ShippingDiscountAmount(charge decimal.Decimal) decimal.Decimal {
	switch bn.Kind {
	case BenefitShippingAbsolute:
		return decimal.Min(charge, bn.Value)
	case BenefitShippingFixedPrice:
		if charge.LessThan(bn.Value) {
			return decimal.Zero
		}
		return charge.Sub(bn.Value)
	case BenefitShippingPercentage:
		// Banker's rounding, matching the original engine's currency context.
		return charge.Mul(bn.Value).Div(hundred).RoundBank(2)
	}
	return decimal.Zero
}

// ApplicableLines returns the lines this benefit may still discount:
// cheapest first, in range (the condition's range when the benefit has
// none), discountable, stocked, with undiscounted quantity left.
func (bn *Benefit) ApplicableLines(o *ConditionalOffer, b *basket.Basket, rng *Range, c *Condition) []PricedLine {
	if rng == nil {
		rng = bn.Range
	}
	if rng == nil && c != nil {
		rng = c.Range
	}
	var lines []PricedLine
	for _, line := range b.AllLines() {
		if rng == nil || !rng.Contains(line.Product) {
			continue
		}
		if !line.HasStockRecord || !line.Product.IsDiscountable {
			continue
		}
		price := unitPrice(o, line)
		if !price.IsPositive() {
			// Zero-price products are never counted as discounted.
			continue
		}
		if line.QuantityWithoutDiscount() == 0 {
			continue
		}
		lines = append(lines, PricedLine{Price: price, Line: line})
	}
	sortCheapestFirst(lines)
	return lines
}

func (bn *Benefit) effectiveMaxAffectedItems() int {
	if bn.MaxAffectedItems > 0 {
		return bn.MaxAffectedItems
	}
	return maxAffectedItemsSentinel
}

func (bn *Benefit) round(d decimal.Decimal) decimal.Decimal {
	if bn.Rounding != nil {
		return bn.Rounding(d)
	}
	return TruncateRounding(d)
}

func sortCheapestFirst(lines []PricedLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Price.LessThan(lines[j].Price)
	})
}

// remainingDiscountBudget returns how much discount the offer may still
// grant under its MaxDiscount ceiling. bounded is false when no ceiling is
// configured.
func remainingDiscountBudget(o *ConditionalOffer) (budget decimal.Decimal, bounded bool) {
	if o == nil || !o.MaxDiscount.IsPositive() {
		return decimal.Zero, false
	}
	budget = o.MaxDiscount.Sub(o.TotalDiscount)
	if budget.IsNegative() {
		budget = decimal.Zero
	}
	return budget, true
}
