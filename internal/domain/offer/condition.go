package offer

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/basket"
)

// ConditionKind selects one of the built-in condition behaviours.
type ConditionKind string

const (
	// ConditionNone places no restriction on the basket and consumes nothing.
	ConditionNone ConditionKind = "None"
	// ConditionCount requires at least Value eligible units across matching lines.
	ConditionCount ConditionKind = "Count"
	// ConditionValue requires the summed price of eligible units to reach Value.
	ConditionValue ConditionKind = "Value"
	// ConditionCoverage requires at least Value distinct matching products.
	ConditionCoverage ConditionKind = "Coverage"
)

// CustomCondition is the extension point for conditions that cannot be
// expressed with the built-in kinds. A Condition carrying a custom
// implementation delegates every operation to it.
type CustomCondition interface {
	IsSatisfied(o *ConditionalOffer, b *basket.Basket) bool
	IsPartiallySatisfied(o *ConditionalOffer, b *basket.Basket) bool
	UpsellMessage(o *ConditionalOffer, b *basket.Basket) string
	ConsumeItems(o *ConditionalOffer, b *basket.Basket, affected []AffectedLine)
}

// PricedLine pairs a basket line with the unit price the engine uses for it.
type PricedLine struct {
	Price decimal.Decimal
	Line  *basket.Line
}

// AffectedLine records a benefit touching a line: the discount granted and
// the number of units it covered.
type AffectedLine struct {
	Line     *basket.Line
	Discount decimal.Decimal
	Quantity int
}

// Condition is an offer's prerequisite: a predicate over the basket plus
// the line-selection logic that decides which units get locked once the
// paired benefit succeeds.
type Condition struct {
	ID    int64
	Kind  ConditionKind
	Range *Range
	Value decimal.Decimal

	// Custom overrides the built-in kinds when set.
	Custom CustomCondition
}

// IsSatisfied reports whether the basket currently meets the condition.
func (c *Condition) IsSatisfied(o *ConditionalOffer, b *basket.Basket) bool {
	if c.Custom != nil {
		return c.Custom.IsSatisfied(o, b)
	}
	switch c.Kind {
	case ConditionNone:
		return true
	case ConditionCount:
		return c.eligibleUnits(o, b) >= c.intValue()
	case ConditionValue:
		return c.eligibleValue(o, b).GreaterThanOrEqual(c.Value)
	case ConditionCoverage:
		return c.coveredProducts(o, b) >= c.intValue()
	}
	return false
}

// IsPartiallySatisfied reports whether the basket meets the condition in
// part, which is what drives upsell messaging. It never mutates state.
func (c *Condition) IsPartiallySatisfied(o *ConditionalOffer, b *basket.Basket) bool {
	if c.Custom != nil {
		return c.Custom.IsPartiallySatisfied(o, b)
	}
	switch c.Kind {
	case ConditionCount:
		n := c.eligibleUnits(o, b)
		return n > 0 && n < c.intValue()
	case ConditionValue:
		total := c.eligibleValue(o, b)
		return total.IsPositive() && total.LessThan(c.Value)
	case ConditionCoverage:
		n := c.coveredProducts(o, b)
		return n > 0 && n < c.intValue()
	}
	return false
}

// UpsellMessage returns a plain-text hint of what is missing for the
// condition to be met, or "" when no hint applies. Formatting and
// localization of currency amounts is the host's concern.
func (c *Condition) UpsellMessage(o *ConditionalOffer, b *basket.Basket) string {
	if c.Custom != nil {
		return c.Custom.UpsellMessage(o, b)
	}
	switch c.Kind {
	case ConditionCount:
		missing := c.intValue() - c.eligibleUnits(o, b)
		if missing > 0 {
			return fmt.Sprintf("Buy %d more products from %s", missing, c.rangeName())
		}
	case ConditionValue:
		missing := c.Value.Sub(c.eligibleValue(o, b))
		if missing.IsPositive() {
			return fmt.Sprintf("Spend %s more from %s", missing.StringFixed(2), c.rangeName())
		}
	case ConditionCoverage:
		missing := c.intValue() - c.coveredProducts(o, b)
		if missing > 0 {
			return fmt.Sprintf("Buy %d more distinct products from %s", missing, c.rangeName())
		}
	}
	return ""
}

// ApplicableLines returns the lines this condition may consume: product
// in range, discountable, backed by a stock record, with a non-zero unit
// price. The sort is stable, so equal prices keep basket order.
func (c *Condition) ApplicableLines(o *ConditionalOffer, b *basket.Basket, mostExpensiveFirst bool) []PricedLine {
	var lines []PricedLine
	for _, line := range b.AllLines() {
		if !c.canApply(line) {
			continue
		}
		price := unitPrice(o, line)
		if !price.IsPositive() {
			continue
		}
		lines = append(lines, PricedLine{Price: price, Line: line})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if mostExpensiveFirst {
			return lines[i].Price.GreaterThan(lines[j].Price)
		}
		return lines[i].Price.LessThan(lines[j].Price)
	})
	return lines
}

// ConsumeItems locks the units this condition relied on so later offers in
// the same pass cannot reuse them. Benefit-affected quantities are consumed
// first; any shortfall against the condition value is topped up from the
// remaining applicable lines, most expensive first. Safe to call with
// disjoint line sets; line counters clamp at the line quantity.
func (c *Condition) ConsumeItems(o *ConditionalOffer, b *basket.Basket, affected []AffectedLine) {
	if c.Custom != nil {
		c.Custom.ConsumeItems(o, b, affected)
		return
	}
	switch c.Kind {
	case ConditionNone:
		// Always satisfied, never claims units.
	case ConditionCount:
		c.consumeCount(o, b, affected)
	case ConditionValue:
		c.consumeValue(o, b, affected)
	case ConditionCoverage:
		c.consumeCoverage(o, b, affected)
	}
}

func (c *Condition) consumeCount(o *ConditionalOffer, b *basket.Basket, affected []AffectedLine) {
	consumed := 0
	for _, al := range affected {
		al.Line.Consume(al.Quantity)
		consumed += al.Quantity
	}
	need := c.intValue() - consumed
	for _, pl := range c.ApplicableLines(o, b, true) {
		if need <= 0 {
			return
		}
		n := pl.Line.QuantityUnconsumed()
		if n > need {
			n = need
		}
		pl.Line.Consume(n)
		need -= n
	}
}

func (c *Condition) consumeValue(o *ConditionalOffer, b *basket.Basket, affected []AffectedLine) {
	covered := decimal.Zero
	for _, al := range affected {
		al.Line.Consume(al.Quantity)
		covered = covered.Add(al.Line.UnitPrice.Mul(decimal.NewFromInt(int64(al.Quantity))))
	}
	remaining := c.Value.Sub(covered)
	for _, pl := range c.ApplicableLines(o, b, true) {
		if !remaining.IsPositive() {
			return
		}
		n := int(remaining.Div(pl.Price).Ceil().IntPart())
		if avail := pl.Line.QuantityUnconsumed(); n > avail {
			n = avail
		}
		pl.Line.Consume(n)
		remaining = remaining.Sub(pl.Price.Mul(decimal.NewFromInt(int64(n))))
	}
}

func (c *Condition) consumeCoverage(o *ConditionalOffer, b *basket.Basket, affected []AffectedLine) {
	seen := make(map[int64]struct{})
	for _, al := range affected {
		al.Line.Consume(al.Quantity)
		seen[al.Line.Product.ID] = struct{}{}
	}
	need := c.intValue() - len(seen)
	for _, pl := range c.ApplicableLines(o, b, true) {
		if need <= 0 {
			return
		}
		if _, ok := seen[pl.Line.Product.ID]; ok {
			continue
		}
		if pl.Line.QuantityUnconsumed() == 0 {
			continue
		}
		pl.Line.Consume(1)
		seen[pl.Line.Product.ID] = struct{}{}
		need--
	}
}

// eligibleUnits counts units available to this condition across matching lines.
func (c *Condition) eligibleUnits(o *ConditionalOffer, b *basket.Basket) int {
	n := 0
	for _, line := range b.AllLines() {
		if c.canApply(line) && unitPrice(o, line).IsPositive() {
			n += line.QuantityUnconsumed()
		}
	}
	return n
}

// eligibleValue sums price times available quantity across matching lines.
func (c *Condition) eligibleValue(o *ConditionalOffer, b *basket.Basket) decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.AllLines() {
		if !c.canApply(line) {
			continue
		}
		price := unitPrice(o, line)
		if !price.IsPositive() {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.QuantityUnconsumed()))))
	}
	return total
}

// coveredProducts counts distinct matching products with units available.
func (c *Condition) coveredProducts(o *ConditionalOffer, b *basket.Basket) int {
	seen := make(map[int64]struct{})
	for _, line := range b.AllLines() {
		if c.canApply(line) && line.QuantityUnconsumed() > 0 && unitPrice(o, line).IsPositive() {
			seen[line.Product.ID] = struct{}{}
		}
	}
	return len(seen)
}

func (c *Condition) canApply(line *basket.Line) bool {
	if !line.HasStockRecord || !line.Product.IsDiscountable {
		return false
	}
	return c.Range != nil && c.Range.Contains(line.Product)
}

func (c *Condition) intValue() int {
	return int(c.Value.IntPart())
}

func (c *Condition) rangeName() string {
	if c.Range == nil {
		return "the basket"
	}
	return c.Range.Name
}

// unitPrice returns the price the engine uses for a line under an offer.
// Kept as a seam so tax-exclusive deployments can be handled in one place.
func unitPrice(_ *ConditionalOffer, line *basket.Line) decimal.Decimal {
	return line.UnitPrice
}
