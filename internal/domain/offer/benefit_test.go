package offer

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/basket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func percentageOffer(value string, maxItems int) (*ConditionalOffer, *Condition, *Benefit) {
	rng := allProductsRange()
	cond := &Condition{Kind: ConditionNone, Range: rng}
	bn := &Benefit{Kind: BenefitPercentage, Range: rng, Value: dec(value), MaxAffectedItems: maxItems}
	off := &ConditionalOffer{ID: 1, Name: "test offer", Condition: cond, Benefit: bn, Status: StatusOpen}
	return off, cond, bn
}

func TestPercentageBenefit_Apply(t *testing.T) {
	t.Run("discounts the full line", func(t *testing.T) {
		off, cond, bn := percentageOffer("20", 0)
		b := newBsk()
		b.add("10.00", 3)
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		require.True(t, result.IsSuccessful())
		assert.True(t, dec("6.00").Equal(result.(BasketDiscount).Amount),
			"expected 6.00, got %s", result.(BasketDiscount).Amount)
		assert.Equal(t, 3, b.lines[0].QuantityWithDiscount())
		assert.Equal(t, 0, b.lines[0].QuantityWithoutDiscount())
	})

	t.Run("max affected items leaves units for later offers", func(t *testing.T) {
		off, cond, bn := percentageOffer("20", 1)
		b := newBsk()
		b.add("10.00", 3)
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.True(t, dec("2.00").Equal(result.(BasketDiscount).Amount))
		assert.Equal(t, 1, b.lines[0].QuantityWithDiscount())
		assert.Equal(t, 2, b.lines[0].QuantityWithoutDiscount())
	})

	t.Run("rounding truncates at two decimals", func(t *testing.T) {
		off, cond, bn := percentageOffer("20", 0)
		b := newBsk()
		b.add("12.00", 2)
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.True(t, dec("4.80").Equal(result.(BasketDiscount).Amount))
	})

	t.Run("discount never exceeds line value", func(t *testing.T) {
		off, cond, bn := percentageOffer("100", 0)
		b := newBsk()
		b.add("3.33", 3)
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.True(t, result.(BasketDiscount).Amount.LessThanOrEqual(dec("9.99")))
	})

	t.Run("walks lines cheapest first", func(t *testing.T) {
		off, cond, bn := percentageOffer("10", 1)
		b := newBsk()
		b.add("30.00", 1)
		b.add("10.00", 1)
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.True(t, dec("1.00").Equal(result.(BasketDiscount).Amount))
		assert.Equal(t, 1, b.lines[1].QuantityWithDiscount())
		assert.Equal(t, 0, b.lines[0].QuantityWithDiscount())
	})

	t.Run("caps at the offer's remaining discount budget", func(t *testing.T) {
		off, cond, bn := percentageOffer("20", 0)
		off.MaxDiscount = dec("3.00")
		b := newBsk()
		b.add("12.00", 2)
		b.add("10.00", 2)
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.True(t, result.(BasketDiscount).Amount.LessThanOrEqual(dec("3.00")))
	})

	t.Run("caller override percentage", func(t *testing.T) {
		off, cond, bn := percentageOffer("20", 0)
		b := newBsk()
		b.add("100.00", 1)
		bb := b.basket()

		result, err := bn.ApplyPercentage(bb, cond, off, dec("30"))
		require.NoError(t, err)
		assert.True(t, dec("30.00").Equal(result.(BasketDiscount).Amount))
	})

	t.Run("non-positive percentage is a no-effect", func(t *testing.T) {
		off, cond, bn := percentageOffer("0", 0)
		b := newBsk()
		b.add("10.00", 1)

		result, err := bn.Apply(b.basket(), cond, off)
		require.NoError(t, err)
		assert.False(t, result.IsSuccessful())
	})

	t.Run("no eligible lines is a no-effect", func(t *testing.T) {
		off, cond, bn := percentageOffer("20", 0)
		result, err := bn.Apply(testBasket(), cond, off)
		require.NoError(t, err)
		assert.False(t, result.IsSuccessful())
	})

	t.Run("zero price products are skipped entirely", func(t *testing.T) {
		off, cond, bn := percentageOffer("20", 0)
		b := newBsk()
		b.add("0.00", 5)
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.False(t, result.IsSuccessful())
		assert.Equal(t, 0, b.lines[0].QuantityWithDiscount())
	})

	t.Run("non-discountable products are skipped", func(t *testing.T) {
		off, cond, bn := percentageOffer("20", 0)
		b := newBsk()
		l := b.add("12.00", 2)
		l.Product.IsDiscountable = false
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.False(t, result.IsSuccessful())
		assert.Equal(t, 2, l.QuantityWithoutDiscount())
	})

	t.Run("failure consumes no condition items", func(t *testing.T) {
		// A count condition paired with a benefit range that matches
		// nothing: the condition passes, the benefit produces nothing,
		// and the condition-matched units stay free.
		rng := allProductsRange()
		cond := &Condition{Kind: ConditionCount, Range: rng, Value: dec("1")}
		bn := &Benefit{Kind: BenefitPercentage, Range: &Range{}, Value: dec("20")}
		off := &ConditionalOffer{Condition: cond, Benefit: bn}

		b := newBsk()
		b.add("10.00", 2)
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.False(t, result.IsSuccessful())
		assert.Equal(t, 0, b.lines[0].QuantityConsumed())
	})

	t.Run("success locks condition items", func(t *testing.T) {
		rng := allProductsRange()
		cond := &Condition{Kind: ConditionCount, Range: rng, Value: dec("2")}
		bn := &Benefit{Kind: BenefitPercentage, Range: rng, Value: dec("20")}
		off := &ConditionalOffer{Condition: cond, Benefit: bn}

		b := newBsk()
		b.add("10.00", 2)
		bb := b.basket()

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.True(t, result.IsSuccessful())
		assert.Equal(t, 2, b.lines[0].QuantityConsumed())
	})

	t.Run("custom rounding function is honoured", func(t *testing.T) {
		off, cond, bn := percentageOffer("20", 0)
		bn.Rounding = func(d decimal.Decimal) decimal.Decimal { return d.RoundUp(0) }
		b := newBsk()
		b.add("12.10", 1)

		result, err := bn.Apply(b.basket(), cond, off)
		require.NoError(t, err)
		assert.True(t, dec("3").Equal(result.(BasketDiscount).Amount))
	})
}

func TestShippingBenefits(t *testing.T) {
	tests := []struct {
		name   string
		kind   BenefitKind
		value  string
		charge string
		want   string
	}{
		{"absolute below charge", BenefitShippingAbsolute, "5.00", "8.00", "5.00"},
		{"absolute capped at charge", BenefitShippingAbsolute, "10.00", "8.00", "8.00"},
		{"fixed price below charge", BenefitShippingFixedPrice, "5.00", "8.00", "3.00"},
		{"fixed price above charge", BenefitShippingFixedPrice, "5.00", "3.00", "0.00"},
		{"percentage plain", BenefitShippingPercentage, "50", "8.00", "4.00"},
		{"percentage bankers rounding down", BenefitShippingPercentage, "15", "8.30", "1.24"},
		{"percentage bankers rounding to even", BenefitShippingPercentage, "25", "8.30", "2.08"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bn := &Benefit{Kind: tt.kind, Value: dec(tt.value)}
			got := bn.ShippingDiscountAmount(dec(tt.charge))
			assert.True(t, dec(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
		})
	}

	t.Run("apply returns a final shipping result", func(t *testing.T) {
		bn := &Benefit{Kind: BenefitShippingAbsolute, Value: dec("5.00")}
		cond := &Condition{Kind: ConditionNone}
		off := &ConditionalOffer{Condition: cond, Benefit: bn}
		bb := testBasket()
		bb.ShippingCharge = dec("8.00")

		result, err := bn.Apply(bb, cond, off)
		require.NoError(t, err)
		assert.True(t, result.IsSuccessful())
		assert.True(t, result.IsFinal())
		assert.Equal(t, EffectShipping, result.Affects())
		assert.True(t, dec("5.00").Equal(result.(ShippingDiscount).Amount))
	})

	t.Run("product benefit grants no shipping discount", func(t *testing.T) {
		bn := &Benefit{Kind: BenefitPercentage, Range: allProductsRange(), Value: dec("20")}
		assert.True(t, bn.ShippingDiscountAmount(dec("8.00")).IsZero())
	})
}

func TestBenefit_Validate(t *testing.T) {
	rng := allProductsRange()

	tests := []struct {
		name    string
		benefit *Benefit
		wantErr string
	}{
		{
			name:    "valid percentage",
			benefit: &Benefit{Kind: BenefitPercentage, Range: rng, Value: dec("20")},
		},
		{
			name:    "percentage without range",
			benefit: &Benefit{Kind: BenefitPercentage, Value: dec("20")},
			wantErr: "require a product range",
		},
		{
			name:    "percentage above 100",
			benefit: &Benefit{Kind: BenefitPercentage, Range: rng, Value: dec("120")},
			wantErr: "outside [0,100]",
		},
		{
			name:    "shipping benefit with a range",
			benefit: &Benefit{Kind: BenefitShippingAbsolute, Range: rng, Value: dec("5")},
			wantErr: "take no range",
		},
		{
			name:    "shipping benefit with max affected items",
			benefit: &Benefit{Kind: BenefitShippingFixedPrice, Value: dec("5"), MaxAffectedItems: 2},
			wantErr: "no max affected items",
		},
		{
			name:    "shipping absolute without value",
			benefit: &Benefit{Kind: BenefitShippingAbsolute},
			wantErr: "positive value",
		},
		{
			name:    "shipping percentage above 100",
			benefit: &Benefit{Kind: BenefitShippingPercentage, Value: dec("101")},
			wantErr: "outside [0,100]",
		},
		{
			name:    "unknown kind",
			benefit: &Benefit{Kind: "Multibuy"},
			wantErr: "unrecognised benefit kind",
		},
		{
			name:    "custom benefit skips built-in checks",
			benefit: &Benefit{Custom: staticBenefit{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.benefit.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type staticBenefit struct{}

func (staticBenefit) Apply(*basket.Basket, *Condition, *ConditionalOffer) (ApplicationResult, error) {
	return PostOrderAction{Description: "static"}, nil
}
