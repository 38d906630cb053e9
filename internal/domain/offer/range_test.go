package offer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xenking/promo-engine/internal/domain/catalogue"
)

type staticMembership bool

func (m staticMembership) Contains(*catalogue.Product) bool { return bool(m) }

func TestRange_Contains(t *testing.T) {
	electronics := catalogue.NewCategory(10)
	audio := catalogue.NewCategory(11, 10)
	books := catalogue.NewCategory(20)

	inAudio := &catalogue.Product{ID: 1, ClassID: 5, Categories: []catalogue.Category{audio}}
	inBooks := &catalogue.Product{ID: 2, ClassID: 6, Categories: []catalogue.Category{books}}

	tests := []struct {
		name    string
		rng     *Range
		product *catalogue.Product
		want    bool
	}{
		{
			name:    "includes all products",
			rng:     &Range{IncludesAllProducts: true},
			product: inBooks,
			want:    true,
		},
		{
			name: "exclusion wins over includes all",
			rng: &Range{
				IncludesAllProducts: true,
				ExcludedProducts:    map[int64]struct{}{2: {}},
			},
			product: inBooks,
			want:    false,
		},
		{
			name: "exclusion wins over explicit inclusion",
			rng: &Range{
				IncludedProducts: map[int64]struct{}{2: {}},
				ExcludedProducts: map[int64]struct{}{2: {}},
			},
			product: inBooks,
			want:    false,
		},
		{
			name:    "included product id",
			rng:     &Range{IncludedProducts: map[int64]struct{}{1: {}}},
			product: inAudio,
			want:    true,
		},
		{
			name:    "included product class",
			rng:     &Range{Classes: map[int64]struct{}{5: {}}},
			product: inAudio,
			want:    true,
		},
		{
			name:    "exact category match",
			rng:     &Range{IncludedCategories: []catalogue.Category{audio}},
			product: inAudio,
			want:    true,
		},
		{
			name:    "descendant category match",
			rng:     &Range{IncludedCategories: []catalogue.Category{electronics}},
			product: inAudio,
			want:    true,
		},
		{
			name:    "ancestor category does not match downward",
			rng:     &Range{IncludedCategories: []catalogue.Category{audio}},
			product: &catalogue.Product{ID: 3, Categories: []catalogue.Category{electronics}},
			want:    false,
		},
		{
			name:    "no rule matches",
			rng:     &Range{IncludedProducts: map[int64]struct{}{99: {}}},
			product: inAudio,
			want:    false,
		},
		{
			name: "blacklist vetoes before inclusion",
			rng: &Range{
				IncludesAllProducts: true,
				Blacklist:           func(p *catalogue.Product) bool { return p.ID == 1 },
			},
			product: inAudio,
			want:    false,
		},
		{
			name:    "proxy overrides built-in logic",
			rng:     &Range{IncludesAllProducts: false, Proxy: staticMembership(true)},
			product: inBooks,
			want:    true,
		},
		{
			name: "blacklist still vetoes a proxy range",
			rng: &Range{
				Proxy:     staticMembership(true),
				Blacklist: func(*catalogue.Product) bool { return true },
			},
			product: inBooks,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rng.Contains(tt.product))
		})
	}
}
