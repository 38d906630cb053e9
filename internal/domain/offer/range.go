package offer

import (
	"github.com/xenking/promo-engine/internal/domain/catalogue"
)

// Membership is the extension point for ranges whose product membership
// cannot be expressed with the built-in include/exclude sets. When a Range
// carries a Membership proxy it fully replaces the built-in logic.
type Membership interface {
	Contains(p *catalogue.Product) bool
}

// Range is a reusable product-membership predicate shared by conditions
// and benefits. Evaluation is pure: Contains never mutates the range or
// the product.
type Range struct {
	ID   int64
	Name string

	IncludesAllProducts bool
	IncludedProducts    map[int64]struct{}
	ExcludedProducts    map[int64]struct{}
	Classes             map[int64]struct{}
	IncludedCategories  []catalogue.Category

	// Blacklist, when set, vetoes products before any other check. The
	// loader installs the deployment-wide blacklist here so the engine
	// keeps no process-global state.
	Blacklist func(p *catalogue.Product) bool

	// Proxy replaces the built-in membership logic entirely.
	Proxy Membership
}

// Contains reports whether the product is part of this range. Checks run
// cheapest first and short-circuit; exclusion always wins over inclusion.
func (r *Range) Contains(p *catalogue.Product) bool {
	if r.Blacklist != nil && r.Blacklist(p) {
		return false
	}
	if r.Proxy != nil {
		return r.Proxy.Contains(p)
	}
	if _, excluded := r.ExcludedProducts[p.ID]; excluded {
		return false
	}
	if r.IncludesAllProducts {
		return true
	}
	if _, ok := r.Classes[p.ClassID]; ok {
		return true
	}
	if _, ok := r.IncludedProducts[p.ID]; ok {
		return true
	}
	for _, pc := range p.Categories {
		for _, rc := range r.IncludedCategories {
			if pc.IsSameOrDescendantOf(rc) {
				return true
			}
		}
	}
	return false
}
