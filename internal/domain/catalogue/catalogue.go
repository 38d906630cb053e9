// Package catalogue holds the minimal product view the promotion engine
// needs. The full catalogue (browsing, stock, pricing sources) lives in the
// host application; offers only ever ask "which product is this, what class
// and categories does it belong to, and may it be discounted".
package catalogue

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category is a node in the category tree. Path is the materialized
// ancestor path of the node, e.g. "/120/340/" for a category 340 under
// 120. Descendant checks are plain prefix tests, so range membership
// never walks the tree.
type Category struct {
	ID   int64
	Path string
}

// IsDescendantOf reports whether c sits strictly below other in the tree.
func (c Category) IsDescendantOf(other Category) bool {
	if c.ID == other.ID {
		return false
	}
	return strings.HasPrefix(c.Path, other.Path)
}

// IsSameOrDescendantOf reports whether c is other or any descendant of it.
func (c Category) IsSameOrDescendantOf(other Category) bool {
	return c.ID == other.ID || strings.HasPrefix(c.Path, other.Path)
}

// NewCategory builds a Category with a path derived from its ancestor IDs
// (root first) followed by its own ID.
func NewCategory(id int64, ancestors ...int64) Category {
	var b strings.Builder
	b.WriteByte('/')
	for _, a := range ancestors {
		writeID(&b, a)
	}
	writeID(&b, id)
	return Category{ID: id, Path: b.String()}
}

func writeID(b *strings.Builder, id int64) {
	const digits = "0123456789"
	if id == 0 {
		b.WriteByte('0')
	} else {
		var buf [20]byte
		i := len(buf)
		for id > 0 {
			i--
			buf[i] = digits[id%10]
			id /= 10
		}
		b.Write(buf[i:])
	}
	b.WriteByte('/')
}

// Product is the engine's read-only view of a catalogue product.
type Product struct {
	ID             int64
	ClassID        int64
	Categories     []Category
	IsDiscountable bool
}

// PricedProduct pairs a product with its current unit price. The engine
// itself never reads the price from here; hosts use it to build basket
// lines before a pass.
type PricedProduct struct {
	Product Product
	Name    string
	Price   decimal.Decimal
}
