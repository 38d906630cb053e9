package offer

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/basket"
	"github.com/xenking/promo-engine/internal/domain/catalogue"
)

func testProduct(id int64) *catalogue.Product {
	return &catalogue.Product{ID: id, ClassID: 1, IsDiscountable: true}
}

func testLine(id int64, price string, qty int) *basket.Line {
	return &basket.Line{
		ID:             id,
		Product:        testProduct(id),
		UnitPrice:      decimal.RequireFromString(price),
		Quantity:       qty,
		HasStockRecord: true,
	}
}

func testBasket(lines ...*basket.Line) *basket.Basket {
	return &basket.Basket{Lines: lines}
}

func allProductsRange() *Range {
	return &Range{Name: "all products", IncludesAllProducts: true}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
