// Package pricing computes candle prices from the catalog base price, the
// active sale discount and the selected configurator options.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

var hundred = decimal.NewFromInt(100)

// DiscountedPrice returns the base price after the active sale discount,
// rounded half away from zero to cents. The rounding happens here, before
// modifiers and quantities are applied, so the unit price a customer sees is
// the one that subtotals, totals and the NUMERIC(8,2) order item rows are
// built from. Products that are not on sale, have no discount, or carry a
// percent outside 0..100 are priced at their base price.
func DiscountedPrice(p *catalog.Product) decimal.Decimal {
	if !p.OnSale || p.DiscountPercent == nil || *p.DiscountPercent == 0 {
		return p.Price
	}
	percent := *p.DiscountPercent
	if percent < 0 || percent > 100 {
		return p.Price
	}
	return p.Price.Mul(hundred.Sub(decimal.NewFromInt(int64(percent)))).Div(hundred).Round(2)
}

// FinalPrice returns the unit price of a configured product: the discounted
// price plus the aggregate modifier of the selected option values. The result
// is not clamped at zero.
func FinalPrice(p *catalog.Product, modifier decimal.Decimal) decimal.Decimal {
	return DiscountedPrice(p).Add(modifier)
}

// Modifier sums the price modifiers of the given option values.
func Modifier(values []catalog.OptionValue) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v.PriceModifier)
	}
	return sum
}

// Subtotal returns unit * qty.
func Subtotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
