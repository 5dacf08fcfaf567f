// Package pricing computes the priced totals for a cart: subtotal, coupon
// discount, shipping, and total. It is a pure function of its inputs and is
// recomputed on demand, never persisted.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/geraiakik/checkout-gateway/internal/domain/cart"
	"github.com/geraiakik/checkout-gateway/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// Result holds the derived price breakdown.
type Result struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Compute prices the given line items with an optional coupon and shipping
// cost.
//
//	subtotal = Σ(unit_price × quantity)
//	discount = fixed value, or percent of subtotal
//	total    = subtotal − discount + shipping
//
// The total is floored at zero: a fixed-value coupon larger than the
// subtotal must not produce a negative charge.
func Compute(items []cart.LineItem, c *coupon.Coupon, shipping decimal.Decimal) Result {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal())
	}

	discount := decimal.Zero
	if c != nil {
		switch c.Kind {
		case coupon.KindFixed:
			discount = c.Discount
		case coupon.KindPercent:
			discount = subtotal.Mul(c.Discount).Div(hundred)
		}
	}

	total := subtotal.Sub(discount).Add(shipping)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Result{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    total,
	}
}
