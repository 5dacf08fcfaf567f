// Package cart owns the line items a customer has picked up before
// checkout. The cart is bound to at most one customer, mutated only through
// increment/decrement/remove operations, and persisted after every mutation
// so a page reload never loses it.
package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart mutations.
var (
	// ErrStockExceeded is returned when an increment would push a line item
	// past its maximum quantity. The cart is left untouched; the caller
	// surfaces it as a user-visible warning.
	ErrStockExceeded = errors.New("stock exceeded")
	// ErrInvalidItem is returned when an item is missing its product code or
	// carries a non-positive stock bound.
	ErrInvalidItem = errors.New("invalid line item")
)

// LineItem is one product entry in the cart with a bounded quantity.
// Invariant: 1 <= Quantity <= MaxQuantity, uniqueness by ProductCode.
type LineItem struct {
	ProductCode string          `json:"product_code"`
	ProductID   int64           `json:"product_id"`
	Title       string          `json:"title"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	MaxQuantity int             `json:"max_quantity"`
	ImageRef    string          `json:"image_ref,omitempty"`
	Category    string          `json:"category,omitempty"`
}

// Subtotal returns unit price times quantity for this line.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the ordered list of line items for one (optional) customer.
type Cart struct {
	CustomerID string     `json:"customer_id,omitempty"`
	Items      []LineItem `json:"items"`
}

// Empty reports whether the cart has no line items.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// Subtotal returns the sum of line subtotals.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// find returns the index of the line item with the given product code,
// or -1 when absent.
func (c Cart) find(code string) int {
	for i, item := range c.Items {
		if item.ProductCode == code {
			return i
		}
	}
	return -1
}
