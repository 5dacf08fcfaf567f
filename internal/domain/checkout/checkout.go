// Package checkout owns the three-step checkout flow: the step index, the
// in-progress draft (shipping, payment method, applied coupon, item
// snapshot), and their persistence. The cart and the checkout state are
// stored under separate keys so a reload mid-checkout restores the exact
// position without losing cart contents.
package checkout

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/geraiakik/checkout-gateway/internal/domain/cart"
	"github.com/geraiakik/checkout-gateway/internal/domain/coupon"
)

// Step is the checkout stepper position.
type Step int

const (
	// StepCartReview lets the customer adjust quantities before committing.
	StepCartReview Step = iota
	// StepShippingAndCoupon collects courier, payment method, and an
	// optional coupon code.
	StepShippingAndCoupon
	// StepConfirmAndPay shows the final breakdown and submits the order.
	StepConfirmAndPay
)

// PaymentMethod selects the server-side payment path.
type PaymentMethod string

const (
	// PaymentManual is a bank transfer confirmed out of band.
	PaymentManual PaymentMethod = "manual"
	// PaymentAutomatic pays through the embedded payment widget.
	PaymentAutomatic PaymentMethod = "automatic"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentManual || m == PaymentAutomatic
}

// ErrIncompleteDraft is returned when an operation needs a draft with
// shipping and payment method already selected.
var ErrIncompleteDraft = errors.New("shipping and payment method must be selected")

// ShippingOption is a courier offering as served by the storefront API.
type ShippingOption struct {
	ID           int64           `json:"id"`
	ShippingCode string          `json:"shipping_code"`
	Name         string          `json:"name"`
	City         string          `json:"city"`
	Area         string          `json:"area"`
	Cost         decimal.Decimal `json:"cost"`
}

// Draft is the not-yet-submitted checkout selection. Created at the
// shipping step, persisted across reloads, consumed by submission.
type Draft struct {
	Shipping      *ShippingOption `json:"shipping,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	Coupon        *coupon.Coupon  `json:"coupon,omitempty"`
	Items         []cart.LineItem `json:"items,omitempty"`
}

// Complete reports whether the draft carries everything submission needs.
func (d Draft) Complete() bool {
	return d.Shipping != nil && d.PaymentMethod.Valid() && len(d.Items) > 0
}

// ShippingCost returns the selected courier cost, or zero when none is
// selected yet.
func (d Draft) ShippingCost() decimal.Decimal {
	if d.Shipping == nil {
		return decimal.Zero
	}
	return d.Shipping.Cost
}
