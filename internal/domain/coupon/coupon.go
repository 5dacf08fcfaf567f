// Package coupon validates user-entered discount codes against the
// storefront API and resolves them into the coupon record used for pricing.
package coupon

import (
	"context"
	"regexp"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindFixed subtracts a fixed amount from the subtotal.
	KindFixed Kind = "fixed"
	// KindPercent subtracts a percentage of the subtotal.
	KindPercent Kind = "percent"
)

var (
	// ErrAlreadyApplied is returned when the code matches the last locally
	// accepted one; no network call is made.
	ErrAlreadyApplied = errors.New("coupon already applied")
	// ErrInvalidCode is returned for malformed, blocklisted, or
	// server-rejected codes.
	ErrInvalidCode = errors.New("invalid coupon code")
	// ErrNoPromotedCoupon is returned when the server accepted the code but
	// no promoted coupon record matches it, so there is nothing to price
	// against.
	ErrNoPromotedCoupon = errors.New("no promoted coupon matches the code")
)

// codePattern mirrors the storefront form rule: capital letters and digits
// only.
var codePattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Coupon is a discount record as served by the storefront API.
type Coupon struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Kind        Kind            `json:"type"`
	Discount    decimal.Decimal `json:"discount"`
	Description string          `json:"description,omitempty"`
	ExpiredAt   time.Time       `json:"expired_at"`
	Status      string          `json:"status"`
}

// Checker is the slice of the storefront API the validator needs.
type Checker interface {
	// CheckCoupon asks the server whether code is redeemable. A rejection
	// surfaces as an upstream business error.
	CheckCoupon(ctx context.Context, code string) error
	// FirstCoupon returns the currently promoted coupon, or nil when none
	// is active.
	FirstCoupon(ctx context.Context) (*Coupon, error)
}
