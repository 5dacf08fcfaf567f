package coupon

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"
)

// Validator validates coupon codes for one checkout session.
//
// It remembers the last accepted code and fails fast on a repeat attempt
// without touching the network. The applied coupon is resolved against the
// promoted coupon record and carries that record's id through to pricing,
// so a later change to the server-side record under the same code cannot be
// silently repriced.
type Validator struct {
	checker   Checker
	blocklist *Blocklist

	mu       sync.Mutex
	accepted *Coupon

	group       singleflight.Group
	promotedTTL time.Duration
	promotedMu  sync.Mutex
	promoted    *Coupon
	promotedAt  time.Time
	now         func() time.Time
}

// NewValidator creates a Validator. blocklist may be nil. promotedTTL bounds
// how long a fetched promoted-coupon record is reused.
func NewValidator(checker Checker, blocklist *Blocklist, promotedTTL time.Duration) *Validator {
	return &Validator{
		checker:     checker,
		blocklist:   blocklist,
		promotedTTL: promotedTTL,
		now:         time.Now,
	}
}

// Validate checks code and, on success, returns the coupon record to price
// against and caches it as applied.
func (v *Validator) Validate(ctx context.Context, code string) (*Coupon, error) {
	if !codePattern.MatchString(code) {
		return nil, ErrInvalidCode
	}

	v.mu.Lock()
	if v.accepted != nil && v.accepted.Code == code {
		v.mu.Unlock()
		return nil, ErrAlreadyApplied
	}
	v.mu.Unlock()

	if v.blocklist != nil && v.blocklist.Contains(code) {
		return nil, ErrInvalidCode
	}

	if err := v.checker.CheckCoupon(ctx, code); err != nil {
		return nil, errors.Wrap(err, "check coupon")
	}

	promoted, err := v.Promoted(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch promoted coupon")
	}
	if promoted == nil || promoted.Code != code {
		return nil, ErrNoPromotedCoupon
	}

	applied := *promoted
	v.mu.Lock()
	v.accepted = &applied
	v.mu.Unlock()

	return &applied, nil
}

// Applied returns a copy of the currently applied coupon, or nil.
func (v *Validator) Applied() *Coupon {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.accepted == nil {
		return nil
	}
	c := *v.accepted
	return &c
}

// Reset forgets the applied coupon. Called when the cart or draft is
// cleared so the next checkout starts clean.
func (v *Validator) Reset() {
	v.mu.Lock()
	v.accepted = nil
	v.mu.Unlock()
}

// Promoted returns the currently promoted coupon, deduplicating concurrent
// fetches and reusing the last result within the TTL. Returns (nil, nil)
// when no coupon is promoted.
func (v *Validator) Promoted(ctx context.Context) (*Coupon, error) {
	v.promotedMu.Lock()
	if v.promoted != nil && v.now().Sub(v.promotedAt) < v.promotedTTL {
		c := *v.promoted
		v.promotedMu.Unlock()
		return &c, nil
	}
	v.promotedMu.Unlock()

	res, err, _ := v.group.Do("promoted", func() (any, error) {
		c, err := v.checker.FirstCoupon(ctx)
		if err != nil {
			return nil, err
		}
		v.promotedMu.Lock()
		v.promoted = c
		v.promotedAt = v.now()
		v.promotedMu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	c, _ := res.(*Coupon)
	if c == nil {
		return nil, nil
	}
	out := *c
	return &out, nil
}
