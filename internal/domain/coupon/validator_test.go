package coupon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	checkErr   error
	checkCalls atomic.Int32

	first      *Coupon
	firstErr   error
	firstCalls atomic.Int32
}

func (f *fakeChecker) CheckCoupon(_ context.Context, _ string) error {
	f.checkCalls.Add(1)
	return f.checkErr
}

func (f *fakeChecker) FirstCoupon(_ context.Context) (*Coupon, error) {
	f.firstCalls.Add(1)
	return f.first, f.firstErr
}

func promotedCoupon() *Coupon {
	return &Coupon{
		ID:       12,
		Code:     "HEMAT10",
		Kind:     KindFixed,
		Discount: decimal.NewFromInt(10_000),
		Status:   "active",
	}
}

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted code resolves to the promoted record with its id", func(t *testing.T) {
		checker := &fakeChecker{first: promotedCoupon()}
		v := NewValidator(checker, nil, time.Minute)

		got, err := v.Validate(ctx, "HEMAT10")
		require.NoError(t, err)
		assert.Equal(t, int64(12), got.ID)
		assert.Equal(t, KindFixed, got.Kind)
	})

	t.Run("repeat of the accepted code fails fast without a network call", func(t *testing.T) {
		checker := &fakeChecker{first: promotedCoupon()}
		v := NewValidator(checker, nil, time.Minute)

		_, err := v.Validate(ctx, "HEMAT10")
		require.NoError(t, err)
		callsAfterFirst := checker.checkCalls.Load()

		_, err = v.Validate(ctx, "HEMAT10")
		assert.ErrorIs(t, err, ErrAlreadyApplied)
		assert.Equal(t, callsAfterFirst, checker.checkCalls.Load())
	})

	t.Run("malformed code rejected locally", func(t *testing.T) {
		checker := &fakeChecker{first: promotedCoupon()}
		v := NewValidator(checker, nil, time.Minute)

		for _, code := range []string{"", "hemat10", "HEMAT 10", "HEMAT-10"} {
			_, err := v.Validate(ctx, code)
			assert.ErrorIs(t, err, ErrInvalidCode, "code %q", code)
		}
		assert.Zero(t, checker.checkCalls.Load())
	})

	t.Run("server rejection propagates", func(t *testing.T) {
		checker := &fakeChecker{checkErr: errors.New("410: expired")}
		v := NewValidator(checker, nil, time.Minute)

		_, err := v.Validate(ctx, "EXPIRED1")
		assert.Error(t, err)
		assert.Nil(t, v.Applied())
	})

	t.Run("accepted code without matching promoted record", func(t *testing.T) {
		checker := &fakeChecker{first: promotedCoupon()}
		v := NewValidator(checker, nil, time.Minute)

		_, err := v.Validate(ctx, "OTHER99")
		assert.ErrorIs(t, err, ErrNoPromotedCoupon)
	})

	t.Run("blocklisted code rejected without a network call", func(t *testing.T) {
		filter := bloom.NewWithEstimates(1000, 0.001)
		filter.AddString("LEAKED99")
		checker := &fakeChecker{first: promotedCoupon()}
		v := NewValidator(checker, NewBlocklist(filter), time.Minute)

		_, err := v.Validate(ctx, "LEAKED99")
		assert.ErrorIs(t, err, ErrInvalidCode)
		assert.Zero(t, checker.checkCalls.Load())
	})
}

func TestValidator_Reset(t *testing.T) {
	ctx := context.Background()
	checker := &fakeChecker{first: promotedCoupon()}
	v := NewValidator(checker, nil, time.Minute)

	_, err := v.Validate(ctx, "HEMAT10")
	require.NoError(t, err)
	require.NotNil(t, v.Applied())

	v.Reset()
	assert.Nil(t, v.Applied())

	// The same code can be applied again after a reset.
	_, err = v.Validate(ctx, "HEMAT10")
	assert.NoError(t, err)
}

func TestValidator_PromotedCachedWithinTTL(t *testing.T) {
	ctx := context.Background()
	checker := &fakeChecker{first: promotedCoupon()}
	v := NewValidator(checker, nil, time.Minute)

	fixed := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return fixed }

	for range 5 {
		_, err := v.Promoted(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), checker.firstCalls.Load())

	// Past the TTL the record is refetched.
	v.now = func() time.Time { return fixed.Add(2 * time.Minute) }
	_, err := v.Promoted(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), checker.firstCalls.Load())
}

func TestValidator_PromotedNilWhenNoneActive(t *testing.T) {
	v := NewValidator(&fakeChecker{}, nil, time.Minute)

	got, err := v.Promoted(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}
