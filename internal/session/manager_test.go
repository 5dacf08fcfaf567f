package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geraiakik/checkout-gateway/internal/domain/cart"
	"github.com/geraiakik/checkout-gateway/internal/domain/checkout"
	"github.com/geraiakik/checkout-gateway/internal/domain/coupon"
	"github.com/geraiakik/checkout-gateway/internal/kvstore"
)

type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type nopChecker struct{}

func (nopChecker) CheckCoupon(context.Context, string) error          { return nil }
func (nopChecker) FirstCoupon(context.Context) (*coupon.Coupon, error) { return nil, nil }

func item() cart.LineItem {
	return cart.LineItem{ProductCode: "AKK-01", ProductID: 11, Quantity: 1, MaxQuantity: 5}
}

func TestManager_GetIsStablePerSession(t *testing.T) {
	m := NewManager(newMemStore(), nopChecker{}, nil, Config{})
	t.Cleanup(m.Close)

	a := m.Get("s1")
	assert.Same(t, a, m.Get("s1"))
	assert.NotSame(t, a, m.Get("s2"))
	assert.Equal(t, 2, m.Len())
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemStore(), nopChecker{}, nil, Config{})
	t.Cleanup(m.Close)

	_, err := m.Get("s1").Cart.AddOrIncrement(ctx, item(), 1)
	require.NoError(t, err)

	assert.False(t, m.Get("s1").Cart.Read(ctx).Empty())
	assert.True(t, m.Get("s2").Cart.Read(ctx).Empty())
}

func TestManager_ClearCheckout(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemStore(), nopChecker{}, nil, Config{})
	t.Cleanup(m.Close)

	st := m.Get("s1")
	_, err := st.Cart.AddOrIncrement(ctx, item(), 1)
	require.NoError(t, err)
	_, err = st.Stepper.Next(ctx)
	require.NoError(t, err)

	require.NoError(t, m.ClearCheckout(ctx, "s1"))

	assert.True(t, st.Cart.Read(ctx).Empty())
	assert.Equal(t, checkout.StepCartReview, st.Stepper.State(ctx).Step)
	assert.Nil(t, st.Coupons.Applied())
}

func TestManager_EvictionKeepsPersistedState(t *testing.T) {
	ctx := context.Background()
	kv := newMemStore()
	m := NewManager(kv, nopChecker{}, nil, Config{
		TTL:             20 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
	})
	t.Cleanup(m.Close)

	_, err := m.Get("s1").Cart.AddOrIncrement(ctx, item(), 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.Len() == 0 },
		time.Second, 5*time.Millisecond, "idle session should be evicted")

	// The cart outlives the in-memory session.
	assert.False(t, m.Get("s1").Cart.Read(ctx).Empty())
}
