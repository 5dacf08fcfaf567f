package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/geraiakik/checkout-gateway/internal/kvstore"
)

// Store mutates one customer's cart against the persistence port.
//
// Every mutation is a read-modify-write cycle. The cycle is not atomic at
// the storage level, so a mutex serializes mutations: two rapid add-to-cart
// calls must not both read the pre-mutation snapshot and silently lose a
// unit.
type Store struct {
	mu  sync.Mutex
	kv  kvstore.Store
	key string
}

// NewStore returns a cart store persisting under the given storage key.
func NewStore(kv kvstore.Store, key string) *Store {
	return &Store{kv: kv, key: key}
}

// Read returns the current persisted cart. Empty or unrecoverable storage
// yields an empty cart, never an error the caller has to branch on.
func (s *Store) Read(ctx context.Context) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

func (s *Store) read(ctx context.Context) Cart {
	var c Cart
	if err := kvstore.GetJSON(ctx, s.kv, s.key, &c); err != nil {
		return Cart{Items: []LineItem{}}
	}
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	return c
}

func (s *Store) write(ctx context.Context, c Cart) error {
	if err := kvstore.SetJSON(ctx, s.kv, s.key, c); err != nil {
		return errors.Wrap(err, "persist cart")
	}
	return nil
}

// AddOrIncrement adds item to the cart or bumps its quantity by delta when
// the product code is already present. A new product always enters with
// quantity 1 regardless of delta. Incrementing past MaxQuantity returns
// ErrStockExceeded and leaves the cart unchanged.
func (s *Store) AddOrIncrement(ctx context.Context, item LineItem, delta int) (Cart, error) {
	if item.ProductCode == "" || item.MaxQuantity < 1 {
		return Cart{}, ErrInvalidItem
	}
	if delta < 1 {
		delta = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.read(ctx)
	if i := c.find(item.ProductCode); i >= 0 {
		if c.Items[i].Quantity+delta > c.Items[i].MaxQuantity {
			return c, ErrStockExceeded
		}
		c.Items[i].Quantity += delta
	} else {
		item.Quantity = 1
		c.Items = append(c.Items, item)
	}

	if err := s.write(ctx, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// Decrement lowers the quantity of the line item with the given product
// code, removing the line entirely when it would drop below 1. Unknown
// codes are a no-op.
func (s *Store) Decrement(ctx context.Context, code string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.read(ctx)
	i := c.find(code)
	if i < 0 {
		return c, nil
	}

	if c.Items[i].Quantity > 1 {
		c.Items[i].Quantity--
	} else {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}

	if err := s.write(ctx, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// Remove drops the line item with the given product code unconditionally.
func (s *Store) Remove(ctx context.Context, code string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.read(ctx)
	if i := c.find(code); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		if err := s.write(ctx, c); err != nil {
			return Cart{}, err
		}
	}
	return c, nil
}

// SetCustomer binds the cart to a customer identifier.
func (s *Store) SetCustomer(ctx context.Context, customerID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.read(ctx)
	c.CustomerID = customerID
	if err := s.write(ctx, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// Reset clears the cart from storage. The next Read returns an empty cart.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, s.key); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
