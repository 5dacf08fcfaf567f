// Package session scopes cart, checkout draft and coupon state to one
// browser session, identified by the X-Session-ID header.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/geraiakik/checkout-gateway/internal/domain/cart"
	"github.com/geraiakik/checkout-gateway/internal/domain/checkout"
	"github.com/geraiakik/checkout-gateway/internal/domain/coupon"
	"github.com/geraiakik/checkout-gateway/internal/kvstore"
)

// Config tunes session lifetime.
type Config struct {
	// TTL evicts idle sessions from memory. Carts and drafts live in the
	// key-value store and survive eviction; only the in-memory coupon
	// cache is forgotten, so a returning customer revalidates their code.
	TTL time.Duration
	// CleanupInterval is how often idle sessions are swept.
	CleanupInterval time.Duration
	// PromotedTTL is passed through to each session's coupon validator.
	PromotedTTL time.Duration
}

// State is everything the gateway tracks for one session.
type State struct {
	Cart    *cart.Store
	Stepper *checkout.Stepper
	Coupons *coupon.Validator

	lastSeen time.Time
}

// Manager hands out session state, creating it lazily and evicting it
// after the idle TTL.
type Manager struct {
	kv        kvstore.Store
	checker   coupon.Checker
	blocklist *coupon.Blocklist
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*State

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager and starts its eviction sweep. Call Close
// on shutdown. blocklist may be nil.
func NewManager(kv kvstore.Store, checker coupon.Checker, blocklist *coupon.Blocklist, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	m := &Manager{
		kv:        kv,
		checker:   checker,
		blocklist: blocklist,
		cfg:       cfg,
		sessions:  make(map[string]*State),
		stop:      make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Get returns the state for sessionID, creating it on first use.
func (m *Manager) Get(sessionID string) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[sessionID]
	if !ok {
		st = &State{
			Cart:    cart.NewStore(m.kv, "cart:"+sessionID),
			Stepper: checkout.NewStepper(m.kv, "checkout:"+sessionID),
			Coupons: coupon.NewValidator(m.checker, m.blocklist, m.cfg.PromotedTTL),
		}
		m.sessions[sessionID] = st
	}
	st.lastSeen = time.Now()
	return st
}

// ClearCheckout wipes the session's cart, draft and applied coupon. Used
// after an order completes.
func (m *Manager) ClearCheckout(ctx context.Context, sessionID string) error {
	st := m.Get(sessionID)
	if err := st.Cart.Reset(ctx); err != nil {
		return errors.Wrap(err, "reset cart")
	}
	if err := st.Stepper.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear draft")
	}
	st.Coupons.Reset()
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) sweep() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for id, st := range m.sessions {
				if now.Sub(st.lastSeen) > m.cfg.TTL {
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close stops the eviction sweep.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}
