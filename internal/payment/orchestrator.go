package payment

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/geraiakik/checkout-gateway/internal/domain/checkout"
	"github.com/geraiakik/checkout-gateway/internal/invoice"
	"github.com/geraiakik/checkout-gateway/internal/upstream"
)

// ErrNoPendingPayment is returned for a callback with no payment in flight
// for the session. Stale or replayed callbacks land here.
var ErrNoPendingPayment = errors.New("no pending payment for session")

// ErrUnknownOutcome is returned for a callback outcome outside the known set.
var ErrUnknownOutcome = errors.New("unknown payment outcome")

// OrderPlacer creates orders on the storefront API.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, method checkout.PaymentMethod, req upstream.OrderRequest) (*upstream.OrderResult, error)
}

// StateCleaner wipes a session's cart, draft and applied coupon after an
// order completes.
type StateCleaner interface {
	ClearCheckout(ctx context.Context, sessionID string) error
}

// Config tunes submission behavior.
type Config struct {
	// SuccessPath is the page the customer lands on, suffixed with the
	// encoded invoice reference.
	SuccessPath string
	// ClearStateOnFailure wipes cart and draft even when order creation
	// fails. Off by default so the customer can retry without re-entering
	// everything.
	ClearStateOnFailure bool
	// Routes overrides the landing page per outcome. Unset outcomes use
	// SuccessPath, so by default success, pending and close all land on
	// the same page and the page itself presents the payment status.
	Routes map[Outcome]string
}

// Orchestrator runs order submission end to end: draft validation, widget
// gating, order creation, invoice reference encoding and state cleanup.
type Orchestrator struct {
	orders   OrderPlacer
	provider Provider
	codec    *invoice.Codec
	cleaner  StateCleaner
	cfg      Config

	mu      sync.Mutex
	pending map[string]pendingPayment
}

type pendingPayment struct {
	token      string
	invoiceRef string
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(orders OrderPlacer, provider Provider, codec *invoice.Codec, cleaner StateCleaner, cfg Config) *Orchestrator {
	if cfg.SuccessPath == "" {
		cfg.SuccessPath = "/checkout/success"
	}
	return &Orchestrator{
		orders:   orders,
		provider: provider,
		codec:    codec,
		cleaner:  cleaner,
		cfg:      cfg,
		pending:  make(map[string]pendingPayment),
	}
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	// InvoiceRef is the encoded invoice reference, safe for URLs.
	InvoiceRef string    `json:"invoice_ref"`
	OrderDate  time.Time `json:"order_date"`
	// RedirectPath is set on the manual path: the customer goes straight
	// to the landing page.
	RedirectPath string `json:"redirect_path,omitempty"`
	// Embedding is set on the automatic path: the UI mounts the widget
	// and the redirect happens on callback.
	Embedding *Embedding `json:"embedding,omitempty"`
}

// Submit places the order for the session's finalized draft.
//
// For automatic payment the widget is loaded before the order is created,
// so an unreachable widget blocks submission without side effects. For
// manual payment the session state is cleared immediately; for automatic
// it is cleared when the widget reports an outcome.
func (o *Orchestrator) Submit(ctx context.Context, sessionID string, customerID int64, draft checkout.Draft) (*SubmitResult, error) {
	if !draft.Complete() {
		return nil, checkout.ErrIncompleteDraft
	}

	if draft.PaymentMethod == checkout.PaymentAutomatic {
		if err := o.provider.Load(ctx); err != nil {
			return nil, errors.Wrap(err, "load widget")
		}
	}

	req := upstream.OrderRequest{
		CustomerID:    customerID,
		PurchaseItems: make([]upstream.PurchaseItem, 0, len(draft.Items)),
	}
	if draft.Coupon != nil {
		id := draft.Coupon.ID
		req.CouponID = &id
	}
	for _, item := range draft.Items {
		req.PurchaseItems = append(req.PurchaseItems, upstream.PurchaseItem{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			ShippingCostID: draft.Shipping.ID,
		})
	}

	res, err := o.orders.PlaceOrder(ctx, draft.PaymentMethod, req)
	if err != nil {
		if o.cfg.ClearStateOnFailure {
			if cerr := o.cleaner.ClearCheckout(ctx, sessionID); cerr != nil {
				zctx.From(ctx).Warn("Clear checkout state after failed order",
					zap.String("session_id", sessionID), zap.Error(cerr))
			}
		}
		return nil, err
	}

	ref, err := o.codec.Encode(res.InvoiceCode)
	if err != nil {
		return nil, errors.Wrap(err, "encode invoice reference")
	}
	result := &SubmitResult{
		InvoiceRef: ref,
		OrderDate:  res.OrderDate,
	}

	if draft.PaymentMethod == checkout.PaymentManual {
		o.clear(ctx, sessionID)
		result.RedirectPath = o.routeFor(OutcomeSuccess, ref)
		return result, nil
	}

	cb := Callbacks{
		OnSuccess: func(ctx context.Context) { o.settle(ctx, sessionID, OutcomeSuccess) },
		OnPending: func(ctx context.Context) { o.settle(ctx, sessionID, OutcomePending) },
		OnClose:   func(ctx context.Context) { o.settle(ctx, sessionID, OutcomeClosed) },
	}
	emb, err := o.provider.Embed(ctx, res.Payment.Token, cb)
	if err != nil {
		// The order exists upstream; the customer can still pay through
		// the redirect URL delivered with the invoice.
		return nil, errors.Wrap(err, "embed widget")
	}

	o.mu.Lock()
	o.pending[sessionID] = pendingPayment{token: res.Payment.Token, invoiceRef: ref}
	o.mu.Unlock()

	result.Embedding = emb
	return result, nil
}

func (o *Orchestrator) settle(ctx context.Context, sessionID string, outcome Outcome) {
	zctx.From(ctx).Info("Payment outcome reported",
		zap.String("session_id", sessionID),
		zap.String("outcome", string(outcome)),
	)
	o.clear(ctx, sessionID)
}

func (o *Orchestrator) clear(ctx context.Context, sessionID string) {
	if err := o.cleaner.ClearCheckout(ctx, sessionID); err != nil {
		zctx.From(ctx).Warn("Clear checkout state",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// HandleCallback resolves a widget outcome for the session and returns the
// path the customer should land on.
func (o *Orchestrator) HandleCallback(ctx context.Context, sessionID string, outcome Outcome) (string, error) {
	if !outcome.Valid() {
		return "", ErrUnknownOutcome
	}

	o.mu.Lock()
	p, ok := o.pending[sessionID]
	if ok {
		delete(o.pending, sessionID)
	}
	o.mu.Unlock()
	if !ok {
		return "", ErrNoPendingPayment
	}

	if !o.provider.Dispatch(ctx, p.token, outcome) {
		return "", ErrNoPendingPayment
	}
	return o.routeFor(outcome, p.invoiceRef), nil
}

// Cancel drops any in-flight payment for the session, e.g. when the
// customer steps back from the payment page.
func (o *Orchestrator) Cancel(sessionID string) {
	o.mu.Lock()
	p, ok := o.pending[sessionID]
	if ok {
		delete(o.pending, sessionID)
	}
	o.mu.Unlock()
	if ok {
		o.provider.Unload(p.token)
	}
}

func (o *Orchestrator) routeFor(outcome Outcome, ref string) string {
	base := o.cfg.SuccessPath
	if p, ok := o.cfg.Routes[outcome]; ok && p != "" {
		base = p
	}
	return base + "/" + ref
}
