// Package handler exposes the checkout gateway HTTP API. Each handler
// resolves the caller's session, delegates to the domain services, and maps
// typed errors onto status codes and notice payloads.
package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/geraiakik/checkout-gateway/internal/domain/checkout"
	"github.com/geraiakik/checkout-gateway/internal/invoice"
	"github.com/geraiakik/checkout-gateway/internal/payment"
	"github.com/geraiakik/checkout-gateway/internal/session"
)

// SessionHeader carries the browser session identifier. The gateway mints
// one when the client does not send it and echoes it on every response.
const SessionHeader = "X-Session-ID"

// ShippingLister is the slice of the storefront API the handler needs for
// courier selection.
type ShippingLister interface {
	ShippingCosts(ctx context.Context) ([]checkout.ShippingOption, error)
}

// Handler serves the gateway API.
type Handler struct {
	sessions *session.Manager
	orch     *payment.Orchestrator
	shipping ShippingLister
	codec    *invoice.Codec
}

// New constructs a Handler with the required dependencies.
func New(sessions *session.Manager, orch *payment.Orchestrator, shipping ShippingLister, codec *invoice.Codec) *Handler {
	return &Handler{
		sessions: sessions,
		orch:     orch,
		shipping: shipping,
		codec:    codec,
	}
}

// Routes returns the API route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/items", h.addItem)
	mux.HandleFunc("POST /api/cart/items/{code}/decrement", h.decrementItem)
	mux.HandleFunc("DELETE /api/cart/items/{code}", h.removeItem)
	mux.HandleFunc("PUT /api/cart/customer", h.setCustomer)
	mux.HandleFunc("DELETE /api/cart", h.resetCart)

	mux.HandleFunc("GET /api/checkout", h.getCheckout)
	mux.HandleFunc("POST /api/checkout/next", h.nextStep)
	mux.HandleFunc("POST /api/checkout/prev", h.prevStep)
	mux.HandleFunc("POST /api/checkout/reset", h.resetCheckout)
	mux.HandleFunc("PUT /api/checkout/draft", h.updateDraft)
	mux.HandleFunc("POST /api/checkout/coupon", h.applyCoupon)
	mux.HandleFunc("GET /api/checkout/quote", h.getQuote)
	mux.HandleFunc("POST /api/checkout/submit", h.submit)

	mux.HandleFunc("POST /api/payment/callback", h.paymentCallback)

	mux.HandleFunc("GET /api/shipping-options", h.listShippingOptions)
	mux.HandleFunc("GET /api/coupon/promoted", h.promotedCoupon)
	mux.HandleFunc("GET /api/invoice/{ref}", h.resolveInvoice)

	return mux
}

// resolve returns the session id and its state, minting a fresh id when the
// client sent none.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (string, *session.State) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(SessionHeader, id)
	return id, h.sessions.Get(id)
}
