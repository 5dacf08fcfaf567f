package handler

import (
	"net/http"

	"github.com/geraiakik/checkout-gateway/internal/domain/checkout"
	"github.com/geraiakik/checkout-gateway/internal/domain/pricing"
)

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	_, st := h.resolve(w, r)
	respondJSON(w, http.StatusOK, st.Stepper.State(r.Context()))
}

// nextStep advances the stepper. Progression guards live here, not in the
// stepper: an empty cart blocks leaving cart review, and a draft without
// courier and payment method blocks reaching confirmation. Crossing into
// confirmation snapshots the cart lines into the draft.
func (h *Handler) nextStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, st := h.resolve(w, r)

	state := st.Stepper.State(ctx)
	switch state.Step {
	case checkout.StepCartReview:
		if st.Cart.Read(ctx).Empty() {
			respondError(w, http.StatusUnprocessableEntity, "cart is empty")
			return
		}
	case checkout.StepShippingAndCoupon:
		if state.Draft.Shipping == nil || !state.Draft.PaymentMethod.Valid() {
			respondDomainError(w, r, checkout.ErrIncompleteDraft)
			return
		}
		items := st.Cart.Read(ctx).Items
		if _, err := st.Stepper.UpdateDraft(ctx, func(d *checkout.Draft) {
			d.Items = items
		}); err != nil {
			respondDomainError(w, r, err)
			return
		}
	}

	next, err := st.Stepper.Next(ctx)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, next)
}

func (h *Handler) prevStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, st := h.resolve(w, r)

	// Stepping back from confirmation abandons any in-flight payment.
	if st.Stepper.State(ctx).Step == checkout.StepConfirmAndPay {
		h.orch.Cancel(sid)
	}

	state, err := st.Stepper.Prev(ctx)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (h *Handler) resetCheckout(w http.ResponseWriter, r *http.Request) {
	sid, st := h.resolve(w, r)

	h.orch.Cancel(sid)
	state, err := st.Stepper.Reset(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

type updateDraftRequest struct {
	ShippingID    *int64  `json:"shipping_id,omitempty"`
	PaymentMethod *string `json:"payment_method,omitempty"`
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, st := h.resolve(w, r)

	var req updateDraftRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var shipping *checkout.ShippingOption
	if req.ShippingID != nil {
		options, err := h.shipping.ShippingCosts(ctx)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		for i := range options {
			if options[i].ID == *req.ShippingID {
				shipping = &options[i]
				break
			}
		}
		if shipping == nil {
			respondError(w, http.StatusUnprocessableEntity, "unknown shipping option")
			return
		}
	}

	if req.PaymentMethod != nil && !checkout.PaymentMethod(*req.PaymentMethod).Valid() {
		respondError(w, http.StatusUnprocessableEntity, "unknown payment method")
		return
	}

	state, err := st.Stepper.UpdateDraft(ctx, func(d *checkout.Draft) {
		if shipping != nil {
			d.Shipping = shipping
		}
		if req.PaymentMethod != nil {
			d.PaymentMethod = checkout.PaymentMethod(*req.PaymentMethod)
		}
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, st := h.resolve(w, r)

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	c, err := st.Coupons.Validate(ctx, req.Code)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	// The resolved record rides along in the draft so submission prices
	// against the same id that was validated.
	state, err := st.Stepper.UpdateDraft(ctx, func(d *checkout.Draft) {
		d.Coupon = c
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// quoteResponse is the price breakdown for the confirmation page.
type quoteResponse struct {
	pricing.Result
	Coupon   any `json:"coupon,omitempty"`
	Shipping any `json:"shipping,omitempty"`
}

func (h *Handler) getQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, st := h.resolve(w, r)

	state := st.Stepper.State(ctx)
	items := state.Draft.Items
	if len(items) == 0 {
		items = st.Cart.Read(ctx).Items
	}

	resp := quoteResponse{
		Result: pricing.Compute(items, state.Draft.Coupon, state.Draft.ShippingCost()),
	}
	if state.Draft.Coupon != nil {
		resp.Coupon = state.Draft.Coupon
	}
	if state.Draft.Shipping != nil {
		resp.Shipping = state.Draft.Shipping
	}
	respondJSON(w, http.StatusOK, resp)
}
