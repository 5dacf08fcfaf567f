package handler

import (
	"net/http"
)

func (h *Handler) listShippingOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.shipping.ShippingCosts(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, options)
}

func (h *Handler) promotedCoupon(w http.ResponseWriter, r *http.Request) {
	_, st := h.resolve(w, r)

	c, err := st.Coupons.Promoted(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "no promoted coupon")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// resolveInvoice decodes an encoded invoice reference from a landing page
// URL back into the invoice code. Tampered or stale references are a plain
// 404, never an internal error.
func (h *Handler) resolveInvoice(w http.ResponseWriter, r *http.Request) {
	code := h.codec.Decode(r.PathValue("ref"))
	if code == "" {
		respondError(w, http.StatusNotFound, "unknown invoice reference")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"invoice_code": code})
}
