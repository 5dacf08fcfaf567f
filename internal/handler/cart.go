package handler

import (
	"net/http"

	"github.com/geraiakik/checkout-gateway/internal/domain/cart"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	_, st := h.resolve(w, r)
	respondJSON(w, http.StatusOK, st.Cart.Read(r.Context()))
}

type addItemRequest struct {
	Item  cart.LineItem `json:"item"`
	Delta int           `json:"delta,omitempty"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	_, st := h.resolve(w, r)

	var req addItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	c, err := st.Cart.AddOrIncrement(r.Context(), req.Item, req.Delta)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) decrementItem(w http.ResponseWriter, r *http.Request) {
	_, st := h.resolve(w, r)

	c, err := st.Cart.Decrement(r.Context(), r.PathValue("code"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	_, st := h.resolve(w, r)

	c, err := st.Cart.Remove(r.Context(), r.PathValue("code"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) setCustomer(w http.ResponseWriter, r *http.Request) {
	_, st := h.resolve(w, r)

	var req struct {
		CustomerID string `json:"customer_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.CustomerID == "" {
		respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	c, err := st.Cart.SetCustomer(r.Context(), req.CustomerID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// resetCart wipes the cart and any checkout progress built on top of it. A
// draft referencing a gone cart would otherwise survive and price stale items.
func (h *Handler) resetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, st := h.resolve(w, r)

	h.orch.Cancel(sid)
	if err := st.Cart.Reset(ctx); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := st.Stepper.Clear(ctx); err != nil {
		respondDomainError(w, r, err)
		return
	}
	st.Coupons.Reset()
	w.WriteHeader(http.StatusNoContent)
}
