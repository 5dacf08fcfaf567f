package handler

import (
	"net/http"

	"github.com/geraiakik/checkout-gateway/internal/domain/checkout"
	"github.com/geraiakik/checkout-gateway/internal/payment"
)

type submitRequest struct {
	CustomerID int64 `json:"customer_id"`
}

// submit places the order for the session's finalized draft. Only reachable
// from the confirmation step.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, st := h.resolve(w, r)

	var req submitRequest
	if err := decodeBody(r, &req); err != nil || req.CustomerID <= 0 {
		respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	state := st.Stepper.State(ctx)
	if state.Step != checkout.StepConfirmAndPay {
		respondError(w, http.StatusConflict, "checkout is not at the confirmation step")
		return
	}

	result, err := h.orch.Submit(ctx, sid, req.CustomerID, state.Draft)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type callbackRequest struct {
	Outcome string `json:"outcome"`
}

func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	sid, _ := h.resolve(w, r)

	var req callbackRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	redirect, err := h.orch.HandleCallback(r.Context(), sid, payment.Outcome(req.Outcome))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect_path": redirect})
}
