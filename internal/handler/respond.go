package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/geraiakik/checkout-gateway/internal/domain/cart"
	"github.com/geraiakik/checkout-gateway/internal/domain/checkout"
	"github.com/geraiakik/checkout-gateway/internal/domain/coupon"
	"github.com/geraiakik/checkout-gateway/internal/payment"
	"github.com/geraiakik/checkout-gateway/internal/upstream"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func respondFieldErrors(w http.ResponseWriter, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(http.StatusBadRequest)
	e.FieldStart("message")
	e.Str("validation failed")
	e.FieldStart("errors")
	e.ObjStart()
	for _, k := range keys {
		e.FieldStart(k)
		e.Str(fields[k])
	}
	e.ObjEnd()
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(e.Bytes())
}

// respondDomainError maps typed errors onto status codes. Rule rejections
// are 422 notices the UI shows as-is; upstream outages are 502/503 and the
// customer's state is untouched.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr *upstream.ValidationError
		bErr *upstream.BusinessError
		tErr *upstream.TransientError
	)
	switch {
	case errors.Is(err, cart.ErrStockExceeded):
		respondError(w, http.StatusUnprocessableEntity, "requested quantity exceeds available stock")
	case errors.Is(err, cart.ErrInvalidItem):
		respondError(w, http.StatusBadRequest, "invalid line item")
	case errors.Is(err, coupon.ErrAlreadyApplied):
		respondError(w, http.StatusUnprocessableEntity, "coupon already applied")
	case errors.Is(err, coupon.ErrInvalidCode), errors.Is(err, coupon.ErrNoPromotedCoupon):
		respondError(w, http.StatusUnprocessableEntity, "invalid coupon code")
	case errors.Is(err, checkout.ErrIncompleteDraft):
		respondError(w, http.StatusUnprocessableEntity, checkout.ErrIncompleteDraft.Error())
	case errors.Is(err, payment.ErrWidgetUnavailable):
		respondError(w, http.StatusServiceUnavailable, "payment widget is unavailable, try again shortly")
	case errors.Is(err, payment.ErrNoPendingPayment):
		respondError(w, http.StatusNotFound, "no payment in progress")
	case errors.Is(err, payment.ErrUnknownOutcome):
		respondError(w, http.StatusBadRequest, "unknown payment outcome")
	case errors.As(err, &vErr):
		respondFieldErrors(w, vErr.Fields)
	case errors.As(err, &bErr):
		respondError(w, http.StatusUnprocessableEntity, bErr.Message)
	case errors.As(err, &tErr):
		respondError(w, http.StatusBadGateway, "storefront API is unavailable")
	default:
		zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
