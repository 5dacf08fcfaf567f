package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/geraiakik/checkout-gateway/internal/domain/checkout"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(
		Config{BaseURL: srv.URL, Timeout: 5 * time.Second},
		tracenoop.NewTracerProvider(),
		noop.NewMeterProvider(),
	)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}

func TestClient_PlaceOrder(t *testing.T) {
	t.Run("automatic returns a payment session", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/order/new-transaction/automatic", r.URL.Path)
			writeJSON(t, w, http.StatusOK, `{
				"success": true,
				"data": {
					"transactions": {"snap_token": "tok-123", "snap_redirect_url": "https://pay.example/redir"},
					"schedules": {"order_date": "2025-08-01T10:00:00Z", "invoice_code": "INV/2025/08/0001"}
				}
			}`)
		}))

		got, err := c.PlaceOrder(context.Background(), checkout.PaymentAutomatic, OrderRequest{
			CustomerID:    7,
			PurchaseItems: []PurchaseItem{{ProductID: 1, Quantity: 2, ShippingCostID: 3}},
		})
		require.NoError(t, err)
		assert.Equal(t, "INV/2025/08/0001", got.InvoiceCode)
		require.NotNil(t, got.Payment)
		assert.Equal(t, "tok-123", got.Payment.Token)
	})

	t.Run("manual has no payment session", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/order/new-transaction/manual", r.URL.Path)
			writeJSON(t, w, http.StatusOK, `{
				"success": true,
				"data": {
					"transactions": {"snap_token": null, "snap_redirect_url": null},
					"schedules": {"order_date": "2025-08-01T10:00:00Z", "invoice_code": "INV/2025/08/0002"}
				}
			}`)
		}))

		got, err := c.PlaceOrder(context.Background(), checkout.PaymentManual, OrderRequest{
			PurchaseItems: []PurchaseItem{{ProductID: 1, Quantity: 1, ShippingCostID: 3}},
		})
		require.NoError(t, err)
		assert.Nil(t, got.Payment)
	})

	t.Run("field errors map to ValidationError", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, http.StatusUnprocessableEntity, `{
				"success": false,
				"errors": {"purchase_items.0.quantity": "exceeds available stock"}
			}`)
		}))

		_, err := c.PlaceOrder(context.Background(), checkout.PaymentManual, OrderRequest{})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Fields, "purchase_items.0.quantity")
	})

	t.Run("rule rejection maps to BusinessError", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, http.StatusConflict, `{"success": false, "data": {"error": "stock changed"}}`)
		}))

		_, err := c.PlaceOrder(context.Background(), checkout.PaymentManual, OrderRequest{})
		var bErr *BusinessError
		require.ErrorAs(t, err, &bErr)
		assert.Equal(t, "stock changed", bErr.Message)
	})

	t.Run("5xx maps to TransientError", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, err := c.PlaceOrder(context.Background(), checkout.PaymentManual, OrderRequest{})
		var tErr *TransientError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, http.StatusBadGateway, tErr.Status)
	})

	t.Run("connection refused maps to TransientError", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // dead endpoint

		c, err := NewClient(
			Config{BaseURL: srv.URL, Timeout: time.Second},
			tracenoop.NewTracerProvider(),
			noop.NewMeterProvider(),
		)
		require.NoError(t, err)

		_, err = c.PlaceOrder(context.Background(), checkout.PaymentManual, OrderRequest{})
		var tErr *TransientError
		assert.ErrorAs(t, err, &tErr)
	})
}

func TestClient_FirstCoupon(t *testing.T) {
	t.Run("active coupon", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/coupon/first", r.URL.Path)
			writeJSON(t, w, http.StatusOK, `{
				"success": true,
				"data": {"id": 12, "code": "HEMAT10", "type": "fixed", "discount": 10000,
					"description": "promo", "expired_at": "2025-12-31T00:00:00Z", "status": "active"}
			}`)
		}))

		got, err := c.FirstCoupon(context.Background())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(12), got.ID)
		assert.True(t, decimal.NewFromInt(10_000).Equal(got.Discount))
	})

	t.Run("no promoted coupon", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, http.StatusOK, `{"success": true, "data": null}`)
		}))

		got, err := c.FirstCoupon(context.Background())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestClient_CheckCoupon(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/coupon/check/HEMAT10" {
			writeJSON(t, w, http.StatusOK, `{"success": true, "data": null}`)
			return
		}
		writeJSON(t, w, http.StatusNotFound, `{"success": false, "message": "kupon tidak valid"}`)
	}))

	assert.NoError(t, c.CheckCoupon(context.Background(), "HEMAT10"))

	err := c.CheckCoupon(context.Background(), "BOGUS1")
	var bErr *BusinessError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, "kupon tidak valid", bErr.Message)
}

func TestClient_ShippingCosts(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shippingcost/all", r.URL.Path)
		writeJSON(t, w, http.StatusOK, `{
			"success": true,
			"data": [
				{"id": 1, "shipping_code": "JNE-REG", "name": "jne reguler", "city": "Jakarta", "cost": 15000, "area": "jabodetabek"},
				{"id": 2, "shipping_code": "SICEPAT", "name": "sicepat", "city": "Bandung", "cost": 20000, "area": "jawa barat"}
			]
		}`)
	}))

	got, err := c.ShippingCosts(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "JNE-REG", got[0].ShippingCode)
	assert.True(t, decimal.NewFromInt(20_000).Equal(got[1].Cost))
}

func TestNewClient_RejectsRelativeBaseURL(t *testing.T) {
	_, err := NewClient(
		Config{BaseURL: "api.example.com"},
		tracenoop.NewTracerProvider(),
		noop.NewMeterProvider(),
	)
	assert.Error(t, err)
}

func TestTransientError_Message(t *testing.T) {
	assert.Equal(t, "dial refused", (&TransientError{Message: "dial refused"}).Error())
	assert.True(t, errors.As(error(&TransientError{Status: 500, Message: "x"}), new(*TransientError)))
}
