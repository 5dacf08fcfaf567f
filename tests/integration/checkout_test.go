//go:build integration

package integration

import (
	"net/http"
	"testing"
)

// TestCheckoutFlow drives a full purchase through the gateway: cart, step
// progression, courier and coupon selection, quote, and manual submission.
func TestCheckoutFlow(t *testing.T) {
	sid := "it-flow-1"

	// Two units in the cart.
	for range 2 {
		resp := doReq(t, http.MethodPost, "/api/cart/items", sid, sampleItem())
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add item: status %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	cart := decodeJSON[cartResponse](t, doReq(t, http.MethodGet, "/api/cart", sid, nil))
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("cart = %+v, want one line with quantity 2", cart)
	}

	// Into shipping selection.
	state := decodeJSON[checkoutState](t, doReq(t, http.MethodPost, "/api/checkout/next", sid, nil))
	if state.Step != 1 {
		t.Fatalf("step = %d, want 1", state.Step)
	}

	// Courier + manual payment.
	resp := doReq(t, http.MethodPut, "/api/checkout/draft", sid, map[string]any{
		"shipping_id":    3,
		"payment_method": "manual",
	})
	state = decodeJSON[checkoutState](t, resp)
	if state.Draft.Shipping == nil || state.Draft.Shipping.ID != 3 {
		t.Fatalf("draft shipping = %+v, want id 3", state.Draft.Shipping)
	}

	// Coupon, served by the stub.
	state = decodeJSON[checkoutState](t, doReq(t, http.MethodPost, "/api/checkout/coupon", sid, map[string]string{"code": "HEMAT10"}))
	if state.Draft.Coupon == nil || state.Draft.Coupon.ID != 12 {
		t.Fatalf("draft coupon = %+v, want id 12", state.Draft.Coupon)
	}

	// Into confirmation; the cart is snapshotted into the draft.
	state = decodeJSON[checkoutState](t, doReq(t, http.MethodPost, "/api/checkout/next", sid, nil))
	if state.Step != 2 || len(state.Draft.Items) != 1 {
		t.Fatalf("state = %+v, want step 2 with snapshotted items", state)
	}

	// 2 × 20,000 − 10,000 + 15,000.
	quote := decodeJSON[quoteResponse](t, doReq(t, http.MethodGet, "/api/checkout/quote", sid, nil))
	if quote.Total != "45000" {
		t.Fatalf("total = %q, want 45000", quote.Total)
	}

	// Manual submission redirects immediately.
	submit := decodeJSON[submitResponse](t, doReq(t, http.MethodPost, "/api/checkout/submit", sid, map[string]any{"customer_id": 7}))
	if submit.InvoiceRef == "" || submit.RedirectPath != "/checkout/success/"+submit.InvoiceRef {
		t.Fatalf("submit = %+v", submit)
	}
	if submit.Embedding != nil {
		t.Fatalf("manual submission must not return a widget embedding")
	}

	// The landing page resolves the reference back to the invoice code.
	invoice := decodeJSON[map[string]string](t, doReq(t, http.MethodGet, "/api/invoice/"+submit.InvoiceRef, sid, nil))
	if invoice["invoice_code"] != "INV/2025/08/0001" {
		t.Fatalf("invoice = %v", invoice)
	}

	// State is wiped for the next purchase.
	cart = decodeJSON[cartResponse](t, doReq(t, http.MethodGet, "/api/cart", sid, nil))
	if len(cart.Items) != 0 {
		t.Fatalf("cart not cleared after submission: %+v", cart)
	}
	state = decodeJSON[checkoutState](t, doReq(t, http.MethodGet, "/api/checkout", sid, nil))
	if state.Step != 0 {
		t.Fatalf("step = %d after submission, want 0", state.Step)
	}
}

func TestStockBound(t *testing.T) {
	sid := "it-stock-1"

	item := map[string]any{
		"item": map[string]any{
			"product_code": "AKK-02",
			"product_id":   12,
			"title":        "sensor dht22",
			"unit_price":   "35000",
			"max_quantity": 1,
		},
	}

	resp := doReq(t, http.MethodPost, "/api/cart/items", sid, item)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first add: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, "/api/cart/items", sid, item)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("second add: status %d, want 422", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Message == "" {
		t.Fatal("stock notice should carry a message")
	}
}

func TestEmptyCartBlocksCheckout(t *testing.T) {
	resp := doReq(t, http.MethodPost, "/api/checkout/next", "it-empty-1", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestInvalidCouponCode(t *testing.T) {
	sid := "it-coupon-1"

	resp := doReq(t, http.MethodPost, "/api/checkout/coupon", sid, map[string]string{"code": "BOGUS1"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestShippingOptions(t *testing.T) {
	options := decodeJSON[[]map[string]any](t, doReq(t, http.MethodGet, "/api/shipping-options", "it-ship-1", nil))
	if len(options) == 0 {
		t.Fatal("no shipping options")
	}
}
