// Package upstream is the typed client for the storefront REST API: order
// creation, coupon lookup and validation, and shipping costs. The gateway
// treats that API as an external collaborator reachable only through these
// methods.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/geraiakik/checkout-gateway/internal/domain/checkout"
	"github.com/geraiakik/checkout-gateway/internal/domain/coupon"
)

// Config holds the upstream connection settings.
type Config struct {
	// BaseURL is the storefront API root, e.g. https://api.example.com.
	BaseURL string
	// Timeout bounds every request. The source relied on client defaults
	// (none); here a timeout is mandatory.
	Timeout time.Duration
}

// Client calls the storefront API.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a Client with an instrumented transport.
func NewClient(cfg Config, tp trace.TracerProvider, mp metric.MeterProvider) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base URL")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base URL %q must be absolute", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(nil,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithMeterProvider(mp),
				otelhttp.WithPropagators(otel.GetTextMapPropagator()),
			),
		},
	}, nil
}

// envelope is the storefront API response wrapper.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    json.RawMessage   `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// do issues the request and decodes the envelope, classifying failures into
// the validation/business/transient buckets.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request")
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransientError{Status: resp.StatusCode, Message: "read response body"}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 500 {
			return nil, &TransientError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, &TransientError{Status: resp.StatusCode, Message: "malformed response"}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &TransientError{Status: resp.StatusCode, Message: firstMessage(env, "server error")}
	case resp.StatusCode >= 400 && len(env.Errors) > 0:
		return nil, &ValidationError{Fields: env.Errors}
	case resp.StatusCode >= 400:
		return nil, &BusinessError{Message: firstMessage(env, http.StatusText(resp.StatusCode))}
	case !env.Success:
		return nil, &BusinessError{Message: firstMessage(env, "request rejected")}
	}

	return env.Data, nil
}

func firstMessage(env envelope, fallback string) string {
	if env.Message != "" {
		return env.Message
	}
	// Some endpoints tuck the reason into data.error.
	var inner struct {
		Error string `json:"error"`
	}
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &inner) == nil && inner.Error != "" {
		return inner.Error
	}
	return fallback
}

// PurchaseItem is one order line in the order-creation payload.
type PurchaseItem struct {
	ProductID      int64 `json:"product_id"`
	Quantity       int   `json:"quantity"`
	ShippingCostID int64 `json:"shipping_cost_id"`
}

// OrderRequest is the order-creation payload.
type OrderRequest struct {
	CustomerID    int64          `json:"customer_id"`
	CouponID      *int64         `json:"coupon_id"`
	PurchaseItems []PurchaseItem `json:"purchase_items"`
}

// PaymentSession is the widget session returned for automatic payments.
type PaymentSession struct {
	Token       string `json:"snap_token"`
	RedirectURL string `json:"snap_redirect_url"`
}

// OrderResult is the order-creation outcome.
type OrderResult struct {
	InvoiceCode string
	OrderDate   time.Time
	// Payment is nil for the manual path.
	Payment *PaymentSession
}

// PlaceOrder submits the order. The payment method selects the server-side
// code path: manual (bank transfer) or automatic (widget session).
func (c *Client) PlaceOrder(ctx context.Context, method checkout.PaymentMethod, req OrderRequest) (*OrderResult, error) {
	if !method.Valid() {
		return nil, &BusinessError{Message: "unknown payment method"}
	}

	data, err := c.do(ctx, http.MethodPost, "/order/new-transaction/"+string(method), req)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Transactions struct {
			SnapToken       string `json:"snap_token"`
			SnapRedirectURL string `json:"snap_redirect_url"`
		} `json:"transactions"`
		Schedules struct {
			OrderDate   time.Time `json:"order_date"`
			InvoiceCode string    `json:"invoice_code"`
		} `json:"schedules"`
	}
	if len(data) == 0 || json.Unmarshal(data, &wire) != nil {
		return nil, ErrEmptyResponse
	}
	if wire.Schedules.InvoiceCode == "" {
		return nil, ErrEmptyResponse
	}

	result := &OrderResult{
		InvoiceCode: wire.Schedules.InvoiceCode,
		OrderDate:   wire.Schedules.OrderDate,
	}
	if method == checkout.PaymentAutomatic {
		if wire.Transactions.SnapToken == "" {
			return nil, ErrEmptyResponse
		}
		result.Payment = &PaymentSession{
			Token:       wire.Transactions.SnapToken,
			RedirectURL: wire.Transactions.SnapRedirectURL,
		}
	}
	return result, nil
}

// couponWire is the coupon record as served by the API.
type couponWire struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Type        coupon.Kind     `json:"type"`
	Discount    decimal.Decimal `json:"discount"`
	Description string          `json:"description"`
	ExpiredAt   time.Time       `json:"expired_at"`
	Status      string          `json:"status"`
}

func (w couponWire) domain() *coupon.Coupon {
	return &coupon.Coupon{
		ID:          w.ID,
		Code:        w.Code,
		Kind:        w.Type,
		Discount:    w.Discount,
		Description: w.Description,
		ExpiredAt:   w.ExpiredAt,
		Status:      w.Status,
	}
}

// FirstCoupon fetches the currently promoted coupon. Returns (nil, nil)
// when none is active.
func (c *Client) FirstCoupon(ctx context.Context) (*coupon.Coupon, error) {
	data, err := c.do(ctx, http.MethodGet, "/coupon/first", nil)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var wire couponWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(err, "decode coupon")
	}
	if wire.Code == "" {
		return nil, nil
	}
	return wire.domain(), nil
}

// CheckCoupon asks the server whether code is redeemable.
func (c *Client) CheckCoupon(ctx context.Context, code string) error {
	_, err := c.do(ctx, http.MethodGet, "/coupon/check/"+url.PathEscape(code), nil)
	return err
}

// ShippingCosts lists the available couriers and their costs.
func (c *Client) ShippingCosts(ctx context.Context) ([]checkout.ShippingOption, error) {
	data, err := c.do(ctx, http.MethodGet, "/shippingcost/all", nil)
	if err != nil {
		return nil, err
	}

	var wire []struct {
		ID           int64           `json:"id"`
		ShippingCode string          `json:"shipping_code"`
		Name         string          `json:"name"`
		City         string          `json:"city"`
		Cost         decimal.Decimal `json:"cost"`
		Area         string          `json:"area"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(err, "decode shipping costs")
	}

	options := make([]checkout.ShippingOption, len(wire))
	for i, w := range wire {
		options[i] = checkout.ShippingOption{
			ID:           w.ID,
			ShippingCode: w.ShippingCode,
			Name:         w.Name,
			City:         w.City,
			Area:         w.Area,
			Cost:         w.Cost,
		}
	}
	return options, nil
}
