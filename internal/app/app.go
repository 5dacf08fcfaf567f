// Package app wires the checkout gateway together: configuration, storage,
// the storefront API client, payment orchestration, and the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/geraiakik/checkout-gateway/internal/domain/coupon"
	"github.com/geraiakik/checkout-gateway/internal/handler"
	"github.com/geraiakik/checkout-gateway/internal/invoice"
	"github.com/geraiakik/checkout-gateway/internal/kvstore"
	"github.com/geraiakik/checkout-gateway/internal/payment"
	"github.com/geraiakik/checkout-gateway/internal/session"
	"github.com/geraiakik/checkout-gateway/internal/upstream"
	"github.com/geraiakik/checkout-gateway/pkg/health"
	"github.com/geraiakik/checkout-gateway/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the gateway.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// Session state backend: file by default, PostgreSQL when configured,
	// optionally encrypted at rest.
	kv, cleanup, err := newStateStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	invoiceKey, err := cfg.InvoiceKey()
	if err != nil {
		return err
	}
	codec, err := invoice.New(invoiceKey)
	if err != nil {
		return errors.Wrap(err, "create invoice codec")
	}

	client, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
	}, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create upstream client")
	}

	var blocklist *coupon.Blocklist
	if cfg.Coupon.BlocklistPath != "" {
		blocklist, err = coupon.LoadBlocklist(cfg.Coupon.BlocklistPath)
		if err != nil {
			return errors.Wrap(err, "load coupon blocklist")
		}
		lg.Info("Coupon blocklist loaded", zap.String("path", cfg.Coupon.BlocklistPath))
	}

	sessions := session.NewManager(kv, client, blocklist, session.Config{
		TTL:         cfg.Session.TTL,
		PromotedTTL: cfg.Coupon.PromotedTTL,
	})
	defer sessions.Close()

	provider := payment.NewSnapProvider(payment.SnapConfig{
		ScriptURL:   cfg.Widget.ScriptURL,
		ClientKey:   cfg.Widget.ClientKey,
		EmbedID:     cfg.Widget.EmbedID,
		LoadTimeout: cfg.Widget.LoadTimeout,
	})
	orchestrator := payment.NewOrchestrator(client, provider, codec, sessions, payment.Config{
		SuccessPath:         cfg.Checkout.SuccessPath,
		ClearStateOnFailure: cfg.Checkout.ClearStateOnFailure,
	})

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddReadinessCheck("storefront-api", 5*time.Second,
		health.HTTPGetCheck(cfg.Upstream.BaseURL+"/shippingcost/all", 5*time.Second))
	if cfg.Widget.ScriptURL != "" {
		healthSvc.AddReadinessCheck("payment-widget", 5*time.Second,
			health.HTTPGetCheck(cfg.Widget.ScriptURL, 5*time.Second))
	}
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h := handler.New(sessions, orchestrator, client, codec)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.SessionHeader},
				ExposeHeaders:    []string{handler.SessionHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newStateStore builds the session state backend. The cleanup func closes
// whatever the backend holds open.
func newStateStore(ctx context.Context, cfg *Config) (kvstore.Store, func(), error) {
	var (
		kv      kvstore.Store
		cleanup = func() {}
	)

	if cfg.Storage.DatabaseURL != "" {
		pool, err := kvstore.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := kvstore.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		kv = kvstore.NewPostgresStore(pool)
		cleanup = pool.Close
	} else {
		store, err := kvstore.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create file store")
		}
		kv = store
	}

	storageKey, err := cfg.StorageKey()
	if err != nil {
		return nil, nil, err
	}
	if storageKey != nil {
		sealed, err := kvstore.NewSealed(kv, storageKey)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "create sealed store")
		}
		kv = sealed
	}

	return kv, cleanup, nil
}
