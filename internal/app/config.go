package app

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete gateway configuration, loadable from
// environment variables (GERAI_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"Gateway listen address"`
	Upstream  UpstreamConfig
	Widget    WidgetConfig
	Invoice   InvoiceConfig
	Storage   StorageConfig
	Checkout  CheckoutConfig
	Coupon    CouponConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// UpstreamConfig points the gateway at the storefront API.
type UpstreamConfig struct {
	BaseURL string        `usage:"Storefront API base URL (GERAI_UPSTREAM_BASE_URL)" flag:"upstream-base-url"`
	Timeout time.Duration `default:"10s" usage:"Per-request timeout for storefront API calls"`
}

// WidgetConfig configures the embedded payment widget.
type WidgetConfig struct {
	ScriptURL   string        `usage:"Payment widget bootstrap script URL" flag:"widget-script-url"`
	ClientKey   string        `usage:"Payment widget client key (GERAI_WIDGET_CLIENT_KEY)" flag:"widget-client-key"`
	EmbedID     string        `default:"snap-midtrans" usage:"DOM container id the UI mounts the widget into"`
	LoadTimeout time.Duration `default:"10s" usage:"How long to wait for the widget script before giving up"`
}

// InvoiceConfig configures invoice reference encoding.
type InvoiceConfig struct {
	// Key is hex-encoded and must decode to 16, 24 or 32 bytes.
	Key string `usage:"Hex-encoded AES key for invoice references (GERAI_INVOICE_KEY)" flag:"invoice-key"`
}

// StorageConfig selects the session state backend. DatabaseURL switches
// from the default file backend to PostgreSQL.
type StorageConfig struct {
	Dir         string `default:"./data/state" usage:"Directory for file-backed session state"`
	DatabaseURL string `usage:"PostgreSQL URL for shared session state (GERAI_STORAGE_DATABASE_URL)" flag:"database-url"`
	// Key is hex-encoded, 32 bytes decoded. When set, state is encrypted
	// at rest.
	Key string `usage:"Hex-encoded XChaCha20-Poly1305 key for state encryption" flag:"storage-key"`
}

// CheckoutConfig tunes submission behavior.
type CheckoutConfig struct {
	SuccessPath         string `default:"/checkout/success" usage:"Landing page prefix for completed orders" flag:"success-path"`
	ClearStateOnFailure bool   `default:"false" usage:"Wipe cart and draft even when order creation fails" flag:"clear-state-on-failure"`
}

// CouponConfig tunes coupon validation.
type CouponConfig struct {
	BlocklistPath string        `usage:"Serialized bloom filter of blocked coupon codes" flag:"coupon-blocklist"`
	PromotedTTL   time.Duration `default:"1m" usage:"How long a fetched promoted-coupon record is reused"`
}

// SessionConfig tunes the in-memory session registry.
type SessionConfig struct {
	TTL time.Duration `default:"30m" usage:"Idle time before a session is evicted from memory"`
}

// RateLimitConfig controls the per-session rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GERAI",
		Files:     []string{"config.yaml", "/etc/gerai/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Upstream.BaseURL == "" {
		return nil, errors.New("storefront API URL is required: set GERAI_UPSTREAM_BASE_URL")
	}
	if cfg.Invoice.Key == "" {
		return nil, errors.New("invoice key is required: set GERAI_INVOICE_KEY")
	}
	if _, err := cfg.InvoiceKey(); err != nil {
		return nil, err
	}
	if _, err := cfg.StorageKey(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// InvoiceKey decodes the configured invoice key.
func (c *Config) InvoiceKey() ([]byte, error) {
	key, err := hex.DecodeString(c.Invoice.Key)
	if err != nil {
		return nil, errors.Wrap(err, "decode invoice key")
	}
	return key, nil
}

// StorageKey decodes the optional state encryption key. Returns (nil, nil)
// when encryption is off.
func (c *Config) StorageKey() ([]byte, error) {
	if c.Storage.Key == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Storage.Key)
	if err != nil {
		return nil, errors.Wrap(err, "decode storage key")
	}
	return key, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) onto the GERAI_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
