package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/sportstyle/store/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis URL for the checkout attempt store; empty uses in-process memory" flag:"redis-url"`
	Pricing     PricingConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// PricingConfig exposes the business rules as configuration. Monetary values
// are decimal strings.
type PricingConfig struct {
	FreeShippingThreshold string `default:"50"   usage:"Cart subtotal at which shipping becomes free" flag:"free-shipping-threshold"`
	ShippingFee           string `default:"5"    usage:"Flat shipping fee below the free threshold" flag:"shipping-fee"`
	TaxRate               string `default:"0.21" usage:"Tax rate applied to subtotal plus shipping" flag:"tax-rate"`
	PointsPerEuro         int    `default:"10"   usage:"Loyalty points earned per euro of order total" flag:"points-per-euro"`
	PointsToEuroRatio     int    `default:"100"  usage:"Points that convert to one euro of discount" flag:"points-to-euro"`
	MaxRedemptionFraction string `default:"0.5"  usage:"Maximum redeemable discount as a fraction of the subtotal" flag:"max-redemption-fraction"`
	MaxItemQuantity       int    `default:"10"   usage:"Per-line-item quantity cap" flag:"max-item-quantity"`
}

// CheckoutConfig controls the checkout state machine timing.
type CheckoutConfig struct {
	ReservationTTL  time.Duration `default:"30m"   usage:"How long a checkout attempt stays valid" flag:"reservation-ttl"`
	SettleBaseDelay time.Duration `default:"200ms" usage:"Base backoff delay for settlement retries" flag:"settle-base-delay"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
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
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/store/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// PricingRules converts the string-typed configuration into the pricing
// engine's decimal config, validating the decimal fields.
func (c *Config) PricingRules() (pricing.Config, error) {
	threshold, err := decimal.NewFromString(c.Pricing.FreeShippingThreshold)
	if err != nil {
		return pricing.Config{}, errors.Wrap(err, "free shipping threshold")
	}
	fee, err := decimal.NewFromString(c.Pricing.ShippingFee)
	if err != nil {
		return pricing.Config{}, errors.Wrap(err, "shipping fee")
	}
	taxRate, err := decimal.NewFromString(c.Pricing.TaxRate)
	if err != nil {
		return pricing.Config{}, errors.Wrap(err, "tax rate")
	}
	fraction, err := decimal.NewFromString(c.Pricing.MaxRedemptionFraction)
	if err != nil {
		return pricing.Config{}, errors.Wrap(err, "max redemption fraction")
	}

	return pricing.Config{
		FreeShippingThreshold: threshold,
		ShippingFee:           fee,
		TaxRate:               taxRate,
		PointsPerEuro:         c.Pricing.PointsPerEuro,
		PointsToEuroRatio:     c.Pricing.PointsToEuroRatio,
		MaxRedemptionFraction: fraction,
		MaxItemQuantity:       c.Pricing.MaxItemQuantity,
	}, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
