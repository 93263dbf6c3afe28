package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (COURIER_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (COURIER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Redis       RedisConfig
	Geocoder    GeocoderConfig
	Directions  DirectionsConfig
	Coupon      CouponConfig
	Cart        CartConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// RedisConfig locates the cart snapshot store.
type RedisConfig struct {
	URL string `usage:"Redis URL (COURIER_REDIS_URL or REDIS_URL)" flag:"redis-url"`
}

// GeocoderConfig configures the Mapbox geocoding client.
type GeocoderConfig struct {
	BaseURL     string        `default:"https://api.mapbox.com" usage:"Mapbox API base URL"`
	AccessToken string        `usage:"Mapbox access token" flag:"mapbox-token"`
	Country     string        `default:"" usage:"Restrict geocoding to ISO country codes, comma separated"`
	Region      string        `default:"" usage:"Region appended to delivery address queries, e.g. \"Lima, Peru\""`
	Timeout     time.Duration `default:"5s" usage:"Geocoding request timeout"`
}

// DirectionsConfig configures the OSRM-compatible directions client.
type DirectionsConfig struct {
	BaseURL string        `default:"https://router.project-osrm.org" usage:"Directions service base URL"`
	Profile string        `default:"driving" usage:"Routing profile"`
	Timeout time.Duration `default:"5s" usage:"Route request timeout"`
}

// CouponConfig configures the coupon validation service client.
type CouponConfig struct {
	URL     string        `usage:"Coupon validation endpoint" flag:"coupon-url"`
	Timeout time.Duration `default:"3s" usage:"Coupon validation timeout"`
}

// CartConfig controls cart session persistence.
type CartConfig struct {
	SnapshotTTL   time.Duration `default:"168h" usage:"Lifetime of a stored cart snapshot"`
	SaveDebounce  time.Duration `default:"500ms" usage:"Quiet period before a changed cart is saved"`
	SaveTimeout   time.Duration `default:"3s" usage:"Timeout of a single snapshot write"`
	IdleEviction  time.Duration `default:"30m" usage:"Drop in-memory carts unused for this long"`
	EvictInterval time.Duration `default:"1m" usage:"How often idle carts are evicted"`
}

// RateLimitConfig controls the per-client token bucket guarding the quote
// and checkout routes.
type RateLimitConfig struct {
	Rate    float64       `default:"2" usage:"Sustained requests per second per client"`
	Burst   int           `default:"10" usage:"Burst size per client"`
	IdleTTL time.Duration `default:"10m" usage:"Forget clients idle for this long"`
	// TrustForwardedFor keys clients by X-Forwarded-For. Enable only behind a
	// proxy that overwrites the header.
	TrustForwardedFor bool `default:"true" usage:"Key clients by the first X-Forwarded-For entry"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "COURIER",
		Files:     []string{"config.yaml", "/etc/courier/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set COURIER_DATABASE_URL or DATABASE_URL")
	case c.Redis.URL == "":
		return errors.New("redis URL is required: set COURIER_REDIS_URL or REDIS_URL")
	case c.Coupon.URL == "":
		return errors.New("coupon service URL is required: set COURIER_COUPON_URL")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL, REDIS_URL and PORT to the
// COURIER_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
