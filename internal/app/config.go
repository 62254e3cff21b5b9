package app

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
)

// Config holds the application configuration, read from the environment.
type Config struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseFile string `env:"DATABASE_FILE" envDefault:"webtoon.db"`
	// CatalogDatabaseURL moves the catalog to PostgreSQL when set.
	CatalogDatabaseURL string `env:"CATALOG_DATABASE_URL"`

	Issuer         string `env:"AUTH_ISSUER" envDefault:"webtoon"`
	Algorithm      string `env:"AUTH_ALGORITHM" envDefault:"HS256"`
	AccessSecret   string `env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret  string `env:"REFRESH_TOKEN_SECRET"`
	AccessKeyFile  string `env:"ACCESS_KEY_FILE"`
	RefreshKeyFile string `env:"REFRESH_KEY_FILE"`
	AccessTTLSec   int    `env:"ACCESS_TOKEN_TTL_SEC" envDefault:"600"`
	RefreshTTLDays int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"30"`
	PepperFile     string `env:"AUTH_PEPPER_FILE" envDefault:"pepper.key"`

	HousekeepingInterval time.Duration `env:"AUTH_HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	CookieDomain       string `env:"COOKIE_DOMAIN"`
	AllowOAuthSignup   bool   `env:"OAUTH_ALLOW_SIGNUP" envDefault:"true"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`
	AdminEmail         string `env:"ADMIN_EMAIL"`

	RedisURL           string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	CrawlerEnabled     bool          `env:"CRAWLER_ENABLED" envDefault:"false"`
	CrawlerBaseURL     string        `env:"CRAWLER_BASE_URL" envDefault:"https://one-manga.com"`
	CrawlerConcurrency int           `env:"CRAWLER_CONCURRENCY" envDefault:"2"`
	CrawlerRateMax     int           `env:"CRAWLER_RATE_MAX" envDefault:"5"`
	CrawlerRateWindow  time.Duration `env:"CRAWLER_RATE_WINDOW" envDefault:"1s"`
	CrawlerJobTimeout  time.Duration `env:"CRAWLER_JOB_TIMEOUT" envDefault:"60s"`

	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaAuditTopic   string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"auth.audit"`
	KafkaCatalogTopic string   `env:"KAFKA_CATALOG_TOPIC" envDefault:"catalog.events"`

	OTelEnabled  bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampling float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	RateLimitStrict   RateLimitEnv `envPrefix:"RATELIMIT_STRICT_"`
	RateLimitModerate RateLimitEnv `envPrefix:"RATELIMIT_MODERATE_"`
	RateLimitLenient  RateLimitEnv `envPrefix:"RATELIMIT_LENIENT_"`
	RateLimitPublic   RateLimitEnv `envPrefix:"RATELIMIT_PUBLIC_"`

	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"15s"`
}

// RateLimitEnv overrides one rate limit profile. Zero fields keep the default.
type RateLimitEnv struct {
	Requests  int `env:"REQUESTS"`
	WindowSec int `env:"WINDOW_SEC"`
	Burst     int `env:"BURST"`
}

func (e RateLimitEnv) config() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{
		RequestsPerWindow: e.Requests,
		Window:            time.Duration(e.WindowSec) * time.Second,
		Burst:             e.Burst,
	}
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (Config, error) {
	return loadConfig(env.Options{})
}

func loadConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Production() bool {
	return c.Env == "production"
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLSec) * time.Second
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// GoogleEnabled reports whether all Google sign-in settings are present.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleCallbackURL != ""
}

// RateLimits applies the RATELIMIT_* overrides to the default profiles.
func (c Config) RateLimits() httpx.RateLimitProfiles {
	p := httpx.DefaultRateLimitProfiles()
	p.Strict = p.Strict.Override(c.RateLimitStrict.config())
	p.Moderate = p.Moderate.Override(c.RateLimitModerate.config())
	p.Lenient = p.Lenient.Override(c.RateLimitLenient.config())
	p.Public = p.Public.Override(c.RateLimitPublic.config())
	return p
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Algorithm {
	case jwtx.AlgorithmHS256:
		if c.AccessSecret == "" || c.RefreshSecret == "" {
			errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required for HS256"))
		} else if c.AccessSecret == c.RefreshSecret {
			errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
		}
	case jwtx.AlgorithmEdDSA:
	default:
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM %q is not supported", c.Algorithm))
	}

	if c.AccessTTLSec <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL_SEC must be positive"))
	}
	if c.RefreshTTLDays <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL_DAYS must be positive"))
	}
	if c.DatabaseFile == "" {
		errs = append(errs, errors.New("DATABASE_FILE is required"))
	}

	anyGoogle := c.GoogleClientID != "" || c.GoogleClientSecret != "" || c.GoogleCallbackURL != ""
	if anyGoogle && !c.GoogleEnabled() {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_CALLBACK_URL must be set together"))
	}

	if c.CrawlerEnabled {
		if u, err := url.Parse(c.CrawlerBaseURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("CRAWLER_BASE_URL %q is not an absolute URL", c.CrawlerBaseURL))
		}
		if c.CrawlerConcurrency <= 0 {
			errs = append(errs, errors.New("CRAWLER_CONCURRENCY must be positive"))
		}
		if c.CrawlerRateMax <= 0 || c.CrawlerRateWindow <= 0 {
			errs = append(errs, errors.New("CRAWLER_RATE_MAX and CRAWLER_RATE_WINDOW must be positive"))
		}
		if c.CrawlerJobTimeout <= 0 {
			errs = append(errs, errors.New("CRAWLER_JOB_TIMEOUT must be positive"))
		}
	}

	if c.OTelSampling < 0 || c.OTelSampling > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATE must be within 0..1"))
	}

	return errors.Join(errs...)
}
