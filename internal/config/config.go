// Package config loads process configuration in layers: built-in defaults,
// an optional YAML file named by CONFIG_PATH, then environment variables.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	kenv "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/yourorg/ostrich-api/internal/env"
)

// ConfigPathEnvVar names the optional YAML file.
const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Zillow   ZillowConfig   `koanf:"zillow"`
	SendGrid SendGridConfig `koanf:"sendgrid"`
	Stripe   StripeConfig   `koanf:"stripe"`
	Auth     AuthConfig     `koanf:"auth"`
	Emailer  EmailerConfig  `koanf:"emailer"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// RateLimit is requests per minute per client IP.
	RateLimit int `koanf:"rate_limit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type ZillowConfig struct {
	Host              string        `koanf:"host"`
	Key               string        `koanf:"key"`
	BaseURL           string        `koanf:"base_url"`
	RequestsPerSecond float64       `koanf:"rps"`
	RetryMax          int           `koanf:"retry_max"`
	Timeout           time.Duration `koanf:"timeout"`
	DetailCacheTTL    time.Duration `koanf:"detail_cache_ttl"`
}

type SendGridConfig struct {
	APIKey  string `koanf:"api_key"`
	From    string `koanf:"from"`
	BaseURL string `koanf:"base_url"`
}

type StripeConfig struct {
	Secret          string `koanf:"secret"`
	SignatureSecret string `koanf:"signature_secret"`
	BaseURL         string `koanf:"base_url"`
}

type AuthConfig struct {
	// JWTSigningKey enables HS256 verification. Empty trusts the gateway.
	JWTSigningKey string `koanf:"jwt_signing_key"`
	// AdminEmails may call the cross-user endpoints. Requires JWTSigningKey.
	AdminEmails []string `koanf:"admin_emails"`
}

type EmailerConfig struct {
	Delay         time.Duration `koanf:"delay"`
	Concurrency   int           `koanf:"concurrency"`
	Schedule      string        `koanf:"schedule"`
	DaysOn        int           `koanf:"days_on"`
	PreviewSearch string        `koanf:"preview_search"`
	LockTTL       time.Duration `koanf:"lock_ttl"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080, RateLimit: 100},
		Log:    LogConfig{Level: "info", Format: "json"},
		Redis:  RedisConfig{URL: "redis://localhost:6379/0"},
		Zillow: ZillowConfig{
			Host:              "zillow-com1.p.rapidapi.com",
			RequestsPerSecond: 2,
			RetryMax:          2,
			Timeout:           6 * time.Second,
			DetailCacheTTL:    6 * time.Hour,
		},
		SendGrid: SendGridConfig{From: "listings@ostrich.app"},
		Emailer: EmailerConfig{
			Delay:       700 * time.Millisecond,
			Concurrency: 2,
			DaysOn:      1,
			LockTTL:     20 * time.Hour,
		},
	}
}

// envMappings maps upper-cased variable names to koanf paths. Variables not
// listed are ignored.
var envMappings = map[string]string{
	"PORT":                    "server.port",
	"RATE_LIMIT_PER_MINUTE":   "server.rate_limit",
	"LOG_LEVEL":               "log.level",
	"LOG_FORMAT":              "log.format",
	"DATABASE_URL":            "database.url",
	"REDIS_URL":               "redis.url",
	"ZILLOW_API_HOST":         "zillow.host",
	"ZILLOW_API_KEY":          "zillow.key",
	"ZILLOW_BASE_URL":         "zillow.base_url",
	"ZILLOW_RPS":              "zillow.rps",
	"ZILLOW_RETRY_MAX":        "zillow.retry_max",
	"ZILLOW_TIMEOUT":          "zillow.timeout",
	"DETAIL_CACHE_TTL":        "zillow.detail_cache_ttl",
	"SENDGRID_API_KEY":        "sendgrid.api_key",
	"SENDGRID_FROM":           "sendgrid.from",
	"SENDGRID_BASE_URL":       "sendgrid.base_url",
	"STRIPE_SECRET":           "stripe.secret",
	"STRIPE_SIGNATURE_SECRET": "stripe.signature_secret",
	"STRIPE_BASE_URL":         "stripe.base_url",
	"JWT_SIGNING_KEY":         "auth.jwt_signing_key",
	"ADMIN_EMAILS":            "auth.admin_emails",
	"EMAILER_DELAY":           "emailer.delay",
	"EMAILER_CONCURRENCY":     "emailer.concurrency",
	"EMAILER_SCHEDULE":        "emailer.schedule",
	"EMAILER_DAYS_ON":         "emailer.days_on",
	"EMAILER_PREVIEW_SEARCH":  "emailer.preview_search",
	"EMAILER_LOCK_TTL":        "emailer.lock_ttl",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToUpper(key)]
}

// Load builds the configuration. Precedence is env > file > defaults.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(kenv.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitListField(k, "auth.admin_emails"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// splitListField turns a comma separated string from the environment into
// a list. Lists from YAML are left alone.
func splitListField(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok || s == "" {
		return nil
	}
	out := env.SplitList(s)
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// Validate checks the values every binary needs. Credentials are checked by
// the binary that uses them.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Zillow.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("zillow.rps must not be negative"))
	}
	if c.Emailer.Delay < 0 {
		errs = append(errs, errors.New("emailer.delay must not be negative"))
	}
	if c.Emailer.Concurrency < 1 {
		errs = append(errs, errors.New("emailer.concurrency must be at least 1"))
	}
	if c.Emailer.DaysOn < 0 {
		errs = append(errs, errors.New("emailer.days_on must not be negative"))
	}
	return errors.Join(errs...)
}

// RequireDatabase reports a missing DATABASE_URL.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}

// RequireMail reports missing SendGrid credentials.
func (c *Config) RequireMail() error {
	var errs []error
	if c.SendGrid.APIKey == "" {
		errs = append(errs, errors.New("SENDGRID_API_KEY is required"))
	}
	if c.SendGrid.From == "" {
		errs = append(errs, errors.New("SENDGRID_FROM is required"))
	}
	return errors.Join(errs...)
}

// RequireZillow reports a missing RapidAPI key.
func (c *Config) RequireZillow() error {
	if c.Zillow.Key == "" {
		return errors.New("ZILLOW_API_KEY is required")
	}
	return nil
}
