// Package config loads process configuration from the environment.
//
// Credentials for the commerce platform and the push gateway are optional at
// startup. Components check them on first use and report a configuration
// error to the caller instead.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string        `env:"HTTP_ADDR,default=:3001"`
	Environment string        `env:"APP_ENV,default=development"`
	HTTPTimeout time.Duration `env:"OUTBOUND_HTTP_TIMEOUT,default=15s"`

	Commerce Commerce
	Push     Push

	RedisAddr    string `env:"REDIS_ADDR"`
	KafkaBrokers string `env:"KAFKA_BROKERS"`

	SubmissionLogDriver string `env:"SUBMISSION_LOG_DRIVER,default=sqlite"`
	SubmissionLogDSN    string `env:"SUBMISSION_LOG_DSN,default=./data/submissions.db"`

	NotifyRatePerSecond int `env:"NOTIFY_RATE_PER_SECOND,default=5"`
	NotifyRateBurst     int `env:"NOTIFY_RATE_BURST,default=10"`

	// CORSOrigins is a comma-separated allow list; "*" allows any origin.
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`

	OTelEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME,default=storefront-api"`
}

// Commerce holds the Shopify Admin API settings.
type Commerce struct {
	StoreDomain string `env:"SHOPIFY_STORE_DOMAIN"`
	APIVersion  string `env:"SHOPIFY_API_VERSION,default=2025-01"`
	AccessToken string `env:"SHOPIFY_ADMIN_API_TOKEN"`

	CountryName string `env:"MERCHANT_COUNTRY,default=Pakistan"`
	CountryCode string `env:"MERCHANT_COUNTRY_CODE,default=PK"`
	OrderTag    string `env:"ORDER_TAG,default=storefront-app"`
}

// Configured reports whether the credentials needed to call the API are set.
func (c Commerce) Configured() bool {
	return c.StoreDomain != "" && c.AccessToken != ""
}

// Push holds the FCM legacy HTTP settings.
type Push struct {
	ServerKey   string `env:"FCM_SERVER_KEY"`
	Endpoint    string `env:"FCM_ENDPOINT,default=https://fcm.googleapis.com/fcm/send"`
	DefaultIcon string `env:"FCM_DEFAULT_ICON,default=/icon-192.png"`
	ClickAction string `env:"FCM_CLICK_ACTION,default=https://localhost"`
}

func (p Push) Configured() bool {
	return p.ServerKey != ""
}

// Brokers splits KAFKA_BROKERS on commas, dropping blanks.
func (c Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func (c Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigins)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads an optional .env file (path from ENV_FILE, default ".env") and
// then decodes the environment into a Config.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv decodes the current environment without touching .env files.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: decode environment: %w", err)
	}
	return cfg, nil
}
