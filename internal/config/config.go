package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Sendcloud
	SendcloudAPIToken    string        `envconfig:"SENDCLOUD_API_TOKEN"`
	SendcloudBaseURL     string        `envconfig:"SENDCLOUD_BASE_URL" default:"https://panel.sendcloud.sc/api/v2"`
	SendcloudToCountry   string        `envconfig:"SENDCLOUD_TO_COUNTRY" default:"NL"`
	SendcloudBrandDomain string        `envconfig:"SENDCLOUD_BRAND_DOMAIN"`
	SendcloudUseMock     bool          `envconfig:"SENDCLOUD_USE_MOCK" default:"false"`
	SendcloudTimeout     time.Duration `envconfig:"SENDCLOUD_TIMEOUT" default:"30s"`

	// Sendcloud circuit breaker
	BreakerEnabled          bool          `envconfig:"SENDCLOUD_BREAKER_ENABLED" default:"false"`
	BreakerFailureThreshold uint32        `envconfig:"SENDCLOUD_BREAKER_FAILURES" default:"5"`
	BreakerOpenTimeout      time.Duration `envconfig:"SENDCLOUD_BREAKER_TIMEOUT" default:"30s"`
	BreakerInterval         time.Duration `envconfig:"SENDCLOUD_BREAKER_INTERVAL" default:"60s"`
	BreakerHalfOpenRequests uint32        `envconfig:"SENDCLOUD_BREAKER_HALF_OPEN_REQUESTS" default:"1"`

	// Sendcloud return portal
	ReturnReason         int    `envconfig:"SENDCLOUD_RETURN_REASON" default:"0"`
	ReturnMessage        string `envconfig:"SENDCLOUD_RETURN_MESSAGE"`
	ReturnServicePointID int64  `envconfig:"SENDCLOUD_RETURN_SERVICE_POINT_ID" default:"10875349"`
	ReturnRefundType     string `envconfig:"SENDCLOUD_RETURN_REFUND_TYPE" default:"money"`
	ReturnDeliveryOption string `envconfig:"SENDCLOUD_RETURN_DELIVERY_OPTION" default:"drop_off_point"`
	ReturnProductReason  int    `envconfig:"SENDCLOUD_RETURN_PRODUCT_REASON" default:"1"`
	ReturnFirstMile      string `envconfig:"SENDCLOUD_RETURN_FIRST_MILE" default:"dropoff"`

	// Host platform
	PlatformBaseURL      string        `envconfig:"PLATFORM_BASE_URL" default:"http://localhost:9000"`
	PlatformAPIToken     string        `envconfig:"PLATFORM_API_TOKEN"`
	PlatformRetryMax     int           `envconfig:"PLATFORM_RETRY_MAX" default:"3"`
	PlatformRetryBackoff time.Duration `envconfig:"PLATFORM_RETRY_BACKOFF" default:"200ms"`

	// Admin
	AdminJWTSecret string `envconfig:"ADMIN_JWT_SECRET"`

	// Webhook journal
	JournalPath     string `envconfig:"JOURNAL_PATH" default:"data/journal"`
	JournalInMemory bool   `envconfig:"JOURNAL_IN_MEMORY" default:"false"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"sendcloud-fulfillment"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration in order: .env files (if present), environment.
// Variables already set in the environment win over .env entries. Callers
// validate after applying flag overrides.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// BindFlags registers the flags that may override the environment.
func BindFlags(flags *pflag.FlagSet) {
	flags.IntP("port", "p", 0, "port to listen on (overrides PORT)")
	flags.String("log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flags.Bool("mock", false, "use the mock Sendcloud API client (overrides SENDCLOUD_USE_MOCK)")
}

// ApplyFlags copies explicitly set flags over the loaded configuration.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) error {
	if f := flags.Lookup("port"); f != nil && f.Changed {
		port, err := flags.GetInt("port")
		if err != nil {
			return err
		}
		c.Port = port
	}
	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		level, err := flags.GetString("log-level")
		if err != nil {
			return err
		}
		c.LogLevel = level
	}
	if f := flags.Lookup("mock"); f != nil && f.Changed {
		mock, err := flags.GetBool("mock")
		if err != nil {
			return err
		}
		c.SendcloudUseMock = mock
	}
	return c.Validate()
}

// Validate checks the values envconfig cannot.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if !c.SendcloudUseMock && c.SendcloudAPIToken == "" {
		return errors.New("SENDCLOUD_API_TOKEN is required unless SENDCLOUD_USE_MOCK is set")
	}
	if c.PlatformRetryMax < 0 {
		return fmt.Errorf("invalid PLATFORM_RETRY_MAX: %d", c.PlatformRetryMax)
	}
	return nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("sendcloud.to_country", c.SendcloudToCountry),
		attribute.Bool("sendcloud.mock", c.SendcloudUseMock),
		attribute.Bool("sendcloud.breaker", c.BreakerEnabled),
	}
}
