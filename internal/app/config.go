package app

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/florianilch/pesapal-auth-proxy/internal/pesapal"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatOTLP LogFormat = "otlp"
)

// OTLPProtocol selects the exporter used for the otlp log format.
type OTLPProtocol string

const (
	OTLPProtocolGRPC   OTLPProtocol = "grpc"
	OTLPProtocolHTTP   OTLPProtocol = "http"
	OTLPProtocolStdout OTLPProtocol = "stdout"
)

// Default configuration values
const (
	DefaultConfigServerHost          = "0.0.0.0"
	DefaultConfigServerPort          = 5000
	DefaultConfigShutdownTimeout     = 5 * time.Second
	DefaultConfigUpstreamTimeout     = pesapal.DefaultTimeout
	DefaultConfigUpstreamRetryPeriod = pesapal.DefaultRetryInterval
	DefaultConfigOTLPProtocol        = OTLPProtocolHTTP
)

// DefaultConfigAllowedOrigins permits cross-origin requests from anywhere.
var DefaultConfigAllowedOrigins = []string{"*"}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds the outbound token request policy.
type UpstreamConfig struct {
	// Timeout bounds each attempt.
	Timeout time.Duration `json:"timeout"`
	// MaxRetries is the number of additional attempts after a retryable failure.
	MaxRetries    uint          `json:"max_retries" validate:"lte=10"`
	RetryInterval time.Duration `json:"retry_interval"`
}

// CORSConfig holds cross-origin access configuration.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" validate:"min=1,dive,required"`
}

// OTLPConfig holds OpenTelemetry log export configuration.
// Endpoints and headers are taken from the standard OTEL_EXPORTER_OTLP_* variables.
type OTLPConfig struct {
	Protocol OTLPProtocol `json:"protocol" validate:"oneof=grpc http stdout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level `json:"log_level"`
	LogFormat LogFormat  `json:"log_format" validate:"oneof=text json otlp"`
	OTLP      OTLPConfig `json:"otlp"`

	// Pesapal merchant credentials and API root, required.
	ConsumerKey    string `json:"consumer_key" validate:"required"`
	ConsumerSecret string `json:"consumer_secret" validate:"required"`
	BaseURL        string `json:"base_url" validate:"required,http_url"`

	Server   ServerConfig   `json:"server"`
	Shutdown ShutdownConfig `json:"shutdown"`
	Upstream UpstreamConfig `json:"upstream"`
	CORS     CORSConfig     `json:"cors"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
// Credentials and base URL have no defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = detectLogFormat()
	}
	if c.OTLP.Protocol == "" {
		c.OTLP.Protocol = DefaultConfigOTLPProtocol
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultConfigUpstreamTimeout
	}
	if c.Upstream.RetryInterval == 0 {
		c.Upstream.RetryInterval = DefaultConfigUpstreamRetryPeriod
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = slices.Clone(DefaultConfigAllowedOrigins)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
// Field names in errors match the configuration keys.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return v.Struct(c)
}

// Credentials returns the Pesapal merchant credentials.
func (c *Config) Credentials() pesapal.Credentials {
	return pesapal.Credentials{
		ConsumerKey:    c.ConsumerKey,
		ConsumerSecret: c.ConsumerSecret,
	}
}

// detectLogFormat prefers human-readable logs on an interactive terminal.
func detectLogFormat() LogFormat {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return LogFormatText
	}
	return LogFormatJSON
}
