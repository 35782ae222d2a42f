package app

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		ConsumerKey:    "U",
		ConsumerSecret: "P",
		BaseURL:        "https://cybqa.pesapal.com/pesapalv3",
	}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.LogFormat != LogFormatText && cfg.LogFormat != LogFormatJSON {
		t.Errorf("LogFormat = %q, want text or json", cfg.LogFormat)
	}
	if cfg.OTLP.Protocol != OTLPProtocolHTTP {
		t.Errorf("OTLP.Protocol = %q, want %q", cfg.OTLP.Protocol, OTLPProtocolHTTP)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Shutdown.Timeout != 5*time.Second {
		t.Errorf("Shutdown.Timeout = %v, want 5s", cfg.Shutdown.Timeout)
	}
	if cfg.Upstream.Timeout != 30*time.Second {
		t.Errorf("Upstream.Timeout = %v, want 30s", cfg.Upstream.Timeout)
	}
	if cfg.Upstream.MaxRetries != 0 {
		t.Errorf("Upstream.MaxRetries = %d, want 0", cfg.Upstream.MaxRetries)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("CORS.AllowedOrigins = %v, want [*]", cfg.CORS.AllowedOrigins)
	}
	if cfg.ConsumerKey != "" || cfg.ConsumerSecret != "" || cfg.BaseURL != "" {
		t.Error("credentials must not have defaults")
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		LogFormat: LogFormatText,
		Server:    ServerConfig{Host: "127.0.0.1", Port: 8080},
		Upstream:  UpstreamConfig{Timeout: time.Second, MaxRetries: 2, RetryInterval: time.Second},
		CORS:      CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}},
	}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}

	if cfg.LogFormat != LogFormatText {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("Server = %+v, want 127.0.0.1:8080", cfg.Server)
	}
	if cfg.Upstream.Timeout != time.Second || cfg.Upstream.MaxRetries != 2 {
		t.Errorf("Upstream = %+v, want timeout 1s and 2 retries", cfg.Upstream)
	}
	if cfg.CORS.AllowedOrigins[0] != "https://shop.example.com" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string // empty means valid
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing consumer key", mutate: func(c *Config) { c.ConsumerKey = "" }, wantField: "consumer_key"},
		{name: "missing consumer secret", mutate: func(c *Config) { c.ConsumerSecret = "" }, wantField: "consumer_secret"},
		{name: "missing base url", mutate: func(c *Config) { c.BaseURL = "" }, wantField: "base_url"},
		{name: "base url not http", mutate: func(c *Config) { c.BaseURL = "pesapal" }, wantField: "base_url"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantField: "log_format"},
		{name: "bad otlp protocol", mutate: func(c *Config) { c.OTLP.Protocol = "udp" }, wantField: "protocol"},
		{name: "bad host", mutate: func(c *Config) { c.Server.Host = "not a host" }, wantField: "host"},
		{name: "too many retries", mutate: func(c *Config) { c.Upstream.MaxRetries = 11 }, wantField: "max_retries"},
		{name: "empty origin", mutate: func(c *Config) { c.CORS.AllowedOrigins = []string{""} }, wantField: "allowed_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantField)
			}
		})
	}
}

func TestValidate_DoesNotLeakSecret(t *testing.T) {
	cfg := validConfig(t)
	cfg.ConsumerSecret = "top-secret-value"
	cfg.BaseURL = "not-a-url"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
	if strings.Contains(err.Error(), "top-secret-value") {
		t.Errorf("Validate() error leaks secret: %v", err)
	}
}

func TestCredentials(t *testing.T) {
	cfg := validConfig(t)
	creds := cfg.Credentials()
	if creds.ConsumerKey != "U" || creds.ConsumerSecret != "P" {
		t.Errorf("Credentials() = %+v, want U/P", creds)
	}
}
