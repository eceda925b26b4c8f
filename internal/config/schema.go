// Package config provides configuration management for SiteSmith.
package config

import (
	"time"

	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
)

// Config is the root configuration for SiteSmith.
type Config struct {
	// Server configures the HTTP API.
	Server ServerConfig `mapstructure:"server" json:"server"`
	// Auth configures API authentication.
	Auth AuthConfig `mapstructure:"auth" json:"auth"`
	// Storage configures the record store.
	Storage StorageConfig `mapstructure:"storage" json:"storage"`
	// Hosting configures the hosting provider.
	Hosting HostingConfig `mapstructure:"hosting" json:"hosting"`
	// DNS configures the DNS provider.
	DNS DNSConfig `mapstructure:"dns" json:"dns"`
	// Orchestrator bounds provisioning runs.
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" json:"orchestrator"`
	// Log configures logging.
	Log LogConfig `mapstructure:"log" json:"log"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `mapstructure:"addr" json:"addr"`
	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	// WriteTimeout bounds response writes. Must exceed the longest expected
	// websocket idle period.
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
	// CORSOrigins lists allowed cross-origin origins.
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins,omitempty"`
}

// AuthConfig configures API-key authentication. An empty key list disables
// authentication, intended for local development only.
type AuthConfig struct {
	// APIKeys are the accepted API keys (can use env var expansion).
	APIKeys []string `mapstructure:"api_keys" json:"api_keys,omitempty"`
	// RateLimitPerMinute caps requests per client IP (0 = disabled).
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

// StorageConfig configures the file-backed record store.
type StorageConfig struct {
	// DataDir is the root directory for client and deployment records.
	DataDir string `mapstructure:"data_dir" json:"data_dir"`
}

// HostingConfig configures the hosting provider API.
type HostingConfig struct {
	// BaseURL is the provider API base URL.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// APIToken is the bearer token (can use env var expansion).
	APIToken string `mapstructure:"api_token" json:"api_token,omitempty"`
	// Timeout bounds a single API call.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	// RetryAttempts is the per-call retry budget.
	RetryAttempts int `mapstructure:"retry_attempts" json:"retry_attempts"`
	// RetryInitialWait is the first retry backoff delay.
	RetryInitialWait time.Duration `mapstructure:"retry_initial_wait" json:"retry_initial_wait"`
	// RetryMaxWait caps the retry backoff delay.
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait" json:"retry_max_wait"`
}

// DNSConfig configures the DNS provider API.
type DNSConfig struct {
	// Enabled toggles DNS binding. When false, sites only get the
	// provider-managed subdomain.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// BaseURL is the DNS API base URL.
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty"`
	// APIToken is the zone-scoped API token (can use env var expansion).
	APIToken string `mapstructure:"api_token" json:"api_token,omitempty"`
	// ZoneID is the DNS zone to manage.
	ZoneID string `mapstructure:"zone_id" json:"zone_id,omitempty"`
	// BaseDomain is the zone apex under which tenant subdomains live.
	BaseDomain string `mapstructure:"base_domain" json:"base_domain,omitempty"`
	// EdgeTarget is the CNAME content tenant records point at.
	EdgeTarget string `mapstructure:"edge_target" json:"edge_target,omitempty"`
	// PollInterval is the propagation check interval.
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	// PollMaxAttempts bounds propagation checks.
	PollMaxAttempts int `mapstructure:"poll_max_attempts" json:"poll_max_attempts"`
}

// OrchestratorConfig bounds provisioning runs.
type OrchestratorConfig struct {
	// Environment is the deploy target passed to the hosting provider.
	Environment string `mapstructure:"environment" json:"environment"`
	// PollInterval is the deploy status poll interval.
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	// PollMaxAttempts bounds deploy status polls.
	PollMaxAttempts int `mapstructure:"poll_max_attempts" json:"poll_max_attempts"`
	// RunTimeout caps a whole provisioning run.
	RunTimeout time.Duration `mapstructure:"run_timeout" json:"run_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" json:"level"`
	// Format is the log output format (text, json).
	Format string `mapstructure:"format" json:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			RateLimitPerMinute: 120,
		},
		Storage: StorageConfig{
			DataDir: ".sitesmith",
		},
		Hosting: HostingConfig{
			Timeout:          30 * time.Second,
			RetryAttempts:    3,
			RetryInitialWait: 500 * time.Millisecond,
			RetryMaxWait:     10 * time.Second,
		},
		DNS: DNSConfig{
			PollInterval:    5 * time.Second,
			PollMaxAttempts: 24,
		},
		Orchestrator: OrchestratorConfig{
			Environment:     "production",
			PollInterval:    5 * time.Second,
			PollMaxAttempts: 120,
			RunTimeout:      30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for operability.
func (c *Config) Validate() error {
	const op = "config.Validate"

	if c.Server.Addr == "" {
		return apperrors.Config(op, "server.addr must not be empty")
	}
	if c.Storage.DataDir == "" {
		return apperrors.Config(op, "storage.data_dir must not be empty")
	}
	if c.Hosting.BaseURL == "" {
		return apperrors.Config(op, "hosting.base_url is required")
	}
	if c.Hosting.APIToken == "" {
		return apperrors.Config(op, "hosting.api_token is required")
	}
	if c.Orchestrator.PollInterval <= 0 {
		return apperrors.Config(op, "orchestrator.poll_interval must be positive")
	}
	if c.Orchestrator.PollMaxAttempts <= 0 {
		return apperrors.Config(op, "orchestrator.poll_max_attempts must be positive")
	}
	if c.DNS.Enabled {
		if c.DNS.BaseURL == "" || c.DNS.APIToken == "" || c.DNS.ZoneID == "" {
			return apperrors.Config(op, "dns.base_url, dns.api_token and dns.zone_id are required when dns is enabled")
		}
		if c.DNS.BaseDomain == "" || c.DNS.EdgeTarget == "" {
			return apperrors.Config(op, "dns.base_domain and dns.edge_target are required when dns is enabled")
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return apperrors.Config(op, "log.level must be one of debug, info, warn, error")
	}
	return nil
}
