package config

import (
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/sitesmith-tech/sitesmith/internal/errors"
)

// envVarPattern matches ${VAR} or ${VAR:-default} syntax in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Loader handles configuration loading and merging.
type Loader struct {
	v          *viper.Viper
	configPath string
}

// NewLoader creates a new configuration loader. Environment variables with
// the SITESMITH_ prefix override file values, dots and dashes mapping to
// underscores.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("SITESMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// WithConfigPath sets an explicit config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// Load loads the configuration from defaults, file and environment.
func (l *Loader) Load() (*Config, error) {
	const op = "config.Load"

	l.setDefaults()

	if err := l.loadConfigFile(); err != nil {
		return nil, apperrors.ConfigWrap(err, op, "failed to load config file")
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, apperrors.ConfigWrap(err, op, "failed to unmarshal config")
	}

	l.expandEnvVars(cfg)

	return cfg, nil
}

func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("server.addr", defaults.Server.Addr)
	l.v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	l.v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)

	l.v.SetDefault("auth.rate_limit_per_minute", defaults.Auth.RateLimitPerMinute)

	l.v.SetDefault("storage.data_dir", defaults.Storage.DataDir)

	l.v.SetDefault("hosting.timeout", defaults.Hosting.Timeout)
	l.v.SetDefault("hosting.retry_attempts", defaults.Hosting.RetryAttempts)
	l.v.SetDefault("hosting.retry_initial_wait", defaults.Hosting.RetryInitialWait)
	l.v.SetDefault("hosting.retry_max_wait", defaults.Hosting.RetryMaxWait)

	l.v.SetDefault("dns.enabled", defaults.DNS.Enabled)
	l.v.SetDefault("dns.poll_interval", defaults.DNS.PollInterval)
	l.v.SetDefault("dns.poll_max_attempts", defaults.DNS.PollMaxAttempts)

	l.v.SetDefault("orchestrator.environment", defaults.Orchestrator.Environment)
	l.v.SetDefault("orchestrator.poll_interval", defaults.Orchestrator.PollInterval)
	l.v.SetDefault("orchestrator.poll_max_attempts", defaults.Orchestrator.PollMaxAttempts)
	l.v.SetDefault("orchestrator.run_timeout", defaults.Orchestrator.RunTimeout)

	l.v.SetDefault("log.level", defaults.Log.Level)
	l.v.SetDefault("log.format", defaults.Log.Format)
}

func (l *Loader) loadConfigFile() error {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		return l.v.ReadInConfig()
	}

	l.v.SetConfigName("sitesmith")
	l.v.SetConfigType("yaml")
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home + "/.config/sitesmith")
	}

	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		// Running without a config file is fine; env vars still apply.
		return nil
	}
	return err
}

// expandEnvVars expands ${VAR} references in sensitive fields so tokens can
// live outside the config file.
func (l *Loader) expandEnvVars(cfg *Config) {
	cfg.Hosting.APIToken = expandEnv(cfg.Hosting.APIToken)
	cfg.DNS.APIToken = expandEnv(cfg.DNS.APIToken)
	for i, key := range cfg.Auth.APIKeys {
		cfg.Auth.APIKeys[i] = expandEnv(key)
	}
}

func expandEnv(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(groups[1]); ok {
			return v
		}
		return groups[2]
	})
}
