// Package config loads server settings from an optional file and GOCONV_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables, e.g. GOCONV_API_KEY.
const EnvPrefix = "GOCONV"

// Config represents the application's configuration structure.
type Config struct {
	Address  string `mapstructure:"address"`
	LogLevel string `mapstructure:"log-level"`

	ProviderURL     string        `mapstructure:"provider-url"`
	APIKey          string        `mapstructure:"api-key"`
	ProviderTimeout time.Duration `mapstructure:"provider-timeout"`
	SubmitWorkers   int           `mapstructure:"submit-workers"`

	StorageDriver string `mapstructure:"storage-driver"`
	DatabasePath  string `mapstructure:"database-path"`
	RedisAddr     string `mapstructure:"redis-addr"`

	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`
	PingInterval     time.Duration `mapstructure:"ping-interval"`
	SinkBuffer       int           `mapstructure:"sink-buffer"`

	PendingTTL    time.Duration `mapstructure:"pending-ttl"`
	SweepInterval time.Duration `mapstructure:"sweep-interval"`

	RateLimit      float64 `mapstructure:"rate-limit"`
	RateBurst      int     `mapstructure:"rate-burst"`
	MaxUploadBytes int64   `mapstructure:"max-upload-bytes"`
	MaxFetchBytes  int64   `mapstructure:"max-fetch-bytes"`

	WebhookSecret string `mapstructure:"webhook-secret"`
}

var requiredFields = []string{
	"api-key",
}

// field: default value
var optionalFields = map[string]interface{}{
	"address":           ":8000",
	"log-level":         "info",
	"provider-url":      "https://api.cloudconvert.com/v2",
	"provider-timeout":  "60s",
	"submit-workers":    4,
	"storage-driver":    "sqlite",
	"database-path":     "goconv.db",
	"redis-addr":        "localhost:6379",
	"handshake-timeout": "30s",
	"ping-interval":     "25s",
	"sink-buffer":       10,
	"pending-ttl":       "24h",
	"sweep-interval":    "5m",
	"rate-limit":        0.5,
	"rate-burst":        5,
	"max-upload-bytes":  20480 * 1024,
	"max-fetch-bytes":   100 << 20,
	"webhook-secret":    "",
}

// Load reads configuration from configFile (optional, any viper-supported
// format) and the environment. Environment variables take precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	for field, def := range optionalFields {
		v.SetDefault(field, def)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only answers Get; Unmarshal needs the keys bound explicitly.
	for _, field := range requiredFields {
		_ = v.BindEnv(field)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	for _, field := range requiredFields {
		if v.GetString(field) == "" {
			return nil, fmt.Errorf("missing required config field: %s", field)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("invalid storage-driver %q", c.StorageDriver)
	}
	if c.SubmitWorkers < 1 {
		return fmt.Errorf("submit-workers must be positive, got %d", c.SubmitWorkers)
	}
	if c.SinkBuffer < 1 {
		return fmt.Errorf("sink-buffer must be positive, got %d", c.SinkBuffer)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps the log-level setting to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log-level %q", s)
	}
	return lvl, nil
}
