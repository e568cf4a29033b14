// Package config provides application configuration with multi-source
// priority: environment variables override the config file, which overrides
// defaults.
//
// Sensitive values (API keys, database credentials) are read but never
// logged; validation uses sentinel errors checked with errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the model API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelID indicates the model identifier is empty.
	ErrInvalidModelID = errors.New("invalid model id")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxRounds indicates the tool-loop ceiling is out of range.
	ErrInvalidMaxRounds = errors.New("invalid max rounds")

	// ErrMissingQueryService indicates no query-service URL is configured.
	ErrMissingQueryService = errors.New("missing query service URL")

	// ErrMissingDatabase indicates no target database is configured.
	ErrMissingDatabase = errors.New("missing database name")

	// ErrInvalidPollInterval indicates a non-positive poll interval.
	ErrInvalidPollInterval = errors.New("invalid poll interval")
)

// Defaults applied when neither the environment nor the config file sets a
// value.
const (
	DefaultModelID      = "claude-sonnet-4-20250514"
	DefaultTemperature  = 0.0
	DefaultMaxRounds    = 8
	DefaultPollInterval = 2 * time.Second
	DefaultServerAddr   = "127.0.0.1:3500"
)

// Config stores application configuration.
type Config struct {
	// Model configuration
	ModelID         string  `mapstructure:"model_id"`
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxRounds       int     `mapstructure:"max_rounds"`

	// Query-execution service
	QueryServiceURL string        `mapstructure:"query_service_url"`
	Database        string        `mapstructure:"database"`
	Table           string        `mapstructure:"table"`
	OutputLocation  string        `mapstructure:"output_location"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxWait         time.Duration `mapstructure:"max_wait"` // zero = unbounded

	// Transcript persistence (empty = disabled)
	DatabaseURL string `mapstructure:"database_url"`

	// Tool endpoints (empty = tool disabled)
	ToolCodeInterpreter string `mapstructure:"tool_code_interpreter"`
	ToolWebSearch       string `mapstructure:"tool_web_search"`

	// HTTP server
	ServerAddr string `mapstructure:"server_addr"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from defaults, an optional config file
// (~/.dataquay/config.yaml) and DATAQUAY_* environment variables, in
// ascending priority.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("model_id", DefaultModelID)
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("max_rounds", DefaultMaxRounds)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("max_wait", time.Duration(0))
	v.SetDefault("server_addr", DefaultServerAddr)
	v.SetDefault("log_level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".dataquay"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("DATAQUAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration required to serve turns.
func (c *Config) Validate() error {
	if c.ModelID == "" {
		return ErrInvalidModelID
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("%w: set DATAQUAY_ANTHROPIC_API_KEY", ErrMissingAPIKey)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("%w: %.2f (must be in [0, 1])", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxRounds <= 0 || c.MaxRounds > 100 {
		return fmt.Errorf("%w: %d (must be in [1, 100])", ErrInvalidMaxRounds, c.MaxRounds)
	}
	if c.QueryServiceURL == "" {
		return ErrMissingQueryService
	}
	if c.Database == "" {
		return ErrMissingDatabase
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPollInterval, c.PollInterval)
	}
	return nil
}
