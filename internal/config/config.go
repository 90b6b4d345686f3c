package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines configuration for the tilegrab CLI.
type Config struct {
	BaseURL   string      `yaml:"base_url"`
	Dir       string      `yaml:"dir"`
	FailedLog string      `yaml:"failed_log"`
	Referer   string      `yaml:"referer"`
	Workers   int         `yaml:"workers"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig defines both retry layers: transport retries live in the
// HTTP client, content retries in the fetch state machine.
type RetryConfig struct {
	TransportRetries int           `yaml:"transport_retries"`
	Backoff          time.Duration `yaml:"backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	ContentRetries   int           `yaml:"content_retries"`
	ContentBackoff   time.Duration `yaml:"content_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Dir:       "tiles",
		FailedLog: "failed_tiles.txt",
		Workers:   12,
		Retry: RetryConfig{
			TransportRetries: 3,
			Backoff:          500 * time.Millisecond,
			MaxBackoff:       30 * time.Second,
			ContentRetries:   3,
			ContentBackoff:   500 * time.Millisecond,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	BaseURL   string          `yaml:"base_url"`
	Dir       string          `yaml:"dir"`
	FailedLog string          `yaml:"failed_log"`
	Referer   string          `yaml:"referer"`
	Workers   int             `yaml:"workers"`
	Retry     yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	TransportRetries int    `yaml:"transport_retries"`
	Backoff          string `yaml:"backoff"`
	MaxBackoff       string `yaml:"max_backoff"`
	ContentRetries   int    `yaml:"content_retries"`
	ContentBackoff   string `yaml:"content_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.BaseURL != "" {
		cfg.BaseURL = yc.BaseURL
	}
	if yc.Dir != "" {
		cfg.Dir = yc.Dir
	}
	if yc.FailedLog != "" {
		cfg.FailedLog = yc.FailedLog
	}
	if yc.Referer != "" {
		cfg.Referer = yc.Referer
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.Retry.TransportRetries != 0 {
		cfg.Retry.TransportRetries = yc.Retry.TransportRetries
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}
	if yc.Retry.ContentRetries != 0 {
		cfg.Retry.ContentRetries = yc.Retry.ContentRetries
	}
	if yc.Retry.ContentBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.ContentBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.content_backoff: %w", err)
		}
		cfg.Retry.ContentBackoff = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TILEGRAB_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("TILEGRAB_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("TILEGRAB_DIR"); v != "" {
		c.Dir = v
	}
	if v := os.Getenv("TILEGRAB_FAILED_LOG"); v != "" {
		c.FailedLog = v
	}
	if v := os.Getenv("TILEGRAB_REFERER"); v != "" {
		c.Referer = v
	}
	if v := os.Getenv("TILEGRAB_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TILEGRAB_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("TILEGRAB_TRANSPORT_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TILEGRAB_TRANSPORT_RETRIES: %w", err)
		}
		c.Retry.TransportRetries = n
	}
	if v := os.Getenv("TILEGRAB_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TILEGRAB_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("TILEGRAB_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TILEGRAB_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}
	if v := os.Getenv("TILEGRAB_CONTENT_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TILEGRAB_CONTENT_RETRIES: %w", err)
		}
		c.Retry.ContentRetries = n
	}
	if v := os.Getenv("TILEGRAB_CONTENT_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TILEGRAB_CONTENT_BACKOFF: %w", err)
		}
		c.Retry.ContentBackoff = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base_url is required")
	}
	if c.Dir == "" {
		return errors.New("config: dir is required")
	}
	if c.FailedLog == "" {
		return errors.New("config: failed_log is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.BaseURL != "" {
		c.BaseURL = override.BaseURL
	}
	if override.Dir != "" {
		c.Dir = override.Dir
	}
	if override.FailedLog != "" {
		c.FailedLog = override.FailedLog
	}
	if override.Referer != "" {
		c.Referer = override.Referer
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Retry.TransportRetries != 0 {
		c.Retry.TransportRetries = override.Retry.TransportRetries
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	if override.Retry.ContentRetries != 0 {
		c.Retry.ContentRetries = override.Retry.ContentRetries
	}
	if override.Retry.ContentBackoff != 0 {
		c.Retry.ContentBackoff = override.Retry.ContentBackoff
	}
	return c
}
