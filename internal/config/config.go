package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for figmarket.
type Config struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Store settings.
	StorePath     string        `yaml:"store_path"`
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Scales (transfer/escrow service) settings.
	ScalesURL      string        `yaml:"scales_url"`
	ScalesAPIToken string        `yaml:"scales_api_token"`
	ScalesTimeout  time.Duration `yaml:"scales_timeout"`

	// Notification settings. Empty notify_url disables notifications.
	NotifyURL     string        `yaml:"notify_url"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`

	// HTTP server settings.
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:            8080,
		LogLevel:        "info",
		StorePath:       "data/marketfile.json",
		FlushInterval:   1 * time.Second,
		ScalesURL:       "https://misguided.enterprises/scales/api",
		ScalesTimeout:   5 * time.Second,
		NotifyTimeout:   5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty or the file doesn't exist), then
// environment variable overrides. It returns an error for any invalid
// value.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config values with environment variables.
func applyEnv(cfg *Config) error {
	var err error
	if cfg.Port, err = getInt("PORT", cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.LogLevel = getStr("LOG_LEVEL", cfg.LogLevel)
	cfg.StorePath = getStr("STORE_PATH", cfg.StorePath)
	if cfg.FlushInterval, err = getDuration("FLUSH_INTERVAL", cfg.FlushInterval); err != nil {
		return fmt.Errorf("invalid FLUSH_INTERVAL: %w", err)
	}
	cfg.ScalesURL = getStr("SCALES_URL", cfg.ScalesURL)
	cfg.ScalesAPIToken = getStr("SCALES_API_TOKEN", cfg.ScalesAPIToken)
	if cfg.ScalesTimeout, err = getDuration("SCALES_TIMEOUT", cfg.ScalesTimeout); err != nil {
		return fmt.Errorf("invalid SCALES_TIMEOUT: %w", err)
	}
	cfg.NotifyURL = getStr("NOTIFY_URL", cfg.NotifyURL)
	if cfg.NotifyTimeout, err = getDuration("NOTIFY_TIMEOUT", cfg.NotifyTimeout); err != nil {
		return fmt.Errorf("invalid NOTIFY_TIMEOUT: %w", err)
	}
	if cfg.ReadTimeout, err = getDuration("READ_TIMEOUT", cfg.ReadTimeout); err != nil {
		return fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}
	if cfg.IdleTimeout, err = getDuration("IDLE_TIMEOUT", cfg.IdleTimeout); err != nil {
		return fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	return nil
}

// validate checks the assembled config.
func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level: %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path must not be empty")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive")
	}
	if c.ScalesURL == "" {
		return fmt.Errorf("scales_url must not be empty")
	}
	return nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
