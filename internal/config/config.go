// Package config provides configuration management for the synchronization layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"stratlab-sync/internal/errors"
)

// Config holds all configuration for the synchronization layer.
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Probes  ProbeConfig   `mapstructure:"probes"`
	Jobs    JobConfig     `mapstructure:"jobs"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LogConfig     `mapstructure:"logging"`
}

// ServiceConfig holds remote service connection configuration.
type ServiceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	SpecPath       string        `mapstructure:"spec_path"`
	JobsPath       string        `mapstructure:"jobs_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ProbeConfig holds probe caching and throttling configuration.
type ProbeConfig struct {
	// TTL is the default time-to-live for cached facts.
	TTL time.Duration `mapstructure:"ttl"`
	// MinInterval is the minimum time between remote attempts for one probe.
	MinInterval time.Duration `mapstructure:"min_interval"`
	// Disabled lists probe names whose remote path is switched off entirely.
	Disabled map[string]bool `mapstructure:"disabled"`
}

// JobConfig holds job lifecycle configuration.
type JobConfig struct {
	// PollInterval is the recommended interval between status polls. It is a
	// contract for callers; the controller itself never schedules polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxRetained bounds the number of terminal job records kept in memory.
	MaxRetained int `mapstructure:"max_retained"`
}

// StoreConfig holds local fallback store configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stratlab-sync"
	}
	return filepath.Join(home, ".config", "stratlab-sync")
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:        "http://localhost:8780",
			SpecPath:       "/openapi.json",
			JobsPath:       "/api/backtests",
			RequestTimeout: 10 * time.Second,
		},
		Probes: ProbeConfig{
			TTL:         5 * time.Minute,
			MinInterval: 30 * time.Second,
			Disabled:    map[string]bool{},
		},
		Jobs: JobConfig{
			PollInterval: 2 * time.Second,
			MaxRetained:  64,
		},
		Store: StoreConfig{
			Path: filepath.Join(DefaultConfigDir(), "fallback.db"),
		},
		Logging: LogConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
	}
}

// Load loads configuration from the specified directory, falling back to
// defaults for anything unset. If configDir is empty, the default config
// directory is used. A missing config file is not an error.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("STRATLAB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides that do not map
// cleanly through viper's key scheme.
func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("STRATLAB_SERVICE_URL"); url != "" {
		cfg.Service.BaseURL = url
	}
	if path := os.Getenv("STRATLAB_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if level := os.Getenv("STRATLAB_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "service.base_url must not be empty")
	}
	if c.Service.RequestTimeout <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "service.request_timeout must be positive")
	}
	if c.Probes.TTL <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "probes.ttl must be positive")
	}
	if c.Probes.MinInterval <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "probes.min_interval must be positive")
	}
	if c.Jobs.PollInterval <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "jobs.poll_interval must be positive")
	}
	if c.Jobs.MaxRetained <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "jobs.max_retained must be positive")
	}
	return nil
}

// ProbeEnabled reports whether the named probe's remote path is enabled.
func (c *Config) ProbeEnabled(name string) bool {
	return !c.Probes.Disabled[name]
}
