// Package config loads valuecache settings from YAML and VALUECACHE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Policy  PolicyConfig  `yaml:"policy" mapstructure:"policy"`
}

type CacheConfig struct {
	Capacity          int           `yaml:"capacity" mapstructure:"capacity"`
	LoadSize          int           `yaml:"load_size" mapstructure:"load_size"`
	Rows              int           `yaml:"rows" mapstructure:"rows"`
	Cols              int           `yaml:"cols" mapstructure:"cols"`
	DefaultValue      float64       `yaml:"default_value" mapstructure:"default_value"`
	FlushInterval     time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"`
	StoreTimeout      time.Duration `yaml:"store_timeout" mapstructure:"store_timeout"`
	LookupConcurrency int           `yaml:"lookup_concurrency" mapstructure:"lookup_concurrency"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type PolicyConfig struct {
	Gamma    float64 `yaml:"gamma" mapstructure:"gamma"`
	Tau      float64 `yaml:"tau" mapstructure:"tau"`
	Episodes int     `yaml:"episodes" mapstructure:"episodes"`
}

// Store drivers understood by the command.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Capacity:          100_000,
			Rows:              3,
			Cols:              3,
			FlushInterval:     30 * time.Second,
			StoreTimeout:      5 * time.Second,
			LookupConcurrency: 8,
		},
		Store:   StoreConfig{Driver: DriverSQLite, DSN: "valuecache.db"},
		Metrics: MetricsConfig{Namespace: "valuecache"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Policy:  PolicyConfig{Gamma: 0.9, Tau: 0.1, Episodes: 1000},
	}
}

// Load reads path (or ./valuecache.yaml when path is empty and the file
// exists) over DefaultConfig, applies VALUECACHE_* environment overrides
// such as VALUECACHE_STORE_DSN, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("valuecache")
		v.AddConfigPath(".")
	}

	// Environment variables
	v.SetEnvPrefix("VALUECACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		// No config file; defaults and environment only.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys the
// config file does not mention.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("cache.capacity", c.Cache.Capacity)
	v.SetDefault("cache.load_size", c.Cache.LoadSize)
	v.SetDefault("cache.rows", c.Cache.Rows)
	v.SetDefault("cache.cols", c.Cache.Cols)
	v.SetDefault("cache.default_value", c.Cache.DefaultValue)
	v.SetDefault("cache.flush_interval", c.Cache.FlushInterval)
	v.SetDefault("cache.store_timeout", c.Cache.StoreTimeout)
	v.SetDefault("cache.lookup_concurrency", c.Cache.LookupConcurrency)
	v.SetDefault("store.driver", c.Store.Driver)
	v.SetDefault("store.dsn", c.Store.DSN)
	v.SetDefault("metrics.addr", c.Metrics.Addr)
	v.SetDefault("metrics.namespace", c.Metrics.Namespace)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("policy.gamma", c.Policy.Gamma)
	v.SetDefault("policy.tau", c.Policy.Tau)
	v.SetDefault("policy.episodes", c.Policy.Episodes)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("config: cache.capacity must be > 0, got %d", c.Cache.Capacity)
	}
	if c.Cache.LoadSize < 0 || c.Cache.LoadSize > c.Cache.Capacity {
		return fmt.Errorf("config: cache.load_size must be within [0, capacity], got %d", c.Cache.LoadSize)
	}
	if c.Cache.Rows <= 0 || c.Cache.Cols <= 0 {
		return fmt.Errorf("config: cache.rows and cache.cols must be > 0, got %dx%d", c.Cache.Rows, c.Cache.Cols)
	}
	if c.Cache.FlushInterval < 0 || c.Cache.StoreTimeout < 0 {
		return fmt.Errorf("config: cache durations must not be negative")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store %q requires dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: store.driver %q is invalid (must be memory, sqlite, or postgres)", c.Store.Driver)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: log.format %q is invalid (must be text or json)", c.Log.Format)
	}
	if c.Policy.Gamma < 0 || c.Policy.Gamma > 1 {
		return fmt.Errorf("config: policy.gamma must be within [0, 1], got %v", c.Policy.Gamma)
	}
	if c.Policy.Tau < 0 || c.Policy.Tau > 1 {
		return fmt.Errorf("config: policy.tau must be within [0, 1], got %v", c.Policy.Tau)
	}
	return nil
}
