// Package config loads and validates service configuration from an
// optional YAML file plus IMGFIT_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Compress CompressConfig `mapstructure:"compress"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	MaxUploadMB  int           `mapstructure:"max_upload_mb"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// CompressConfig holds compression pipeline defaults.
type CompressConfig struct {
	// DefaultMaxSizeBytes applies when a request names no budget.
	DefaultMaxSizeBytes int `mapstructure:"default_max_size_bytes"`
	// MinQuality is the quality search floor, a fraction in (0, 1].
	MinQuality float64 `mapstructure:"min_quality"`
	// NonCompressible lists media types rejected when they arrive over
	// budget.
	NonCompressible []string `mapstructure:"non_compressible"`
}

// LimitsConfig holds traffic shaping and worker pool settings.
type LimitsConfig struct {
	MaxConcurrent   int `mapstructure:"max_concurrent"`
	RateLimitPerSec int `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int `mapstructure:"rate_limit_burst"`
	WorkerCount     int `mapstructure:"worker_count"`
}

// LoggingConfig holds log level, format and rotation settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			MaxUploadMB:  10,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Compress: CompressConfig{
			DefaultMaxSizeBytes: 500_000,
			MinQuality:          0.1,
			NonCompressible:     []string{"application/pdf"},
		},
		Limits: LimitsConfig{
			MaxConcurrent:   50,
			RateLimitPerSec: 10,
			RateLimitBurst:  20,
			WorkerCount:     10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
			Console:    true,
		},
	}
}

// Load reads configuration from configPath (or the default search path
// when empty) and applies IMGFIT_* environment overrides, e.g.
// IMGFIT_SERVER_PORT=9090. A missing file on the search path is fine; an
// explicitly named file must exist.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/imgfit")
	}

	v.SetEnvPrefix("IMGFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key with viper so environment overrides are
// picked up during Unmarshal. Default() stays the single source of truth.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	v.SetDefault("compress.default_max_size_bytes", d.Compress.DefaultMaxSizeBytes)
	v.SetDefault("compress.min_quality", d.Compress.MinQuality)
	v.SetDefault("compress.non_compressible", d.Compress.NonCompressible)

	v.SetDefault("limits.max_concurrent", d.Limits.MaxConcurrent)
	v.SetDefault("limits.rate_limit_per_sec", d.Limits.RateLimitPerSec)
	v.SetDefault("limits.rate_limit_burst", d.Limits.RateLimitBurst)
	v.SetDefault("limits.worker_count", d.Limits.WorkerCount)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file_path", d.Logging.FilePath)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.console", d.Logging.Console)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Compress.DefaultMaxSizeBytes < 1 {
		return fmt.Errorf("compress.default_max_size_bytes must be positive, got %d", c.Compress.DefaultMaxSizeBytes)
	}
	if c.Compress.MinQuality <= 0 || c.Compress.MinQuality > 1 {
		return fmt.Errorf("compress.min_quality must be in (0, 1], got %v", c.Compress.MinQuality)
	}
	if c.Limits.MaxConcurrent < 1 {
		return fmt.Errorf("limits.max_concurrent must be positive, got %d", c.Limits.MaxConcurrent)
	}
	if c.Limits.RateLimitPerSec < 1 {
		return fmt.Errorf("limits.rate_limit_per_sec must be positive, got %d", c.Limits.RateLimitPerSec)
	}
	if c.Limits.RateLimitBurst < 1 {
		return fmt.Errorf("limits.rate_limit_burst must be positive, got %d", c.Limits.RateLimitBurst)
	}
	if c.Limits.WorkerCount < 1 {
		return fmt.Errorf("limits.worker_count must be positive, got %d", c.Limits.WorkerCount)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}
