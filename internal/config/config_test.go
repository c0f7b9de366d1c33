package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefault tests the built-in configuration is valid
func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Default port %d, want 8080", cfg.Server.Port)
	}
	if cfg.Compress.DefaultMaxSizeBytes != 500_000 {
		t.Errorf("Default budget %d, want 500000", cfg.Compress.DefaultMaxSizeBytes)
	}
	if len(cfg.Compress.NonCompressible) != 1 || cfg.Compress.NonCompressible[0] != "application/pdf" {
		t.Errorf("Default non-compressible list = %v", cfg.Compress.NonCompressible)
	}
}

// TestLoad_NoFile tests loading succeeds with defaults when no config file
// exists on the search path
func TestLoad_NoFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Limits.WorkerCount != 10 {
		t.Errorf("WorkerCount %d, want default 10", cfg.Limits.WorkerCount)
	}
}

// TestLoad_File tests YAML values override defaults
func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9999
  read_timeout: 10s
compress:
  default_max_size_bytes: 250000
  non_compressible:
    - application/pdf
    - application/zip
limits:
  worker_count: 4
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Port %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Compress.DefaultMaxSizeBytes != 250000 {
		t.Errorf("Budget %d, want 250000", cfg.Compress.DefaultMaxSizeBytes)
	}
	if len(cfg.Compress.NonCompressible) != 2 {
		t.Errorf("NonCompressible = %v, want two entries", cfg.Compress.NonCompressible)
	}
	if cfg.Limits.WorkerCount != 4 {
		t.Errorf("WorkerCount %d, want 4", cfg.Limits.WorkerCount)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %s/%s, want debug/text", cfg.Logging.Level, cfg.Logging.Format)
	}

	// Untouched keys keep their defaults.
	if cfg.Server.MaxUploadMB != 10 {
		t.Errorf("MaxUploadMB %d, want default 10", cfg.Server.MaxUploadMB)
	}
}

// TestLoad_EnvOverride tests IMGFIT_* variables win over defaults
func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	t.Setenv("IMGFIT_SERVER_PORT", "9090")
	t.Setenv("IMGFIT_COMPRESS_DEFAULT_MAX_SIZE_BYTES", "123456")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port %d, want 9090 from environment", cfg.Server.Port)
	}
	if cfg.Compress.DefaultMaxSizeBytes != 123456 {
		t.Errorf("Budget %d, want 123456 from environment", cfg.Compress.DefaultMaxSizeBytes)
	}
}

// TestLoad_MissingExplicitFile tests a named but absent file is an error
func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected an error for a missing explicit config file")
	}
}

// TestLoad_InvalidValues tests validation runs on loaded files
func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 99999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Expected validation error for port 99999")
	}
}

// TestValidate tests individual validation rules
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"upload zero", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"budget zero", func(c *Config) { c.Compress.DefaultMaxSizeBytes = 0 }},
		{"min quality zero", func(c *Config) { c.Compress.MinQuality = 0 }},
		{"min quality above one", func(c *Config) { c.Compress.MinQuality = 1.5 }},
		{"concurrency zero", func(c *Config) { c.Limits.MaxConcurrent = 0 }},
		{"rate zero", func(c *Config) { c.Limits.RateLimitPerSec = 0 }},
		{"burst zero", func(c *Config) { c.Limits.RateLimitBurst = 0 }},
		{"workers zero", func(c *Config) { c.Limits.WorkerCount = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}
