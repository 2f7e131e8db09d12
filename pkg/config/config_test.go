package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RateLimit.RequestsPerSecond != 4 {
		t.Errorf("Expected 4 requests per second, got %d", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.Export.PageSize != 100 {
		t.Errorf("Expected page size 100, got %d", cfg.Export.PageSize)
	}
	if cfg.Export.CheckpointInterval != 10 {
		t.Errorf("Expected checkpoint interval 10, got %d", cfg.Export.CheckpointInterval)
	}
	if cfg.Cache.Directory != "./order-cache" {
		t.Errorf("Expected default cache directory, got %s", cfg.Cache.Directory)
	}
	if cfg.API.HTTPTimeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %v", cfg.API.HTTPTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected info log level, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: "https://store.example.com"
rate_limit:
  requests_per_second: 2
export:
  page_size: 50
  created_after: "2024-01-01"
cache:
  directory: "/tmp/cache"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if cfg.API.BaseURL != "https://store.example.com" {
		t.Errorf("Expected base URL from file, got %s", cfg.API.BaseURL)
	}
	if cfg.RateLimit.RequestsPerSecond != 2 {
		t.Errorf("Expected 2 requests per second, got %d", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.Export.PageSize != 50 {
		t.Errorf("Expected page size 50, got %d", cfg.Export.PageSize)
	}
	if cfg.Export.CreatedAfter != "2024-01-01" {
		t.Errorf("Expected created_after from file, got %s", cfg.Export.CreatedAfter)
	}
	// Values absent from the file keep their defaults
	if cfg.Export.CheckpointInterval != 10 {
		t.Errorf("Expected default checkpoint interval, got %d", cfg.Export.CheckpointInterval)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SHOPEXPORT_BASE_URL", "https://env.example.com")
	t.Setenv("SHOPEXPORT_API_TOKEN", "env-token")
	t.Setenv("SHOPEXPORT_PAGE_SIZE", "25")
	t.Setenv("SHOPEXPORT_CACHE_DIR", "/tmp/env-cache")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load env: %v", err)
	}

	if cfg.API.BaseURL != "https://env.example.com" {
		t.Errorf("Expected base URL from env, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("Expected token from env, got %s", cfg.API.Token)
	}
	if cfg.Export.PageSize != 25 {
		t.Errorf("Expected page size 25, got %d", cfg.Export.PageSize)
	}
	if cfg.Cache.Directory != "/tmp/env-cache" {
		t.Errorf("Expected cache dir from env, got %s", cfg.Cache.Directory)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SHOPEXPORT_BASE_URL", "https://env.example.com")

	flags := map[string]interface{}{
		"base-url":  "https://flag.example.com",
		"page-size": 10,
		"since":     "2024-06-01",
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.API.BaseURL != "https://flag.example.com" {
		t.Errorf("Flags should override env, got %s", cfg.API.BaseURL)
	}
	if cfg.Export.PageSize != 10 {
		t.Errorf("Expected page size 10, got %d", cfg.Export.PageSize)
	}
	if cfg.Export.CreatedAfter != "2024-06-01" {
		t.Errorf("Expected created_after from flag, got %s", cfg.Export.CreatedAfter)
	}
}

func TestValidate(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		if err := DefaultConfig().Validate(); err != nil {
			t.Errorf("Default config should validate: %v", err)
		}
	})

	t.Run("RejectsBadValues", func(t *testing.T) {
		cases := map[string]func(*Config){
			"zero page size":        func(c *Config) { c.Export.PageSize = 0 },
			"oversized page":        func(c *Config) { c.Export.PageSize = 1000 },
			"zero rate":             func(c *Config) { c.RateLimit.RequestsPerSecond = 0 },
			"negative retries":      func(c *Config) { c.RateLimit.MaxRetries = -1 },
			"zero interval":         func(c *Config) { c.Export.CheckpointInterval = 0 },
			"bad date":              func(c *Config) { c.Export.CreatedAfter = "01/02/2024" },
			"empty cache dir":       func(c *Config) { c.Cache.Directory = "" },
			"invalid log level":     func(c *Config) { c.Logging.Level = "loud" },
			"zero timeout":          func(c *Config) { c.API.HTTPTimeout = 0 },
			"empty output pattern":  func(c *Config) { c.Output.FileNamePattern = "" },
		}

		for name, mutate := range cases {
			cfg := DefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("%s: expected validation error", name)
			}
		}
	})
}
