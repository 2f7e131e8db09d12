package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the order exporter
type Config struct {
	// Commerce API connection
	API APIConfig `yaml:"api" json:"api"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Export pipeline settings
	Export ExportConfig `yaml:"export" json:"export"`

	// Cache directory for downloaded order units and checkpoints
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// CSV output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds the commerce REST API connection settings
type APIConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Token       string        `yaml:"token" json:"token"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	HTTPTimeout time.Duration `yaml:"http_timeout" json:"http_timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
	MaxRetries        int `yaml:"max_retries" json:"max_retries"`
}

// ExportConfig holds pipeline settings shared by the two stages
type ExportConfig struct {
	PageSize           int    `yaml:"page_size" json:"page_size"`
	CreatedAfter       string `yaml:"created_after" json:"created_after"`
	CheckpointInterval int    `yaml:"checkpoint_interval" json:"checkpoint_interval"`
	KeepFiles          bool   `yaml:"keep_files" json:"keep_files"`
}

// CacheConfig holds the durable unit cache settings
type CacheConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// OutputConfig holds CSV output configuration
type OutputConfig struct {
	Directory       string `yaml:"directory" json:"directory"`
	FileNamePattern string `yaml:"file_name_pattern" json:"file_name_pattern"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			UserAgent:   "shopexport/1.0",
			HTTPTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 4,
			MaxRetries:        3,
		},
		Export: ExportConfig{
			PageSize:           100,
			CheckpointInterval: 10,
			KeepFiles:          false,
		},
		Cache: CacheConfig{
			Directory: "./order-cache",
		},
		Output: OutputConfig{
			Directory:       ".",
			FileNamePattern: "orders-{date}.csv",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("SHOPEXPORT_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if token := os.Getenv("SHOPEXPORT_API_TOKEN"); token != "" {
		c.API.Token = token
	}
	if userAgent := os.Getenv("SHOPEXPORT_USER_AGENT"); userAgent != "" {
		c.API.UserAgent = userAgent
	}

	if rps := os.Getenv("SHOPEXPORT_REQUESTS_PER_SECOND"); rps != "" {
		var val int
		fmt.Sscanf(rps, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerSecond = val
		}
	}

	if pageSize := os.Getenv("SHOPEXPORT_PAGE_SIZE"); pageSize != "" {
		var val int
		fmt.Sscanf(pageSize, "%d", &val)
		if val > 0 {
			c.Export.PageSize = val
		}
	}

	if cacheDir := os.Getenv("SHOPEXPORT_CACHE_DIR"); cacheDir != "" {
		c.Cache.Directory = cacheDir
	}

	if outputDir := os.Getenv("SHOPEXPORT_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}

	if logLevel := os.Getenv("SHOPEXPORT_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".shopexport.yaml",
		".shopexport.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "shopexport", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "shopexport", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".shopexport.yaml"),
		filepath.Join(os.Getenv("HOME"), ".shopexport.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP timeout must be positive"))
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests per second must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Export.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Export.PageSize > 500 {
		errs = append(errs, errors.New("page size should not exceed 500"))
	}
	if c.Export.CheckpointInterval <= 0 {
		errs = append(errs, errors.New("checkpoint interval must be positive"))
	}
	if c.Export.CreatedAfter != "" {
		if _, err := time.Parse("2006-01-02", c.Export.CreatedAfter); err != nil {
			errs = append(errs, errors.New("created_after must be formatted YYYY-MM-DD"))
		}
	}

	if c.Cache.Directory == "" {
		errs = append(errs, errors.New("cache directory is required"))
	}
	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.FileNamePattern == "" {
		errs = append(errs, errors.New("file name pattern is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if token, ok := flags["token"].(string); ok && token != "" {
		c.API.Token = token
	}
	if rps, ok := flags["rate-limit"].(int); ok && rps > 0 {
		c.RateLimit.RequestsPerSecond = rps
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Export.PageSize = pageSize
	}
	if since, ok := flags["since"].(string); ok && since != "" {
		c.Export.CreatedAfter = since
	}
	if interval, ok := flags["checkpoint-every"].(int); ok && interval > 0 {
		c.Export.CheckpointInterval = interval
	}
	if keep, ok := flags["keep-files"].(bool); ok {
		c.Export.KeepFiles = keep
	}
	if cacheDir, ok := flags["cache-dir"].(string); ok && cacheDir != "" {
		c.Cache.Directory = cacheDir
	}
	if outputDir, ok := flags["output-dir"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".shopexport.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
