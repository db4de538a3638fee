// Package config loads benchmark configuration from file, .env, and
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Run      RunConfig      `mapstructure:"run"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig holds the completion endpoint configuration
type APIConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Key      string        `mapstructure:"key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RunConfig holds benchmark run configuration
type RunConfig struct {
	InputFile          string  `mapstructure:"input_file"`
	OutputFile         string  `mapstructure:"output_file"`
	ConcurrentRequests int     `mapstructure:"concurrent_requests"`
	RatePerSecond      float64 `mapstructure:"rate_per_second"`
}

// DatabaseConfig holds run-history database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server configuration for the serve command
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Load loads configuration from an optional config file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration primarily from environment variables,
// reading a .env file when present
func LoadFromEnv() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.endpoint", "https://api.cerebras.ai/v1")
	v.SetDefault("api.model", "llama-3.3-70b")
	v.SetDefault("api.timeout", 10*time.Minute)

	// Run defaults
	v.SetDefault("run.output_file", "benchmark_results.json")
	v.SetDefault("run.concurrent_requests", 10)
	v.SetDefault("run.rate_per_second", 0.0)

	// Database defaults
	v.SetDefault("database.path", "./data/inference-bench.db")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func bindEnvVars(v *viper.Viper) {
	// Helper to bind and log errors (BindEnv errors are non-fatal but should be logged)
	bindEnv := func(key string, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			slog.Warn("failed to bind environment variable",
				slog.String("key", key),
				slog.String("env_var", envVar),
				slog.String("error", err.Error()))
		}
	}

	bindEnv("api.endpoint", "INFERENCE_API_ENDPOINT")
	bindEnv("api.key", "INFERENCE_API_KEY")
	bindEnv("api.model", "INFERENCE_API_MODEL")

	bindEnv("run.concurrent_requests", "BENCH_CONCURRENT_REQUESTS")
	bindEnv("run.rate_per_second", "BENCH_RATE_PER_SECOND")

	bindEnv("database.path", "DATABASE_PATH")

	bindEnv("server.host", "SERVER_HOST")
	bindEnv("server.port", "SERVER_PORT")

	bindEnv("logging.level", "LOG_LEVEL")
	bindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks the configuration for a benchmark run. Violations are
// configuration errors: fatal, reported before any dispatch begins.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return fmt.Errorf("API key is required (INFERENCE_API_KEY or --api-key)")
	}
	if c.API.Endpoint == "" {
		return fmt.Errorf("API endpoint is required")
	}
	if c.Run.InputFile == "" {
		return fmt.Errorf("input file is required (--input)")
	}
	if c.Run.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent_requests must be positive, got %d", c.Run.ConcurrentRequests)
	}
	if c.Run.RatePerSecond < 0 {
		return fmt.Errorf("rate_per_second must not be negative, got %f", c.Run.RatePerSecond)
	}
	return nil
}
