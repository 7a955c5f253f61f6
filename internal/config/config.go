package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

const (
	DefaultFormat  = "gen8ou"
	DefaultBaseURL = "https://replay.pokemonshowdown.com"
)

// Config holds all runtime configuration parameters for a scrape session
type Config struct {
	Format            string `json:"format"`
	OutputDir         string `json:"output_dir"`
	MaxReplays        int    `json:"max_replays"`
	BaseURL           string `json:"base_url"`
	ConcurrentWorkers int    `json:"concurrent_workers"`
	RequestTimeoutMs  int    `json:"request_timeout_ms"`
	DBPath            string `json:"db_path"`
	MetricsFile       string `json:"metrics_file"`
}

// Option mutates a config after the file is read and before defaults apply.
// Command-line flags are threaded in this way.
type Option func(*Config)

// LoadConfig reads configuration from a JSON file, applies overrides, fills
// defaults and validates. An empty path skips the file.
func LoadConfig(path string, opts ...Option) (*Config, error) {
	var cfg Config

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// RequestTimeout returns the per-fetch timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.MaxReplays == 0 {
		cfg.MaxReplays = 10
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = 3
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.MetricsFile == "" {
		cfg.MetricsFile = "metrics.json"
	}
}

// validate checks that values are sensible
func validate(cfg *Config) error {
	if cfg.MaxReplays < 1 {
		return fmt.Errorf("max_replays must be >= 1")
	}
	if cfg.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent_workers must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL")
	}
	return nil
}
