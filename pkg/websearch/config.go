package websearch

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds web search provider settings.
type Config struct {
	Endpoint   string `toml:"endpoint"`
	APIKey     string `toml:"api_key"`
	MaxResults int    `toml:"max_results"`
	Depth      string `toml:"depth"`
	Timeout    string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Endpoint   string
	APIKey     string
	MaxResults string
	Timeout    string
}

// Enabled reports whether an API key is configured.
func (c *Config) Enabled() bool {
	return c.APIKey != ""
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.MaxResults != 0 {
		c.MaxResults = overlay.MaxResults
	}
	if overlay.Depth != "" {
		c.Depth = overlay.Depth
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://api.tavily.com"
	}
	if c.MaxResults == 0 {
		c.MaxResults = 3
	}
	if c.Depth == "" {
		c.Depth = "basic"
	}
	if c.Timeout == "" {
		c.Timeout = "20s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Endpoint != "" {
		if v := os.Getenv(env.Endpoint); v != "" {
			c.Endpoint = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.MaxResults != "" {
		if v := os.Getenv(env.MaxResults); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxResults = n
			}
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive")
	}
	if c.Depth != "basic" && c.Depth != "advanced" {
		return fmt.Errorf("depth must be basic or advanced, got %q", c.Depth)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
