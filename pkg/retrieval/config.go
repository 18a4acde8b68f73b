package retrieval

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultBatchSize is the number of documents sent per embedding request.
const DefaultBatchSize = 16

// Config holds corpus location and indexing settings.
type Config struct {
	Dir       string `toml:"dir"`
	Pattern   string `toml:"pattern"`
	Cache     string `toml:"cache"`
	BatchSize int    `toml:"batch_size"`
	Workers   int    `toml:"workers"`
	Watch     *bool  `toml:"watch"`
	Debounce  string `toml:"debounce"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Dir      string
	Pattern  string
	Cache    string
	Watch    string
	Debounce string
}

// WatchEnabled reports whether the corpus directory is watched for changes.
func (c *Config) WatchEnabled() bool {
	return c.Watch != nil && *c.Watch
}

// DebounceDuration returns Debounce as a time.Duration.
func (c *Config) DebounceDuration() time.Duration {
	d, _ := time.ParseDuration(c.Debounce)
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
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	if overlay.Pattern != "" {
		c.Pattern = overlay.Pattern
	}
	if overlay.Cache != "" {
		c.Cache = overlay.Cache
	}
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.Watch != nil {
		c.Watch = overlay.Watch
	}
	if overlay.Debounce != "" {
		c.Debounce = overlay.Debounce
	}
}

func (c *Config) loadDefaults() {
	if c.Dir == "" {
		c.Dir = "data/corpus"
	}
	if c.Pattern == "" {
		c.Pattern = "**/*.md"
	}
	if c.Cache == "" {
		c.Cache = "data/embeddings.json"
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Watch == nil {
		watch := true
		c.Watch = &watch
	}
	if c.Debounce == "" {
		c.Debounce = "2s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Dir != "" {
		if v := os.Getenv(env.Dir); v != "" {
			c.Dir = v
		}
	}
	if env.Pattern != "" {
		if v := os.Getenv(env.Pattern); v != "" {
			c.Pattern = v
		}
	}
	if env.Cache != "" {
		if v := os.Getenv(env.Cache); v != "" {
			c.Cache = v
		}
	}
	if env.Watch != "" {
		if v := os.Getenv(env.Watch); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Watch = &b
			}
		}
	}
	if env.Debounce != "" {
		if v := os.Getenv(env.Debounce); v != "" {
			c.Debounce = v
		}
	}
}

func (c *Config) validate() error {
	if !doublestar.ValidatePattern(c.Pattern) {
		return fmt.Errorf("invalid pattern %q", c.Pattern)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive")
	}
	if _, err := time.ParseDuration(c.Debounce); err != nil {
		return fmt.Errorf("invalid debounce: %w", err)
	}
	return nil
}
