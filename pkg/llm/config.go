package llm

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds model provider settings.
type Config struct {
	Model               string  `toml:"model"`
	EmbeddingModel      string  `toml:"embedding_model"`
	Temperature         float32 `toml:"temperature"`
	DecisionTemperature float32 `toml:"decision_temperature"`
	BaseURL             string  `toml:"base_url"`
	APIKey              string  `toml:"api_key"`
	Timeout             string  `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Model          string
	EmbeddingModel string
	Temperature    string
	BaseURL        string
	APIKey         string
	Timeout        string
}

// Enabled reports whether credentials are present.
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
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.EmbeddingModel != "" {
		c.EmbeddingModel = overlay.EmbeddingModel
	}
	if overlay.Temperature != 0 {
		c.Temperature = overlay.Temperature
	}
	if overlay.DecisionTemperature != 0 {
		c.DecisionTemperature = overlay.DecisionTemperature
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.DecisionTemperature == 0 {
		c.DecisionTemperature = 0.1
	}
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.EmbeddingModel != "" {
		if v := os.Getenv(env.EmbeddingModel); v != "" {
			c.EmbeddingModel = v
		}
	}
	if env.Temperature != "" {
		if v := os.Getenv(env.Temperature); v != "" {
			if f, err := strconv.ParseFloat(v, 32); err == nil {
				c.Temperature = float32(f)
			}
		}
	}
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", c.Temperature)
	}
	if c.DecisionTemperature < 0 || c.DecisionTemperature > 2 {
		return fmt.Errorf("decision_temperature must be within [0, 2], got %v", c.DecisionTemperature)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
