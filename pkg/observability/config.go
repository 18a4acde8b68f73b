package observability

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Config selects which observers receive workflow events.
type Config struct {
	// Observers lists enabled sinks: "slog", "metrics", "nats".
	Observers []string   `toml:"observers"`
	Level     string     `toml:"level"`
	NATS      NATSConfig `toml:"nats"`
}

// NATSConfig holds connection settings for the event publisher.
type NATSConfig struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
	ClientName    string `toml:"client_name"`
	MaxReconnects int    `toml:"max_reconnects"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Observers     string
	Level         string
	NATSURL       string
	SubjectPrefix string
	MaxReconnects string
}

var knownObservers = []string{"slog", "metrics", "nats"}

// Enabled reports whether the named observer is configured.
func (c *Config) Enabled(name string) bool {
	return slices.Contains(c.Observers, name)
}

// MinLevel parses Level, falling back to LevelInfo.
func (c *Config) MinLevel() Level {
	switch strings.ToLower(c.Level) {
	case "verbose", "debug":
		return LevelVerbose
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
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
	if len(overlay.Observers) > 0 {
		c.Observers = overlay.Observers
	}
	if overlay.Level != "" {
		c.Level = overlay.Level
	}
	if overlay.NATS.URL != "" {
		c.NATS.URL = overlay.NATS.URL
	}
	if overlay.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = overlay.NATS.SubjectPrefix
	}
	if overlay.NATS.ClientName != "" {
		c.NATS.ClientName = overlay.NATS.ClientName
	}
	if overlay.NATS.MaxReconnects != 0 {
		c.NATS.MaxReconnects = overlay.NATS.MaxReconnects
	}
}

func (c *Config) loadDefaults() {
	if c.Observers == nil {
		c.Observers = []string{"slog", "metrics"}
	}
	if c.Level == "" {
		c.Level = "info"
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "mailflow.events"
	}
	if c.NATS.ClientName == "" {
		c.NATS.ClientName = "mailflow"
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 10
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Observers != "" {
		if v := os.Getenv(env.Observers); v != "" {
			c.Observers = splitList(v)
		}
	}
	if env.Level != "" {
		if v := os.Getenv(env.Level); v != "" {
			c.Level = v
		}
	}
	if env.NATSURL != "" {
		if v := os.Getenv(env.NATSURL); v != "" {
			c.NATS.URL = v
		}
	}
	if env.SubjectPrefix != "" {
		if v := os.Getenv(env.SubjectPrefix); v != "" {
			c.NATS.SubjectPrefix = v
		}
	}
	if env.MaxReconnects != "" {
		if v := os.Getenv(env.MaxReconnects); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.NATS.MaxReconnects = n
			}
		}
	}
}

func (c *Config) validate() error {
	for _, name := range c.Observers {
		if !slices.Contains(knownObservers, name) {
			return fmt.Errorf("unknown observer %q", name)
		}
	}
	if c.Enabled("nats") && c.NATS.URL == "" {
		return fmt.Errorf("nats url required when nats observer is enabled")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
