package workflow

import (
	"fmt"
	"os"
	"strconv"
)

// Revision policies applied when the revision ceiling is reached.
const (
	PolicyApprove = "approve"
	PolicyFail    = "fail"
)

// Config holds workflow tuning parameters.
type Config struct {
	RetrievalK     int    `toml:"retrieval_k"`
	MaxRevisions   int    `toml:"max_revisions"`
	RevisionPolicy string `toml:"revision_policy"`
	MaxSteps       int    `toml:"max_steps"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	RetrievalK     string
	MaxRevisions   string
	RevisionPolicy string
	MaxSteps       string
}

// DefaultConfig returns a finalized Config with default values.
func DefaultConfig() Config {
	var c Config
	c.loadDefaults()
	return c
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
	if overlay.RetrievalK != 0 {
		c.RetrievalK = overlay.RetrievalK
	}
	if overlay.MaxRevisions != 0 {
		c.MaxRevisions = overlay.MaxRevisions
	}
	if overlay.RevisionPolicy != "" {
		c.RevisionPolicy = overlay.RevisionPolicy
	}
	if overlay.MaxSteps != 0 {
		c.MaxSteps = overlay.MaxSteps
	}
}

func (c *Config) loadDefaults() {
	if c.RetrievalK == 0 {
		c.RetrievalK = 5
	}
	if c.MaxRevisions == 0 {
		c.MaxRevisions = 3
	}
	if c.RevisionPolicy == "" {
		c.RevisionPolicy = PolicyApprove
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = 50
	}
}

func (c *Config) loadEnv(env *Env) {
	setInt := func(name string, dst *int) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt(env.RetrievalK, &c.RetrievalK)
	setInt(env.MaxRevisions, &c.MaxRevisions)
	setInt(env.MaxSteps, &c.MaxSteps)

	if env.RevisionPolicy != "" {
		if v := os.Getenv(env.RevisionPolicy); v != "" {
			c.RevisionPolicy = v
		}
	}
}

func (c *Config) validate() error {
	if c.RetrievalK < 1 {
		return fmt.Errorf("retrieval_k must be positive")
	}
	if c.MaxRevisions < 1 {
		return fmt.Errorf("max_revisions must be positive")
	}
	if c.RevisionPolicy != PolicyApprove && c.RevisionPolicy != PolicyFail {
		return fmt.Errorf("revision_policy must be %s or %s, got %q", PolicyApprove, PolicyFail, c.RevisionPolicy)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be positive")
	}
	return nil
}
