package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Montabos/Projet/pkg/formatting"
	"github.com/Montabos/Projet/pkg/pagination"
)

const (
	EnvAPIBasePath    = "MAILFLOW_API_BASE_PATH"
	EnvAPIMaxBodySize = "MAILFLOW_API_MAX_BODY_SIZE"
)

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "MAILFLOW_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "MAILFLOW_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing and pagination settings.
type APIConfig struct {
	BasePath    string            `toml:"base_path"`
	MaxBodySize string            `toml:"max_body_size"`
	Pagination  pagination.Config `toml:"pagination"`
}

// MaxBodySizeBytes returns MaxBodySize as a byte count.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxBodySize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested pagination config.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	trimmed := strings.TrimSuffix(c.BasePath, "/")
	if !strings.HasPrefix(trimmed, "/") || strings.Count(trimmed, "/") != 1 {
		return fmt.Errorf("base_path must be a single-level path such as /api: %q", c.BasePath)
	}
	if size, err := formatting.ParseBytes(c.MaxBodySize); err != nil || size <= 0 {
		return fmt.Errorf("max_body_size must be a positive size: %q", c.MaxBodySize)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize != "" {
		c.MaxBodySize = overlay.MaxBodySize
	}
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxBodySize); v != "" {
		c.MaxBodySize = v
	}
}
