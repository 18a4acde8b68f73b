package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/checkpoint"
	"github.com/Montabos/Projet/pkg/database"
	"github.com/Montabos/Projet/pkg/llm"
	"github.com/Montabos/Projet/pkg/observability"
	"github.com/Montabos/Projet/pkg/retrieval"
	"github.com/Montabos/Projet/pkg/storage"
	"github.com/Montabos/Projet/pkg/websearch"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvMailflowEnv             = "MAILFLOW_ENV"
	EnvMailflowLogLevel        = "MAILFLOW_LOG_LEVEL"
	EnvMailflowShutdownTimeout = "MAILFLOW_SHUTDOWN_TIMEOUT"
	EnvMailflowVersion         = "MAILFLOW_VERSION"
)

var storeEnv = &checkpoint.Env{
	Backend:     "MAILFLOW_STORE_BACKEND",
	Path:        "MAILFLOW_STORE_PATH",
	AutoMigrate: "MAILFLOW_STORE_AUTO_MIGRATE",
	Database: &database.Env{
		URL:             "MAILFLOW_DB_URL",
		Host:            "MAILFLOW_DB_HOST",
		Port:            "MAILFLOW_DB_PORT",
		Name:            "MAILFLOW_DB_NAME",
		User:            "MAILFLOW_DB_USER",
		Password:        "MAILFLOW_DB_PASSWORD",
		SSLMode:         "MAILFLOW_DB_SSL_MODE",
		MaxOpenConns:    "MAILFLOW_DB_MAX_OPEN_CONNS",
		MaxIdleConns:    "MAILFLOW_DB_MAX_IDLE_CONNS",
		ConnMaxLifetime: "MAILFLOW_DB_CONN_MAX_LIFETIME",
		ConnTimeout:     "MAILFLOW_DB_CONN_TIMEOUT",
	},
}

var storageEnv = &storage.Env{
	ContainerName:    "MAILFLOW_STORAGE_CONTAINER_NAME",
	ConnectionString: "MAILFLOW_STORAGE_CONNECTION_STRING",
	AccountURL:       "MAILFLOW_STORAGE_ACCOUNT_URL",
}

// The API keys keep their conventional provider names.
var agentEnv = &llm.Env{
	Model:          "MAILFLOW_AGENT_MODEL",
	EmbeddingModel: "MAILFLOW_AGENT_EMBEDDING_MODEL",
	Temperature:    "MAILFLOW_AGENT_TEMPERATURE",
	BaseURL:        "MAILFLOW_AGENT_BASE_URL",
	APIKey:         "OPENAI_API_KEY",
	Timeout:        "MAILFLOW_AGENT_TIMEOUT",
}

var searchEnv = &websearch.Env{
	Endpoint:   "MAILFLOW_SEARCH_ENDPOINT",
	APIKey:     "TAVILY_API_KEY",
	MaxResults: "MAILFLOW_SEARCH_MAX_RESULTS",
	Timeout:    "MAILFLOW_SEARCH_TIMEOUT",
}

var corpusEnv = &retrieval.Env{
	Dir:      "MAILFLOW_CORPUS_DIR",
	Pattern:  "MAILFLOW_CORPUS_PATTERN",
	Cache:    "MAILFLOW_CORPUS_CACHE",
	Watch:    "MAILFLOW_CORPUS_WATCH",
	Debounce: "MAILFLOW_CORPUS_DEBOUNCE",
}

var workflowEnv = &workflow.Env{
	RetrievalK:     "MAILFLOW_WORKFLOW_RETRIEVAL_K",
	MaxRevisions:   "MAILFLOW_WORKFLOW_MAX_REVISIONS",
	RevisionPolicy: "MAILFLOW_WORKFLOW_REVISION_POLICY",
	MaxSteps:       "MAILFLOW_WORKFLOW_MAX_STEPS",
}

var observabilityEnv = &observability.Env{
	Observers:     "MAILFLOW_OBSERVERS",
	Level:         "MAILFLOW_OBSERVER_LEVEL",
	NATSURL:       "MAILFLOW_NATS_URL",
	SubjectPrefix: "MAILFLOW_NATS_SUBJECT_PREFIX",
	MaxReconnects: "MAILFLOW_NATS_MAX_RECONNECTS",
}

// Config is the root configuration for mailflow.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Store           checkpoint.Config    `toml:"store"`
	Storage         storage.Config       `toml:"storage"`
	API             APIConfig            `toml:"api"`
	Agent           llm.Config           `toml:"agent"`
	Search          websearch.Config     `toml:"search"`
	Corpus          retrieval.Config     `toml:"corpus"`
	Workflow        workflow.Config      `toml:"workflow"`
	Observability   observability.Config `toml:"observability"`
	LogLevel        string               `toml:"log_level"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the MAILFLOW_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvMailflowEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads config.toml from the working directory. See LoadFrom.
func Load() (*Config, error) {
	return LoadFrom(BaseConfigFile)
}

// LoadFrom reads the base config at path (if present), applies the
// config.<MAILFLOW_ENV>.toml overlay next to it, and finalizes all values.
// Without a base file, defaults and environment variables provide all
// configuration.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if overlay := overlayPath(path); overlay != "" {
		loaded, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(loaded)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Store.Merge(&overlay.Store)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Search.Merge(&overlay.Search)
	c.Corpus.Merge(&overlay.Corpus)
	c.Workflow.Merge(&overlay.Workflow)
	c.Observability.Merge(&overlay.Observability)
}

// Finalize applies defaults, environment overrides, and validation to the
// root and every section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"store", func() error { return c.Store.Finalize(storeEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"agent", func() error { return c.Agent.Finalize(agentEnv) }},
		{"search", func() error { return c.Search.Finalize(searchEnv) }},
		{"corpus", func() error { return c.Corpus.Finalize(corpusEnv) }},
		{"workflow", func() error { return c.Workflow.Finalize(workflowEnv) }},
		{"observability", func() error { return c.Observability.Finalize(observabilityEnv) }},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvMailflowLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvMailflowShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvMailflowVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(base string) string {
	env := os.Getenv(EnvMailflowEnv)
	if env == "" {
		return ""
	}

	path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
