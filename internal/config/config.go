package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// Config represents the host configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Generation GenerationConfig `yaml:"generation"`
	Plugins    PluginsConfig    `yaml:"plugins"`
	History    HistoryConfig    `yaml:"history"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Events     EventsConfig     `yaml:"events"`
	Server     ServerConfig     `yaml:"server"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// GenerationConfig configures the text generation backend.
type GenerationConfig struct {
	Model   string      `yaml:"model,omitempty"`
	APIKey  string      `yaml:"api_key,omitempty"`
	Timeout string      `yaml:"timeout,omitempty"` // per request, e.g. "60s"
	Retry   RetryConfig `yaml:"retry"`
}

// RetryConfig configures backoff for transient backend failures.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries"`
}

// PluginsConfig selects builtin plugins and carries their configuration.
type PluginsConfig struct {
	Disabled []string `yaml:"disabled,omitempty"`
	// Shared applies to every plugin; Settings entries override it per plugin id.
	Shared   map[string]any            `yaml:"shared,omitempty"`
	Settings map[string]map[string]any `yaml:"settings,omitempty"`
}

// HistoryConfig configures the invocation history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// MetricsConfig toggles Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// EventsConfig configures NATS event publishing. Empty URL disables it.
type EventsConfig struct {
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// ServerConfig configures the HTTP surface started by `serve`.
type ServerConfig struct {
	Addr      string     `yaml:"addr,omitempty"`
	Schedules []Schedule `yaml:"schedules,omitempty"`
}

// Schedule runs a command periodically while serving.
type Schedule struct {
	Name    string         `yaml:"name"`
	Command string         `yaml:"command"`
	Every   string         `yaml:"every"`
	Args    map[string]any `yaml:"args,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.HostConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.KindHostConfig, "failed to read config file").Fatal().Build()
	}
	return Parse(data)
}

// LoadOrDefault loads configPath when it exists and returns defaults otherwise.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}
	loadEnvFiles()
	cfg := &Config{}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML configuration, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.KindHostConfig, "failed to unmarshal config").Fatal().Build()
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDisabled reports whether the plugin id is listed in plugins.disabled.
func (c *Config) IsDisabled(id string) bool {
	for _, d := range c.Plugins.Disabled {
		if d == id {
			return true
		}
	}
	return false
}
