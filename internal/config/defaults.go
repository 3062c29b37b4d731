package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultModel         = "gemini-1.5-flash"
	DefaultTimeout       = "60s"
	DefaultServerAddr    = ":8080"
	DefaultSubjectPrefix = "gemini.plugins"
	APIKeyEnv            = "GEMINI_API_KEY"
)

func applyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))

	g := &cfg.Generation
	if g.Model == "" {
		g.Model = DefaultModel
	}
	if g.APIKey == "" {
		g.APIKey = os.Getenv(APIKeyEnv)
	}
	if g.Timeout == "" {
		g.Timeout = DefaultTimeout
	}
	if g.Retry.Backoff == "" {
		g.Retry.Backoff = RetryBackoffExponential
	} else if m := NormalizeRetryBackoff(string(g.Retry.Backoff)); m != "" {
		g.Retry.Backoff = m
	}
	if g.Retry.InitialDelay == "" {
		g.Retry.InitialDelay = "1s"
	}
	if g.Retry.MaxDelay == "" {
		g.Retry.MaxDelay = "10s"
	}

	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath()
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	return nil
}

func defaultHistoryPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gemini-cli", "history.db")
	}
	return filepath.Join(".gemini-cli", "history.db")
}
