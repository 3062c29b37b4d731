package config

import (
	"fmt"
	"strings"
	"time"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	g := cfg.Generation
	if _, err := parsePositive("generation.timeout", g.Timeout); err != nil {
		return err
	}
	if NormalizeRetryBackoff(string(g.Retry.Backoff)) == "" {
		return invalid("generation.retry.backoff", fmt.Sprintf("unknown mode %q, expected one of %s",
			g.Retry.Backoff, strings.Join(retryBackoffs.ValidKeys(), ", ")))
	}
	if _, err := parsePositive("generation.retry.initial_delay", g.Retry.InitialDelay); err != nil {
		return err
	}
	if _, err := parsePositive("generation.retry.max_delay", g.Retry.MaxDelay); err != nil {
		return err
	}
	if g.Retry.MaxRetries < 0 {
		return invalid("generation.retry.max_retries", "cannot be negative")
	}

	seen := make(map[string]struct{}, len(cfg.Server.Schedules))
	for i, s := range cfg.Server.Schedules {
		field := fmt.Sprintf("server.schedules[%d]", i)
		if s.Name == "" {
			return invalid(field+".name", "is required")
		}
		if _, dup := seen[s.Name]; dup {
			return invalid(field+".name", fmt.Sprintf("duplicate schedule %q", s.Name))
		}
		seen[s.Name] = struct{}{}
		if s.Command == "" {
			return invalid(field+".command", "is required")
		}
		if _, err := parsePositive(field+".every", s.Every); err != nil {
			return err
		}
	}
	return nil
}

// Duration parses a validated duration field.
func Duration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}

func parsePositive(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, invalid(field, fmt.Sprintf("invalid duration %q", raw))
	}
	if d <= 0 {
		return 0, invalid(field, "must be positive")
	}
	return d, nil
}

func invalid(field, msg string) error {
	return ferrors.HostConfigError(field+" "+msg).WithContext("field", field).Build()
}
