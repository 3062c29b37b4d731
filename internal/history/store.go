// Package history persists command invocations in SQLite so they can be
// listed by the CLI and the HTTP surface.
package history

import (
	"context"
	"time"
)

// Entry is one recorded command invocation.
type Entry struct {
	ID         string         `json:"id"`
	Command    string         `json:"command"`
	Plugin     string         `json:"plugin,omitempty"`
	Success    bool           `json:"success"`
	Kind       string         `json:"kind,omitempty"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
}

// Query filters List results. Zero Limit means DefaultLimit.
type Query struct {
	Limit   int
	Command string
}

// DefaultLimit bounds List when no limit is requested.
const DefaultLimit = 20

// Store defines the interface for persisting and retrieving invocations.
type Store interface {
	// Append records an invocation. Entries without an ID get a fresh one.
	Append(ctx context.Context, e Entry) error

	// List returns the most recent invocations first.
	List(ctx context.Context, q Query) ([]Entry, error)

	// Close closes the store and releases resources.
	Close() error
}
