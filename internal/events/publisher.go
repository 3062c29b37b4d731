// Package events publishes plugin lifecycle transitions and command
// dispatches to NATS as JSON messages.
//
// Subjects are "<prefix>.lifecycle.<plugin>" and "<prefix>.dispatch.<command>".
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/config"
	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/logfields"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// LifecycleMessage is the payload published on lifecycle subjects.
type LifecycleMessage struct {
	Plugin  string    `json:"plugin"`
	Version string    `json:"version,omitempty"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Kind    string    `json:"kind,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// DispatchMessage is the payload published on dispatch subjects. Result
// data is omitted; it may be large and is already available to the caller.
type DispatchMessage struct {
	Command    string    `json:"command"`
	Plugin     string    `json:"plugin,omitempty"`
	Success    bool      `json:"success"`
	Kind       string    `json:"kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Started    time.Time `json:"started"`
	DurationMS int64     `json:"duration_ms"`
}

// Publisher implements plugin.Observer on top of a NATS connection.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

// Connect dials the configured NATS server.
func Connect(cfg config.EventsConfig, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, ferrors.HostConfigError("events.url is required to publish events").Build()
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("gemini-cli"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.KindHostConfig, "failed to connect to NATS").
			WithContext("url", cfg.URL).Build()
	}
	p := NewPublisher(conn, cfg.SubjectPrefix, logger)
	p.logger.Info("NATS event publisher connected", slog.String("url", cfg.URL), slog.String("prefix", p.prefix))
	return p, nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = config.DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// LifecycleSubject returns the subject used for a plugin's transitions.
func (p *Publisher) LifecycleSubject(pluginID string) string {
	return p.prefix + ".lifecycle." + token(pluginID)
}

// DispatchSubject returns the subject used for a command's dispatches.
func (p *Publisher) DispatchSubject(command string) string {
	return p.prefix + ".dispatch." + token(command)
}

func (p *Publisher) PluginTransition(ctx context.Context, ev plugin.TransitionEvent) {
	p.publish(ctx, p.LifecycleSubject(ev.Plugin), LifecycleMessage{
		Plugin:  ev.Plugin,
		Version: ev.Version,
		From:    ev.From.String(),
		To:      ev.To.String(),
		Kind:    string(ev.Kind),
		Reason:  ev.Reason,
		At:      ev.At,
	})
}

func (p *Publisher) CommandDispatched(ctx context.Context, ev plugin.DispatchEvent) {
	p.publish(ctx, p.DispatchSubject(ev.Command), DispatchMessage{
		Command:    ev.Command,
		Plugin:     ev.Plugin,
		Success:    ev.Result.Success,
		Kind:       string(ev.Result.Kind),
		Error:      ev.Result.Error,
		Started:    ev.Started,
		DurationMS: ev.Duration.Milliseconds(),
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to marshal event", slog.String("subject", subject), logfields.Error(err))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish event", slog.String("subject", subject), logfields.Error(err))
		return
	}
	p.logger.DebugContext(ctx, "Published event", slog.String("subject", subject))
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

// token makes s safe as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
