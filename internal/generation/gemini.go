package generation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/config"
	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/logfields"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/metrics"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/retry"
)

// request is one backend call. history is only set for chats.
type request struct {
	system  *genai.Content
	history []*genai.Content
	parts   []genai.Part
	opts    plugin.TextOptions
}

// backend performs a single, unretried generation call.
type backend interface {
	generate(ctx context.Context, model string, req request) (*genai.GenerateContentResponse, error)
	close() error
}

// Client is a plugin.Generator backed by Gemini.
type Client struct {
	backend  backend
	model    string
	timeout  time.Duration
	policy   retry.Policy
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder counts retries on rec.
func WithRecorder(rec metrics.Recorder) Option {
	return func(c *Client) {
		if rec != nil {
			c.recorder = rec
		}
	}
}

// New connects to Gemini using cfg.APIKey.
func New(ctx context.Context, cfg config.GenerationConfig, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ferrors.HostConfigError("generation api key is not set").
			WithContext("env", config.APIKeyEnv).Build()
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.KindBackend, "failed to create Gemini client").Build()
	}
	return newClient(&geminiBackend{client: gc}, cfg, opts...), nil
}

func newClient(b backend, cfg config.GenerationConfig, opts ...Option) *Client {
	model := cfg.Model
	if model == "" {
		model = config.DefaultModel
	}
	c := &Client{
		backend:  b,
		model:    model,
		timeout:  config.Duration(cfg.Timeout),
		policy:   retry.FromConfig(cfg.Retry),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Close releases the underlying client.
func (c *Client) Close() error { return c.backend.close() }

func (c *Client) GenerateText(ctx context.Context, prompt string, opts plugin.TextOptions) (string, error) {
	return c.do(ctx, "generate_text", request{parts: []genai.Part{genai.Text(prompt)}, opts: opts})
}

func (c *Client) GenerateCode(ctx context.Context, prompt, language string, opts plugin.CodeOptions) (string, error) {
	return c.do(ctx, "generate_code", request{
		parts: []genai.Part{genai.Text(codePrompt(prompt, language, opts))},
		opts:  opts.TextOptions,
	})
}

func (c *Client) Chat(ctx context.Context, messages []plugin.ChatMessage, opts plugin.ChatOptions) (string, error) {
	req, err := chatRequest(messages, opts)
	if err != nil {
		return "", err
	}
	return c.do(ctx, "chat", req)
}

func (c *Client) do(ctx context.Context, operation string, req request) (string, error) {
	var answer string
	err := c.policy.Do(ctx, isTransient,
		func(attempt int, delay time.Duration, err error) {
			c.recorder.IncGenerationRetry(operation)
			c.logger.WarnContext(ctx, "Retrying generation request",
				logfields.Model(c.model), logfields.Attempt(attempt),
				slog.Duration("delay", delay), logfields.Error(err))
		},
		func(ctx context.Context) error {
			if c.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}
			resp, err := c.backend.generate(ctx, c.model, req)
			if err != nil {
				return err
			}
			answer, err = responseText(resp)
			return err
		})
	if err != nil {
		return "", backendError(operation, err)
	}
	return answer, nil
}

func backendError(operation string, err error) error {
	if c, ok := ferrors.AsClassified(err); ok && c.Kind() == ferrors.KindBackend {
		return err
	}
	b := ferrors.WrapError(err, ferrors.KindBackend, "generation request failed").
		WithContext("operation", operation)
	if isTransient(err) {
		b = b.Retryable()
	}
	return b.Build()
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ferrors.BackendError("model returned no candidates").Build()
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", ferrors.BackendError("model returned an empty candidate").
			WithContext("finish_reason", cand.FinishReason.String()).Build()
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

func applyOptions(m *genai.GenerativeModel, opts plugin.TextOptions) {
	m.MaxOutputTokens = opts.MaxTokens
	m.Temperature = opts.Temperature
	m.TopP = opts.TopP
	m.TopK = opts.TopK
	m.StopSequences = opts.StopSequences
}

// geminiBackend is the production backend.
type geminiBackend struct {
	client *genai.Client
}

func (g *geminiBackend) generate(ctx context.Context, model string, req request) (*genai.GenerateContentResponse, error) {
	m := g.client.GenerativeModel(model)
	applyOptions(m, req.opts)
	m.SystemInstruction = req.system
	if len(req.history) == 0 {
		return m.GenerateContent(ctx, req.parts...)
	}
	cs := m.StartChat()
	cs.History = req.history
	return cs.SendMessage(ctx, req.parts...)
}

func (g *geminiBackend) close() error { return g.client.Close() }
