package plugin

import (
	"context"
	"time"
)

// Generator is the text generation capability handed to plugins.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, error)
	GenerateCode(ctx context.Context, prompt, language string, opts CodeOptions) (string, error)
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)
}

// TextOptions tunes a generation request. Nil pointers leave the backend default.
type TextOptions struct {
	MaxTokens     *int32
	Temperature   *float32
	TopP          *float32
	TopK          *int32
	StopSequences []string
}

// CodeOptions tunes a code generation request.
type CodeOptions struct {
	TextOptions
	Style           string
	Framework       string
	IncludeComments bool
	IncludeTests    bool
}

// ChatOptions tunes a chat request.
type ChatOptions struct {
	TextOptions
	SystemPrompt string
	Context      string
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// FileSystem is the file capability handed to plugins. Paths are relative to
// the host working directory. Errors are returned unmodified.
type FileSystem interface {
	ReadFile(path string) (string, error)
	WriteFile(path, content string) error
	AppendFile(path, content string) error
	Exists(path string) bool
	Mkdir(path string, recursive bool) error
	ReadDir(path string) ([]string, error)
	Stat(path string) (FileStats, error)
	Copy(src, dst string) error
	Move(src, dst string) error
	Remove(path string) error
}

// FileStats describes a file system entry.
type FileStats struct {
	Size        int64     `json:"size"`
	IsFile      bool      `json:"isFile"`
	IsDirectory bool      `json:"isDirectory"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// Logger is the logging capability handed to plugins. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ProjectInfo describes the project the host runs in.
type ProjectInfo struct {
	Name           string   `json:"name"`
	Path           string   `json:"path"`
	Type           string   `json:"type"`
	Language       string   `json:"language,omitempty"`
	Framework      string   `json:"framework,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	PackageManager string   `json:"packageManager,omitempty"`
}
