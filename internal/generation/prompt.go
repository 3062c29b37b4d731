package generation

import (
	"strings"

	"github.com/google/generative-ai-go/genai"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// Gemini chat roles.
const (
	roleUser  = "user"
	roleModel = "model"
)

func codePrompt(prompt, language string, opts plugin.CodeOptions) string {
	if language == "" {
		language = "javascript"
	}
	lines := []string{"You are an expert " + language + " developer. Write " + language + " code for the following request."}
	if opts.Framework != "" {
		lines = append(lines, "Use the "+opts.Framework+" framework.")
	}
	if opts.Style != "" {
		lines = append(lines, "Follow this coding style: "+opts.Style+".")
	}
	if opts.IncludeComments {
		lines = append(lines, "Include explanatory comments.")
	} else {
		lines = append(lines, "Keep comments to a minimum.")
	}
	if opts.IncludeTests {
		lines = append(lines, "Include unit tests.")
	}
	lines = append(lines, "Return the code in a fenced code block.", "", prompt)
	return strings.Join(lines, "\n")
}

// chatRequest maps a conversation onto Gemini contents. System messages and
// opts.SystemPrompt become the system instruction; the last message must
// come from the user and is sent as the new turn.
func chatRequest(messages []plugin.ChatMessage, opts plugin.ChatOptions) (request, error) {
	var system []string
	if opts.SystemPrompt != "" {
		system = append(system, opts.SystemPrompt)
	}
	if opts.Context != "" {
		system = append(system, "Context:\n"+opts.Context)
	}

	var history []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case plugin.RoleSystem:
			system = append(system, m.Content)
		case plugin.RoleUser:
			history = append(history, &genai.Content{Role: roleUser, Parts: []genai.Part{genai.Text(m.Content)}})
		case plugin.RoleAssistant:
			history = append(history, &genai.Content{Role: roleModel, Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			return request{}, ferrors.Newf(ferrors.KindBackend, "unknown chat role %q", m.Role).Build()
		}
	}
	if len(history) == 0 || history[len(history)-1].Role != roleUser {
		return request{}, ferrors.BackendError("chat must end with a user message").Build()
	}

	last := history[len(history)-1]
	req := request{history: history[:len(history)-1], parts: last.Parts, opts: opts.TextOptions}
	if len(system) > 0 {
		req.system = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	return req, nil
}
