package generation

import (
	"context"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// Unavailable is the generator used when no backend could be configured.
// Every call fails with Reason wrapped as a Backend error, so plugins still
// load and only generation-dependent commands fail.
type Unavailable struct {
	Reason error
}

var _ plugin.Generator = Unavailable{}

func (u Unavailable) err() error {
	return ferrors.WrapError(u.Reason, ferrors.KindBackend, "generation backend unavailable").Build()
}

func (u Unavailable) GenerateText(context.Context, string, plugin.TextOptions) (string, error) {
	return "", u.err()
}

func (u Unavailable) GenerateCode(context.Context, string, string, plugin.CodeOptions) (string, error) {
	return "", u.err()
}

func (u Unavailable) Chat(context.Context, []plugin.ChatMessage, plugin.ChatOptions) (string, error) {
	return "", u.err()
}
