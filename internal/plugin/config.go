package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// ValidateConfig checks cfg against the plugin's schema and validation hook.
// Plugins without either accept any configuration.
func ValidateConfig(p Plugin, cfg map[string]any) (err error) {
	id := p.Metadata().ID
	defer func() {
		if r := recover(); r != nil {
			err = ferrors.Newf(ferrors.KindInvalidConfig, "config validation panicked: %v", r).ForPlugin(id).Build()
		}
	}()

	if sp, ok := p.(ConfigSchemaProvider); ok {
		if schema := sp.ConfigSchema(); len(schema) > 0 {
			if err := validateAgainstSchema(id, schema, cfg); err != nil {
				return ferrors.WrapError(err, ferrors.KindInvalidConfig, "configuration does not match schema").
					ForPlugin(id).Build()
			}
		}
	}

	if v, ok := p.(ConfigValidator); ok {
		if !v.ValidateConfig(cfg) {
			return ferrors.NewError(ferrors.KindInvalidConfig, "configuration rejected by plugin").
				ForPlugin(id).Build()
		}
	}
	return nil
}

func validateAgainstSchema(id string, schema []byte, cfg map[string]any) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON schema: %w", err)
	}

	url := "plugin://" + id + "/config.schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return fmt.Errorf("failed to add resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	// Round-trip through JSON so YAML-decoded values validate as JSON would.
	if cfg == nil {
		cfg = map[string]any{}
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return compiled.Validate(instance)
}
