package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// HandlerFunc executes a command. A returned error, or a panic, becomes a
// HandlerFailure result.
type HandlerFunc func(ctx context.Context, args Args, pctx *Context) (Result, error)

// Command is a named entry point exposed by a plugin.
type Command struct {
	Name        string
	Description string
	Aliases     []string
	Options     []Option
	Handler     HandlerFunc

	// PartialResults keeps Data and Files of a failed result instead of
	// clearing them.
	PartialResults bool
}

// OptionType is the declared type of a command option.
type OptionType string

const (
	OptionString  OptionType = "string"
	OptionNumber  OptionType = "number"
	OptionBoolean OptionType = "boolean"
	OptionArray   OptionType = "array"
)

// IsValid returns true if the option type is recognized.
func (t OptionType) IsValid() bool {
	switch t {
	case OptionString, OptionNumber, OptionBoolean, OptionArray:
		return true
	default:
		return false
	}
}

// Option declares one named argument of a command.
type Option struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        OptionType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Default     any        `json:"default,omitempty"`
	// Choices closes the set of accepted values, compared on their string
	// form. For arrays every element must be a choice.
	Choices []string `json:"choices,omitempty"`
}

// Keys returns the command name followed by its aliases.
func (c Command) Keys() []string {
	keys := make([]string, 0, 1+len(c.Aliases))
	keys = append(keys, c.Name)
	for _, a := range c.Aliases {
		if a != c.Name && !slices.Contains(keys, a) {
			keys = append(keys, a)
		}
	}
	return keys
}

// validateDeclaration rejects commands that cannot be dispatched reliably.
func validateDeclaration(cmd Command) error {
	if strings.TrimSpace(cmd.Name) == "" {
		return fmt.Errorf("command name is required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q has no handler", cmd.Name)
	}
	for _, a := range cmd.Aliases {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("command %q declares an empty alias", cmd.Name)
		}
	}
	seen := make(map[string]struct{}, len(cmd.Options))
	for _, opt := range cmd.Options {
		if opt.Name == "" {
			return fmt.Errorf("command %q declares an option without a name", cmd.Name)
		}
		if _, dup := seen[opt.Name]; dup {
			return fmt.Errorf("command %q declares option %q twice", cmd.Name, opt.Name)
		}
		seen[opt.Name] = struct{}{}
		if !opt.Type.IsValid() {
			return fmt.Errorf("option %q has unknown type %q", opt.Name, opt.Type)
		}
		if opt.Default == nil {
			continue
		}
		v, err := coerce(opt.Type, opt.Default)
		if err != nil {
			return fmt.Errorf("default of option %q: %w", opt.Name, err)
		}
		if !inChoices(opt, v) {
			return fmt.Errorf("default of option %q is not one of %v", opt.Name, opt.Choices)
		}
	}
	return nil
}

// applyOptions validates raw against the declared options, in declaration
// order, and returns the resulting Args. Undeclared keys pass through.
func applyOptions(opts []Option, raw map[string]any) (Args, error) {
	values := make(map[string]any, len(opts))
	for _, opt := range opts {
		v, present := raw[opt.Name]
		if !present || v == nil {
			switch {
			case opt.Required:
				return Args{}, ferrors.Newf(ferrors.KindMissingRequiredOption, "missing required option %q", opt.Name).
					WithContext("option", opt.Name).Build()
			case opt.Default != nil:
				v = opt.Default
			default:
				continue
			}
		}

		coerced, err := coerce(opt.Type, v)
		if err != nil {
			return Args{}, ferrors.WrapError(err, ferrors.KindInvalidOptionType,
				fmt.Sprintf("option %q expects a %s", opt.Name, opt.Type)).
				WithContext("option", opt.Name).Build()
		}
		if !inChoices(opt, coerced) {
			return Args{}, ferrors.Newf(ferrors.KindInvalidOptionChoice, "option %q must be one of %s",
				opt.Name, strings.Join(opt.Choices, ", ")).
				WithContext("option", opt.Name).
				WithContext("value", canonical(coerced)).Build()
		}
		values[opt.Name] = coerced
	}

	extra := make(map[string]any)
	for k, v := range raw {
		if _, declared := findOption(opts, k); !declared {
			extra[k] = v
		}
	}
	return Args{values: values, extra: extra}, nil
}

func findOption(opts []Option, name string) (Option, bool) {
	for _, o := range opts {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

func inChoices(opt Option, v any) bool {
	if len(opt.Choices) == 0 {
		return true
	}
	if list, ok := v.([]string); ok {
		for _, item := range list {
			if !slices.Contains(opt.Choices, item) {
				return false
			}
		}
		return true
	}
	return slices.Contains(opt.Choices, canonical(v))
}

// canonical is the string form used for choice comparison.
func canonical(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
}

// coerce converts v to the Go representation of typ: string, float64, bool or
// []string.
func coerce(typ OptionType, v any) (any, error) {
	switch typ {
	case OptionString:
		switch t := v.(type) {
		case string:
			return t, nil
		case bool, int, int32, int64, float32, float64, json.Number:
			n, err := toNumber(t)
			if err == nil {
				return canonical(n), nil
			}
			return canonical(t), nil
		}
	case OptionNumber:
		n, err := toNumber(v)
		if err == nil {
			return n, nil
		}
	case OptionBoolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b, nil
			}
		}
	case OptionArray:
		return toStrings(v)
	}
	return nil, fmt.Errorf("cannot use %T value %v as %s", v, v, typ)
}

func toNumber(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case float32:
		f = float64(t)
	case float64:
		f = t
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", f)
	}
	return f, nil
}

func toStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch item.(type) {
			case []any, []string, map[string]any:
				return nil, fmt.Errorf("nested value %v in array", item)
			}
			out = append(out, canonical(normalizeScalar(item)))
		}
		return out, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}, nil
		}
		parts := strings.Split(t, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
	return nil, fmt.Errorf("cannot use %T value as array", v)
}

func normalizeScalar(v any) any {
	if n, err := toNumber(v); err == nil {
		if _, isString := v.(string); !isString {
			return n
		}
	}
	return v
}
