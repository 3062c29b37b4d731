package plugin

import (
	"maps"
	"slices"
)

// Args holds the validated option values of one invocation plus any
// undeclared arguments, which are passed through untouched.
type Args struct {
	values map[string]any
	extra  map[string]any
}

// NewArgs builds Args directly, bypassing option validation. Meant for tests
// and for plugins calling their own handlers.
func NewArgs(values, extra map[string]any) Args {
	return Args{values: maps.Clone(values), extra: maps.Clone(extra)}
}

// Has reports whether the option has a value, given or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Value returns the raw validated value of an option.
func (a Args) Value(name string) (any, bool) {
	v, ok := a.values[name]
	return v, ok
}

// String returns a string option or "".
func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

// Number returns a number option or 0.
func (a Args) Number(name string) float64 {
	f, _ := a.values[name].(float64)
	return f
}

// Int returns a number option truncated to int.
func (a Args) Int(name string) int {
	return int(a.Number(name))
}

// Bool returns a boolean option or false.
func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

// Strings returns an array option or nil.
func (a Args) Strings(name string) []string {
	s, _ := a.values[name].([]string)
	return slices.Clone(s)
}

// Values returns a copy of all validated option values.
func (a Args) Values() map[string]any {
	out := maps.Clone(a.values)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// Extra returns a copy of the undeclared arguments.
func (a Args) Extra() map[string]any {
	out := maps.Clone(a.extra)
	if out == nil {
		out = map[string]any{}
	}
	return out
}
