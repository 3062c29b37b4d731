// Package builtin lists the plugins compiled into the CLI.
package builtin

import (
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin/builtin/projectsimulator"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin/builtin/promptengineering"
)

// entry pairs a factory with the id its plugin reports, so plugins can be
// disabled without being instantiated.
type entry struct {
	id      string
	factory plugin.Factory
}

var catalog = []entry{
	{promptengineering.ID, promptengineering.New},
	{projectsimulator.ID, projectsimulator.New},
}

// IDs returns the ids of all builtin plugins in load order.
func IDs() []string {
	ids := make([]string, len(catalog))
	for i, e := range catalog {
		ids[i] = e.id
	}
	return ids
}

// Factories returns the builtin factories whose id is not disabled.
func Factories(disabled func(id string) bool) []plugin.Factory {
	out := make([]plugin.Factory, 0, len(catalog))
	for _, e := range catalog {
		if disabled != nil && disabled(e.id) {
			continue
		}
		out = append(out, e.factory)
	}
	return out
}
