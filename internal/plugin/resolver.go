package plugin

import (
	"fmt"
	"slices"
	"strings"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// Failure records why a plugin or one of its commands was not loaded.
type Failure struct {
	Plugin  string            `json:"plugin"`
	Command string            `json:"command,omitempty"`
	Kind    ferrors.ErrorKind `json:"kind"`
	Reason  string            `json:"reason"`
	Err     error             `json:"-"`
}

func newFailure(pluginID string, err error) Failure {
	f := Failure{Plugin: pluginID, Kind: ferrors.KindOf(err), Err: err}
	if c, ok := ferrors.AsClassified(err); ok {
		f.Reason = c.Message()
		if c.Cause() != nil {
			f.Reason += ": " + c.Cause().Error()
		}
	} else if err != nil {
		f.Reason = err.Error()
	}
	return f
}

// Resolution is the outcome of dependency resolution.
type Resolution struct {
	// Order lists the ids that can load, dependencies first.
	Order []string
	// Failures lists the plugins that cannot load, in discovery order.
	Failures []Failure
}

// Order returns the initialization order of metas, dependencies first. Among
// plugins whose dependencies are satisfied, discovery order wins. It fails
// with DuplicateId, MissingDependency or CyclicDependency when any plugin
// cannot load.
func Order(metas []Metadata) ([]string, error) {
	res := Resolve(metas)
	for _, f := range res.Failures {
		if f.Kind != ferrors.KindDependencyFailed {
			return nil, f.Err
		}
	}
	if len(res.Failures) > 0 {
		return nil, res.Failures[0].Err
	}
	return res.Order, nil
}

// Resolve orders metas like Order but keeps going past failures: repeated
// ids after the first fail with DuplicateId, plugins with missing or cyclic
// dependencies fail, plugins depending on them fail
// with DependencyFailed, and everything else is ordered.
func Resolve(metas []Metadata) Resolution {
	g := newDepGraph(metas)
	failed := make(map[int]error)

	for i, m := range metas {
		if g.index[m.ID] != i {
			failed[i] = ferrors.Newf(ferrors.KindDuplicateID, "plugin id %q is already registered", m.ID).
				ForPlugin(m.ID).
				Build()
			continue
		}
		var missing []string
		for _, dep := range g.deps[i] {
			if _, ok := g.index[dep]; !ok {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			failed[i] = ferrors.Newf(ferrors.KindMissingDependency, "missing dependencies: %s", strings.Join(missing, ", ")).
				ForPlugin(m.ID).
				WithContext("missing", missing).
				Build()
		}
	}

	for _, cycle := range g.cycles() {
		ids := make([]string, len(cycle))
		for k, i := range cycle {
			ids[k] = metas[i].ID
		}
		for _, i := range cycle {
			if _, already := failed[i]; already {
				continue
			}
			failed[i] = ferrors.Newf(ferrors.KindCyclicDependency, "dependency cycle: %s", strings.Join(ids, ", ")).
				ForPlugin(metas[i].ID).
				WithContext("cycle", ids).
				Build()
		}
	}

	emitted := make([]bool, len(metas))
	var order []string
	for progress := true; progress; {
		progress = false
		for i := range metas {
			if emitted[i] || failed[i] != nil {
				continue
			}
			ready := true
			for _, dep := range g.deps[i] {
				j := g.index[dep]
				if failed[j] != nil {
					failed[i] = ferrors.Newf(ferrors.KindDependencyFailed, "dependency %q cannot load", dep).
						ForPlugin(metas[i].ID).
						WithContext("dependency", dep).
						Build()
					ready = false
					progress = true
					break
				}
				if !emitted[j] {
					ready = false
				}
			}
			if ready {
				emitted[i] = true
				order = append(order, metas[i].ID)
				progress = true
				// Restart so the earliest discovered ready plugin goes next.
				break
			}
		}
	}

	res := Resolution{Order: order}
	for i, m := range metas {
		if err := failed[i]; err != nil {
			res.Failures = append(res.Failures, newFailure(m.ID, err))
		} else if !emitted[i] {
			res.Failures = append(res.Failures, newFailure(m.ID,
				ferrors.NewError(ferrors.KindDependencyFailed, "dependencies cannot be ordered").ForPlugin(m.ID).Build()))
		}
	}
	return res
}

type depGraph struct {
	index map[string]int
	deps  [][]string
}

func newDepGraph(metas []Metadata) *depGraph {
	g := &depGraph{index: make(map[string]int, len(metas)), deps: make([][]string, len(metas))}
	for i, m := range metas {
		if _, dup := g.index[m.ID]; !dup {
			g.index[m.ID] = i
		}
	}
	for i, m := range metas {
		var deps []string
		for _, d := range m.Dependencies {
			if !slices.Contains(deps, d) {
				deps = append(deps, d)
			}
		}
		g.deps[i] = deps
	}
	return g
}

// cycles returns the strongly connected components that form cycles, each
// sorted by discovery position, using Tarjan's algorithm.
func (g *depGraph) cycles() [][]int {
	n := len(g.deps)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var (
		stack  []int
		next   int
		result [][]int
	)

	var strongConnect func(v int)
	strongConnect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, dep := range g.deps[v] {
			w, ok := g.index[dep]
			if !ok {
				continue
			}
			if index[w] == -1 {
				strongConnect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}
		var scc []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) > 1 || g.selfLoop(v) {
			slices.Sort(scc)
			result = append(result, scc)
		}
	}

	for v := range n {
		if index[v] == -1 {
			strongConnect(v)
		}
	}
	slices.SortFunc(result, func(a, b []int) int { return a[0] - b[0] })
	return result
}

func (g *depGraph) selfLoop(v int) bool {
	for _, dep := range g.deps[v] {
		if i, ok := g.index[dep]; ok && i == v {
			return true
		}
	}
	return false
}

// String renders a resolution for log output.
func (r Resolution) String() string {
	return fmt.Sprintf("order=%v failures=%d", r.Order, len(r.Failures))
}
