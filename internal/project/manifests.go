package project

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

func manifestError(err error, file string) error {
	return ferrors.WrapError(err, ferrors.KindInternal, "failed to parse project manifest").
		WithSeverity(ferrors.SeverityWarning).
		WithContext("file", file).Build()
}

func inspectGoMod(fs billy.Filesystem) (*manifest, error) {
	data, err := util.ReadFile(fs, "go.mod")
	if err != nil {
		return nil, manifestError(err, "go.mod")
	}
	mf, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil {
		return nil, manifestError(err, "go.mod")
	}
	m := &manifest{language: "go", packageManager: "go"}
	if mf.Module != nil {
		m.name = mf.Module.Mod.Path
	}
	for _, r := range mf.Require {
		if !r.Indirect {
			m.deps = append(m.deps, r.Mod.Path)
		}
	}
	m.cli = exists(fs, "main.go") || exists(fs, "cmd")
	return m, nil
}

type packageJSON struct {
	Name            string            `json:"name"`
	Bin             json.RawMessage   `json:"bin"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	PackageManager  string            `json:"packageManager"`
}

func inspectPackageJSON(fs billy.Filesystem) (*manifest, error) {
	data, err := util.ReadFile(fs, "package.json")
	if err != nil {
		return nil, manifestError(err, "package.json")
	}
	var pj packageJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, manifestError(err, "package.json")
	}
	m := &manifest{name: pj.Name, language: "javascript", cli: len(pj.Bin) > 0}
	if exists(fs, "tsconfig.json") || pj.DevDependencies["typescript"] != "" {
		m.language = "typescript"
	}
	m.deps = sortedKeys(pj.Dependencies)
	m.packageManager = nodePackageManager(fs, pj.PackageManager)
	return m, nil
}

// nodePackageManager honors the corepack "packageManager" field, then lockfiles.
func nodePackageManager(fs billy.Filesystem, declared string) string {
	if declared != "" {
		name, _, _ := strings.Cut(declared, "@")
		return name
	}
	switch {
	case exists(fs, "pnpm-lock.yaml"):
		return "pnpm"
	case exists(fs, "yarn.lock"):
		return "yarn"
	case exists(fs, "bun.lockb"), exists(fs, "bun.lock"):
		return "bun"
	default:
		return "npm"
	}
}

type pyProject struct {
	Project struct {
		Name         string            `toml:"name"`
		Dependencies []string          `toml:"dependencies"`
		Scripts      map[string]string `toml:"scripts"`
	} `toml:"project"`
	Tool struct {
		Poetry *struct {
			Name         string            `toml:"name"`
			Dependencies map[string]any    `toml:"dependencies"`
			Scripts      map[string]string `toml:"scripts"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func inspectPyProject(fs billy.Filesystem) (*manifest, error) {
	data, err := util.ReadFile(fs, "pyproject.toml")
	if err != nil {
		return nil, manifestError(err, "pyproject.toml")
	}
	var pp pyProject
	if err := toml.Unmarshal(data, &pp); err != nil {
		return nil, manifestError(err, "pyproject.toml")
	}
	m := &manifest{name: pp.Project.Name, language: "python", cli: len(pp.Project.Scripts) > 0}
	for _, d := range pp.Project.Dependencies {
		m.deps = append(m.deps, requirementName(d))
	}
	switch {
	case pp.Tool.Poetry != nil:
		m.packageManager = "poetry"
		if m.name == "" {
			m.name = pp.Tool.Poetry.Name
		}
		for dep := range pp.Tool.Poetry.Dependencies {
			if dep != "python" {
				m.deps = append(m.deps, strings.ToLower(dep))
			}
		}
		m.cli = m.cli || len(pp.Tool.Poetry.Scripts) > 0
	case exists(fs, "uv.lock"):
		m.packageManager = "uv"
	default:
		m.packageManager = "pip"
	}
	sort.Strings(m.deps)
	return m, nil
}

// requirementName strips version specifiers and extras from a PEP 508 string.
func requirementName(req string) string {
	end := strings.IndexAny(req, " <>=!~;[(")
	if end >= 0 {
		req = req[:end]
	}
	return strings.ToLower(strings.TrimSpace(req))
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
	Bin          []any          `toml:"bin"`
}

func inspectCargo(fs billy.Filesystem) (*manifest, error) {
	data, err := util.ReadFile(fs, "Cargo.toml")
	if err != nil {
		return nil, manifestError(err, "Cargo.toml")
	}
	var cm cargoManifest
	if err := toml.Unmarshal(data, &cm); err != nil {
		return nil, manifestError(err, "Cargo.toml")
	}
	return &manifest{
		name:           cm.Package.Name,
		language:       "rust",
		deps:           sortedKeys(cm.Dependencies),
		packageManager: "cargo",
		cli:            len(cm.Bin) > 0 || exists(fs, "src/main.rs"),
	}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
