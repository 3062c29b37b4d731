// Package project detects the project the host is running in: its root
// (the enclosing git worktree, or the working directory), language,
// framework, dependencies and package manager.
package project

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// Project types.
const (
	TypeWebApp    = "web-app"
	TypeAPIServer = "api-server"
	TypeCLI       = "cli"
	TypeLibrary   = "library"
)

// manifest is what a single manifest file contributes.
type manifest struct {
	name           string
	language       string
	deps           []string
	packageManager string
	cli            bool
}

type inspector struct {
	file    string
	inspect func(fs billy.Filesystem) (*manifest, error)
}

// inspectors are consulted in order; the first manifest present wins.
var inspectors = []inspector{
	{"go.mod", inspectGoMod},
	{"package.json", inspectPackageJSON},
	{"pyproject.toml", inspectPyProject},
	{"Cargo.toml", inspectCargo},
}

// Detect inspects cwd. It returns false when cwd is neither inside a git
// worktree nor holds a recognized manifest.
func Detect(cwd string) (*plugin.ProjectInfo, bool, error) {
	root, remote, inRepo := gitRoot(cwd)
	info, ok, err := Inspect(osfs.New(root, osfs.WithBoundOS()), root)
	if err != nil {
		return nil, false, err
	}
	if !ok && !inRepo {
		return nil, false, nil
	}
	if info.Name == filepath.Base(root) && remote != "" {
		info.Name = repoName(remote)
	}
	return info, true, nil
}

// Inspect reads manifests at the root of fs. root is reported as the project
// path and its base name is the fallback project name.
func Inspect(fs billy.Filesystem, root string) (*plugin.ProjectInfo, bool, error) {
	info := &plugin.ProjectInfo{Name: filepath.Base(root), Path: root, Type: TypeLibrary}
	for _, in := range inspectors {
		if _, err := fs.Stat(in.file); err != nil {
			continue
		}
		m, err := in.inspect(fs)
		if err != nil {
			return nil, false, err
		}
		if m.name != "" {
			info.Name = m.name
		}
		info.Language = m.language
		info.Dependencies = m.deps
		info.PackageManager = m.packageManager
		info.Framework, info.Type = classify(m)
		return info, true, nil
	}
	return info, false, nil
}

// gitRoot returns the worktree root enclosing cwd and its origin URL.
func gitRoot(cwd string) (root, remote string, ok bool) {
	repo, err := git.PlainOpenWithOptions(cwd, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return cwd, "", false
	}
	wt, err := repo.Worktree()
	if err != nil {
		return cwd, "", false
	}
	if r, err := repo.Remote("origin"); err == nil && len(r.Config().URLs) > 0 {
		remote = r.Config().URLs[0]
	}
	return wt.Filesystem.Root(), remote, true
}

// repoName extracts "repo" from URLs like git@host:org/repo.git.
func repoName(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		url = url[i+1:]
	}
	return url
}

// frameworkTypes maps well-known dependencies to framework and project type,
// in priority order.
var frameworkTypes = []struct {
	dep, framework, typ string
}{
	{"next", "next.js", TypeWebApp},
	{"nuxt", "nuxt", TypeWebApp},
	{"@angular/core", "angular", TypeWebApp},
	{"react", "react", TypeWebApp},
	{"vue", "vue", TypeWebApp},
	{"svelte", "svelte", TypeWebApp},
	{"express", "express", TypeAPIServer},
	{"fastify", "fastify", TypeAPIServer},
	{"@nestjs/core", "nestjs", TypeAPIServer},
	{"django", "django", TypeWebApp},
	{"flask", "flask", TypeAPIServer},
	{"fastapi", "fastapi", TypeAPIServer},
	{"github.com/gin-gonic/gin", "gin", TypeAPIServer},
	{"github.com/labstack/echo/v4", "echo", TypeAPIServer},
	{"github.com/go-chi/chi/v5", "chi", TypeAPIServer},
	{"github.com/gofiber/fiber/v2", "fiber", TypeAPIServer},
	{"github.com/spf13/cobra", "cobra", TypeCLI},
	{"github.com/alecthomas/kong", "kong", TypeCLI},
	{"actix-web", "actix-web", TypeAPIServer},
	{"axum", "axum", TypeAPIServer},
	{"rocket", "rocket", TypeAPIServer},
	{"clap", "clap", TypeCLI},
}

func classify(m *manifest) (framework, typ string) {
	deps := make(map[string]bool, len(m.deps))
	for _, d := range m.deps {
		deps[strings.ToLower(d)] = true
	}
	for _, ft := range frameworkTypes {
		if deps[ft.dep] {
			return ft.framework, ft.typ
		}
	}
	if m.cli {
		return "", TypeCLI
	}
	return "", TypeLibrary
}

func exists(fs billy.Filesystem, name string) bool {
	_, err := fs.Stat(name)
	return err == nil
}
