package origin

import (
	"errors"
	"fmt"
	"go/build"
	"os"
	"path/filepath"
	"strings"

	"pathscrub/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

// ModuleResolver resolves packages of the main module.
type ModuleResolver struct {
	path     string
	dir      string
	requires []module.Version
}

// NewModuleResolver reads the go.mod governing dir (searching upwards).
func NewModuleResolver(dir string) (*ModuleResolver, error) {
	gomod, err := findGoMod(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(gomod)
	if err != nil {
		return nil, fmt.Errorf("failed to read go.mod: %w", err)
	}
	f, err := modfile.ParseLax(gomod, data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if f.Module == nil {
		return nil, fmt.Errorf("%s has no module directive", gomod)
	}

	m := &ModuleResolver{
		path: f.Module.Mod.Path,
		dir:  filepath.Dir(gomod),
	}
	for _, req := range f.Require {
		m.requires = append(m.requires, req.Mod)
	}
	return m, nil
}

func findGoMod(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, "go.mod")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", errors.New("go.mod not found")
		}
		abs = parent
	}
}

// Name implements Resolver.
func (m *ModuleResolver) Name() string { return "module" }

// ModulePath returns the module path declared in go.mod.
func (m *ModuleResolver) ModulePath() string { return m.path }

// Dir returns the module root directory.
func (m *ModuleResolver) Dir() string { return m.dir }

// Requires returns the go.mod require list.
func (m *ModuleResolver) Requires() []module.Version { return m.requires }

// Resolve implements Resolver.
func (m *ModuleResolver) Resolve(importPath string) (*Origin, error) {
	if importPath == m.path {
		return load(m.Name(), importPath, m.dir)
	}
	rel, ok := strings.CutPrefix(importPath, m.path+"/")
	if !ok {
		return nil, ErrNotFound
	}
	return load(m.Name(), importPath, filepath.Join(m.dir, filepath.FromSlash(rel)))
}

// GoRootResolver resolves standard-library packages.
type GoRootResolver struct {
	Root string
}

// NewGoRootResolver uses the toolchain root known to go/build.
func NewGoRootResolver() *GoRootResolver {
	return &GoRootResolver{Root: build.Default.GOROOT}
}

// Name implements Resolver.
func (g *GoRootResolver) Name() string { return "goroot" }

// Resolve implements Resolver.
func (g *GoRootResolver) Resolve(importPath string) (*Origin, error) {
	if g.Root == "" || !isStdlibPath(importPath) {
		return nil, ErrNotFound
	}
	return load(g.Name(), importPath, filepath.Join(g.Root, "src", filepath.FromSlash(importPath)))
}

// ModCacheResolver resolves packages of required modules inside the module
// cache. The longest matching module path wins.
type ModCacheResolver struct {
	Cache    string
	Requires []module.Version
}

// NewModCacheResolver uses GOMODCACHE, falling back to GOPATH/pkg/mod.
func NewModCacheResolver(requires []module.Version) *ModCacheResolver {
	return &ModCacheResolver{Cache: modCacheDir(), Requires: requires}
}

func modCacheDir() string {
	if dir := os.Getenv("GOMODCACHE"); dir != "" {
		return dir
	}
	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		gopath = build.Default.GOPATH
	}
	if gopath == "" {
		return ""
	}
	return filepath.Join(filepath.SplitList(gopath)[0], "pkg", "mod")
}

// Name implements Resolver.
func (c *ModCacheResolver) Name() string { return "modcache" }

// Resolve implements Resolver.
func (c *ModCacheResolver) Resolve(importPath string) (*Origin, error) {
	if c.Cache == "" {
		return nil, ErrNotFound
	}

	var best module.Version
	for _, req := range c.Requires {
		if importPath != req.Path && !strings.HasPrefix(importPath, req.Path+"/") {
			continue
		}
		if len(req.Path) > len(best.Path) {
			best = req
		}
	}
	if best.Path == "" {
		return nil, ErrNotFound
	}

	escPath, err := module.EscapePath(best.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to escape %s: %w", best.Path, err)
	}
	escVersion, err := module.EscapeVersion(best.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to escape %s: %w", best.Version, err)
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(importPath, best.Path), "/")
	dir := filepath.Join(c.Cache, filepath.FromSlash(escPath)+"@"+escVersion, filepath.FromSlash(rel))
	return load(c.Name(), importPath, dir)
}

// DefaultChain returns module, goroot and modcache resolvers for dir. A
// directory outside any module gets only the goroot resolver.
func DefaultChain(dir string) Chain {
	log := logging.Get(logging.CategoryOrigin)

	mod, err := NewModuleResolver(dir)
	if err != nil {
		log.Debug("no main module", zap.Error(err))
		return Chain{NewGoRootResolver()}
	}
	return Chain{mod, NewGoRootResolver(), NewModCacheResolver(mod.Requires())}
}
