// Package origin resolves Go import paths to the directories and files they
// are loaded from. Resolvers are arranged in a Chain in lookup order: the
// main module first, then the standard library, then the module cache.
package origin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned by a Resolver that does not know the import path.
var ErrNotFound = errors.New("origin: package not found")

// Origin is where a package's source lives.
type Origin struct {
	ImportPath string
	Dir        string
	Files      []string // non-test .go files, sorted
	Resolver   string
}

// Resolver finds the origin of an import path.
type Resolver interface {
	Name() string
	Resolve(importPath string) (*Origin, error)
}

// Chain tries each resolver in order. The first resolver that does not
// return ErrNotFound decides the result.
type Chain []Resolver

// Name implements Resolver.
func (c Chain) Name() string { return "chain" }

// Resolve implements Resolver.
func (c Chain) Resolve(importPath string) (*Origin, error) {
	for _, r := range c {
		o, err := r.Resolve(importPath)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", r.Name(), err)
		}
	}
	return nil, fmt.Errorf("%q: %w", importPath, ErrNotFound)
}

// load builds an Origin for dir, or ErrNotFound when dir is not a directory.
func load(resolver, importPath, dir string) (*Origin, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat %s: %w", importPath, err)
	}
	if !info.IsDir() {
		return nil, ErrNotFound
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", importPath, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)

	return &Origin{
		ImportPath: importPath,
		Dir:        dir,
		Files:      files,
		Resolver:   resolver,
	}, nil
}

// isStdlibPath reports whether the first path element has no dot, which is
// how the go command tells standard-library paths apart.
func isStdlibPath(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return first != "" && !strings.Contains(first, ".")
}
