// Package shim installs a small Go file that blank-imports pathscrub/auto
// into a package directory, so every build of that package anonymizes its
// output from startup. A checksum written next to the shim lets Uninstall
// refuse to delete a file that was modified after installation.
package shim

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"pathscrub/internal/logging"

	"go.uber.org/zap"
)

const (
	DefaultFileName   = "zz_pathscrub_auto.go"
	DefaultSumName    = "pathscrub_shim.sum"
	DefaultImportPath = "pathscrub/auto"
)

var (
	ErrShimExists       = errors.New("shim already exists")
	ErrNotInstalled     = errors.New("shim is not installed")
	ErrChecksumMissing  = errors.New("checksum file not found, cannot verify shim integrity")
	ErrChecksumMismatch = errors.New("shim has been modified since installation")
)

//go:embed shim.go.tmpl
var shimTemplate string

var tmpl = template.Must(template.New("shim").Parse(shimTemplate))

// Options describes where the shim lives.
type Options struct {
	Dir        string // target package directory, defaults to "."
	FileName   string
	SumName    string
	ImportPath string
	Package    string // package clause; detected from Dir when empty
	Force      bool   // overwrite an existing shim
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.FileName == "" {
		o.FileName = DefaultFileName
	}
	if o.SumName == "" {
		o.SumName = DefaultSumName
	}
	if o.ImportPath == "" {
		o.ImportPath = DefaultImportPath
	}
	return o
}

// ShimPath returns the path of the shim file.
func (o Options) ShimPath() string {
	o = o.withDefaults()
	return filepath.Join(o.Dir, o.FileName)
}

// SumPath returns the path of the checksum file.
func (o Options) SumPath() string {
	o = o.withDefaults()
	return filepath.Join(o.Dir, o.SumName)
}

// Result reports a completed install.
type Result struct {
	Path      string
	SumPath   string
	Checksum  string
	Package   string
	Overwrote bool
}

// Render returns the shim source for a package.
func Render(pkg, importPath string) ([]byte, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct{ Package, ImportPath string }{pkg, importPath})
	if err != nil {
		return nil, fmt.Errorf("failed to render shim: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectPackage returns the package name declared by the non-test Go files
// in dir, ignoring skip. A directory without Go files yields "main".
func DetectPackage(dir, skip string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || n == skip || !strings.HasSuffix(n, ".go") || strings.HasSuffix(n, "_test.go") {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)

	fset := token.NewFileSet()
	for _, n := range names {
		f, err := parser.ParseFile(fset, filepath.Join(dir, n), nil, parser.PackageClauseOnly)
		if err != nil {
			continue
		}
		return f.Name.Name, nil
	}
	return "main", nil
}

// Install writes the shim and its checksum. An existing shim is only
// replaced when opts.Force is set.
func Install(opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := logging.Get(logging.CategoryShim)

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.Dir, err)
	}

	dest := opts.ShimPath()
	overwrote := false
	if _, err := os.Stat(dest); err == nil {
		if !opts.Force {
			return nil, fmt.Errorf("%w at %s; use --force to overwrite it (use with caution)", ErrShimExists, dest)
		}
		overwrote = true
		log.Warn("overwriting existing shim", zap.String("file", opts.FileName))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to check %s: %w", dest, err)
	}

	pkg := opts.Package
	if pkg == "" {
		detected, err := DetectPackage(opts.Dir, opts.FileName)
		if err != nil {
			return nil, err
		}
		pkg = detected
	}
	src, err := Render(pkg, opts.ImportPath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dest, src, 0644); err != nil {
		return nil, fmt.Errorf("failed to write shim: %w", err)
	}

	sum, err := FileChecksum(dest)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(opts.SumPath(), []byte(sum+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to write checksum: %w", err)
	}

	log.Info("shim installed", zap.String("package", pkg), zap.String("file", opts.FileName))
	return &Result{
		Path:      dest,
		SumPath:   opts.SumPath(),
		Checksum:  sum,
		Package:   pkg,
		Overwrote: overwrote,
	}, nil
}

// Verify checks the installed shim against its recorded checksum.
func Verify(opts Options) error {
	opts = opts.withDefaults()

	if _, err := os.Stat(opts.ShimPath()); err != nil {
		if os.IsNotExist(err) {
			return ErrNotInstalled
		}
		return fmt.Errorf("failed to check shim: %w", err)
	}

	data, err := os.ReadFile(opts.SumPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrChecksumMissing
		}
		return fmt.Errorf("failed to read checksum: %w", err)
	}
	stored := strings.TrimSpace(string(data))

	current, err := FileChecksum(opts.ShimPath())
	if err != nil {
		return err
	}
	if current != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// Uninstall removes the shim and its checksum after verifying the shim is
// unchanged. Nothing is removed when verification fails.
func Uninstall(opts Options) error {
	opts = opts.withDefaults()
	if err := Verify(opts); err != nil {
		return err
	}
	if err := os.Remove(opts.ShimPath()); err != nil {
		return fmt.Errorf("failed to remove shim: %w", err)
	}
	if err := os.Remove(opts.SumPath()); err != nil {
		return fmt.Errorf("failed to remove checksum: %w", err)
	}
	logging.Get(logging.CategoryShim).Info("shim uninstalled", zap.String("file", opts.FileName))
	return nil
}
