package anon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pathscrub/internal/logging"
	"pathscrub/internal/redirect"

	"go.uber.org/zap"
)

// EnvRoot carries the configured root to this process and its children.
const EnvRoot = "ANONYMIZATION_ROOT_DIR"

// Options configures Install.
type Options struct {
	// Root is the project root. Empty means RootFromEnv.
	Root string

	// Target is the output slot to wrap. Defaults to &os.Stderr.
	Target **os.File

	Logger *zap.Logger

	// Exit ends the process after a panic report. Defaults to os.Exit.
	Exit func(code int)

	// DiscardCapture forwards without keeping a copy of the output, for
	// long-running processes.
	DiscardCapture bool
}

// Context is one installed anonymization of an output stream. It is owned
// by the caller: Install creates it and Uninstall tears it down.
type Context struct {
	anon      *Anonymizer
	stderr    *Writer
	redirect  *redirect.Redirect
	target    **os.File
	exit      func(int)
	log       *zap.Logger
	installed bool
}

// RootFromEnv returns $ANONYMIZATION_ROOT_DIR, or the working directory
// when it is unset.
func RootFromEnv() (string, error) {
	root := os.Getenv(EnvRoot)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	return filepath.Clean(abs), nil
}

func (o Options) resolved() (Options, error) {
	if o.Root == "" {
		root, err := RootFromEnv()
		if err != nil {
			return o, err
		}
		o.Root = root
	} else {
		abs, err := filepath.Abs(o.Root)
		if err != nil {
			return o, fmt.Errorf("failed to resolve root: %w", err)
		}
		o.Root = filepath.Clean(abs)
	}
	if o.Target == nil {
		o.Target = &os.Stderr
	}
	if o.Logger == nil {
		o.Logger = logging.Get(logging.CategoryAnon)
	}
	if o.Exit == nil {
		o.Exit = os.Exit
	}
	return o, nil
}

// Install wraps the target stream so every line written to it is
// anonymized, and exports the root through EnvRoot.
func Install(opts Options) (*Context, error) {
	opts, err := opts.resolved()
	if err != nil {
		return nil, err
	}
	a, err := New(opts.Root, WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}

	c := &Context{
		anon:   a,
		target: opts.Target,
		exit:   opts.Exit,
		log:    opts.Logger,
	}
	var wopts []WriterOption
	if opts.DiscardCapture {
		wopts = append(wopts, DiscardCapture())
	}
	r, err := redirect.Start(opts.Target, func(orig *os.File) io.Writer {
		c.stderr = NewWriter(orig, a, wopts...)
		return c.stderr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to install anonymization: %w", err)
	}
	c.redirect = r
	c.installed = true

	if err := os.Setenv(EnvRoot, a.Root()); err != nil {
		c.log.Warn("failed to export root", zap.Error(err))
	}
	c.log.Debug("anonymization installed")
	return c, nil
}

// Configure returns prev when it is installed with the same root. Otherwise
// prev is uninstalled and a new context is installed with opts. A nil
// opts.Target reuses prev's target.
func Configure(prev *Context, opts Options) (*Context, error) {
	if opts.Target == nil && prev != nil {
		opts.Target = prev.target
	}
	resolved, err := opts.resolved()
	if err != nil {
		return prev, err
	}
	if prev.Installed() && prev.Root() == resolved.Root {
		return prev, nil
	}
	if err := prev.Uninstall(); err != nil {
		return nil, err
	}
	return Install(resolved)
}

// Reset uninstalls c. It is safe on nil and on uninstalled contexts.
func Reset(c *Context) error {
	return c.Uninstall()
}

// Uninstall restores the original stream after flushing pending lines.
func (c *Context) Uninstall() error {
	if !c.Installed() {
		return nil
	}
	c.installed = false
	if err := c.redirect.Stop(); err != nil {
		return fmt.Errorf("failed to uninstall anonymization: %w", err)
	}
	c.log.Debug("anonymization uninstalled")
	return nil
}

// Installed reports whether c currently wraps its stream.
func (c *Context) Installed() bool {
	return c != nil && c.installed
}

// Root returns the configured root, or "" for a nil context.
func (c *Context) Root() string {
	if c == nil {
		return ""
	}
	return c.anon.Root()
}

// Anonymizer returns the context's anonymizer; nil for a nil context, which
// makes every rewrite a pass-through.
func (c *Context) Anonymizer() *Anonymizer {
	if c == nil {
		return nil
	}
	return c.anon
}

// Stderr returns the writer in front of the original stream. Its captured
// text stays readable after Uninstall.
func (c *Context) Stderr() *Writer {
	if c == nil {
		return nil
	}
	return c.stderr
}

// Original returns the stream that was wrapped.
func (c *Context) Original() *os.File {
	if c == nil || c.redirect == nil {
		return nil
	}
	return c.redirect.Original()
}

// Debug anonymizes text with c, or returns it unchanged with a warning
// when c is nil.
func (c *Context) Debug(text string) string {
	if c == nil {
		logging.Get(logging.CategoryAnon).Warn("anonymizer not initialized, returning original text")
		return text
	}
	return c.anon.Rewrite(text)
}
