// Package loganon replaces the working directory and the Go toolchain
// prefix with a fixed token on stdout and stderr. It does no path
// classification; every occurrence of either string is substituted.
package loganon

import (
	"fmt"
	"go/build"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pathscrub/internal/logging"
	"pathscrub/internal/redirect"

	"go.uber.org/zap"
)

// Token replaces every occurrence of the root or the toolchain prefix.
const Token = "[ANONYMIZED]"

// ToolchainPrefix returns the Go installation root.
func ToolchainPrefix() string {
	return build.Default.GOROOT
}

// AnonymizePaths replaces root in s. An empty root means the working
// directory.
func AnonymizePaths(s, root string) string {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return s
		}
		root = wd
	}
	return strings.ReplaceAll(s, root, Token)
}

// Interceptor substitutes the root and then the toolchain prefix on every
// write before forwarding to the wrapped stream.
type Interceptor struct {
	dst    io.Writer
	root   string
	prefix string
}

// NewInterceptor wraps dst for root, which is cleaned but not made
// absolute: it is matched as a plain substring.
func NewInterceptor(dst io.Writer, root string) *Interceptor {
	return NewInterceptorWithPrefix(dst, root, ToolchainPrefix())
}

// NewInterceptorWithPrefix is NewInterceptor with an explicit prefix.
func NewInterceptorWithPrefix(dst io.Writer, root, prefix string) *Interceptor {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Interceptor{dst: dst, root: root, prefix: prefix}
}

// Anonymize applies both substitutions. Empty needles are skipped.
func (i *Interceptor) Anonymize(s string) string {
	if i.root != "" {
		s = strings.ReplaceAll(s, i.root, Token)
	}
	if i.prefix != "" {
		s = strings.ReplaceAll(s, i.prefix, Token)
	}
	return s
}

// Write implements io.Writer.
func (i *Interceptor) Write(p []byte) (int, error) {
	if _, err := io.WriteString(i.dst, i.Anonymize(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Options configures a Logger.
type Options struct {
	Root   string    // defaults to the working directory
	Prefix string    // defaults to ToolchainPrefix
	Stdout **os.File // defaults to &os.Stdout
	Stderr **os.File // defaults to &os.Stderr
}

// Logger intercepts stdout and stderr.
type Logger struct {
	opts    Options
	stdout  *redirect.Redirect
	stderr  *redirect.Redirect
	running bool
	log     *zap.Logger
}

// New returns a stopped Logger.
func New(opts Options) (*Logger, error) {
	if opts.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.Root = wd
	}
	if opts.Prefix == "" {
		opts.Prefix = ToolchainPrefix()
	}
	if opts.Stdout == nil {
		opts.Stdout = &os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = &os.Stderr
	}
	return &Logger{opts: opts, log: logging.Get(logging.CategorySubstitute)}, nil
}

// Start wraps both streams. Starting a running Logger does nothing.
func (l *Logger) Start() error {
	if l.running {
		return nil
	}
	wrap := func(orig *os.File) io.Writer {
		return NewInterceptorWithPrefix(orig, l.opts.Root, l.opts.Prefix)
	}

	out, err := redirect.Start(l.opts.Stdout, wrap)
	if err != nil {
		return fmt.Errorf("failed to intercept stdout: %w", err)
	}
	errs, err := redirect.Start(l.opts.Stderr, wrap)
	if err != nil {
		_ = out.Stop()
		return fmt.Errorf("failed to intercept stderr: %w", err)
	}

	l.stdout, l.stderr = out, errs
	l.running = true
	l.log.Debug("substitution interceptor started")
	return nil
}

// Stop restores the original streams. Stopping a stopped Logger does
// nothing.
func (l *Logger) Stop() error {
	if l == nil || !l.running {
		return nil
	}
	l.running = false
	errOut := l.stdout.Stop()
	errErr := l.stderr.Stop()
	if errOut != nil {
		return errOut
	}
	if errErr != nil {
		return errErr
	}
	l.log.Debug("substitution interceptor stopped")
	return nil
}

// Running reports whether the streams are wrapped.
func (l *Logger) Running() bool {
	return l != nil && l.running
}

// Root returns the substituted root.
func (l *Logger) Root() string {
	return l.opts.Root
}

// Anonymize applies the Logger's substitutions to s.
func (l *Logger) Anonymize(s string) string {
	return NewInterceptorWithPrefix(nil, l.opts.Root, l.opts.Prefix).Anonymize(s)
}
