// Package logging provides categorized zap loggers for pathscrub.
// Loggers are no-ops until Initialize is called, so library packages can
// log diagnostics unconditionally without forcing output on their callers.
package logging

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup and config loading
	CategoryAnon       Category = "anon"       // Path classification and rewriting
	CategoryRedirect   Category = "redirect"   // Stream swapping and line pumps
	CategorySubstitute Category = "substitute" // Working-directory substitution interceptor
	CategoryOrigin     Category = "origin"     // Source origin resolution
	CategoryShim       Category = "shim"       // Auto-import shim install/verify
	CategoryPlot       Category = "plot"       // Plot rendering
	CategoryCLI        Category = "cli"        // Command handlers
)

// Classifier rewrites a source file path before it is written to a log line.
type Classifier interface {
	Classify(path string) string
}

// Options configures Initialize.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console

	// Classifier, when set, rewrites caller file paths so log lines
	// do not carry local directory layout.
	Classifier Classifier

	// OutputPaths defaults to stderr.
	OutputPaths []string
}

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Initialize builds the process logger. It can be called again to
// reconfigure; loggers returned by Get before that keep the old core.
func Initialize(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch opts.Format {
	case "", "json":
	case "console", "text":
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	if len(opts.OutputPaths) > 0 {
		config.OutputPaths = opts.OutputPaths
	}
	if opts.Classifier != nil {
		config.EncoderConfig.EncodeCaller = AnonymizingCaller(opts.Classifier)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	Set(logger)
	return logger, nil
}

// Set replaces the process logger. Tests use it with zap.NewNop or an
// observer core.
func Set(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	base = logger
	mu.Unlock()
}

// Get returns a logger named after the category.
func Get(category Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(string(category))
}

// Sync flushes the process logger.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}

// ParseLevel accepts the usual level names plus "warning".
func ParseLevel(s string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// AnonymizingCaller encodes the caller as classified-path:line.
func AnonymizingCaller(c Classifier) zapcore.CallerEncoder {
	return func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		if !caller.Defined {
			enc.AppendString("undefined")
			return
		}
		enc.AppendString(c.Classify(caller.File) + ":" + strconv.Itoa(caller.Line))
	}
}
