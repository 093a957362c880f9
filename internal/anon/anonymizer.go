// Package anon rewrites filesystem paths in text so output can be shared
// without exposing local directory layout.
//
// Paths under the configured root become "[ROOT]/<relative path>"; every other
// absolute path becomes "[EXTERNAL]/<basename>". Detection is heuristic: quoted
// literals and bare tokens starting with a separator are candidates, relative
// paths outside quotes are left alone.
//
// Usage:
//
//	a, err := anon.New("/home/me/project")
//	fmt.Println(a.Rewrite("open /home/me/project/cmd/main.go: no such file"))
//	// open [ROOT]/cmd/main.go: no such file
package anon

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"pathscrub/internal/logging"

	"go.uber.org/zap"
)

const (
	// RootToken marks a path inside the configured root.
	RootToken = "[ROOT]"
	// ExternalToken marks a path outside the root, reduced to its base name.
	ExternalToken = "[EXTERNAL]"
)

// placeholders are file names reported for code that has no file on disk.
var placeholders = []string{"<string>", "<autogenerated>"}

// candidatePattern matches a double-quoted literal (group 1), or a bare
// absolute path (group 3) together with the character bounding it on the
// left (group 2).
var candidatePattern = regexp.MustCompile(`"([^"]+)"|(^|['"\s:])(/[^\s'"]+)`)

// Anonymizer classifies paths against one root directory.
type Anonymizer struct {
	root string
	log  *zap.Logger
	abs  func(string) (string, error)
}

// Option configures an Anonymizer.
type Option func(*Anonymizer)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(a *Anonymizer) { a.log = l }
}

// New returns an Anonymizer for root, which is made absolute and cleaned.
func New(root string, opts ...Option) (*Anonymizer, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	a := &Anonymizer{root: filepath.Clean(abs), abs: filepath.Abs}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Root returns the normalized root directory.
func (a *Anonymizer) Root() string {
	if a == nil {
		return ""
	}
	return a.root
}

func (a *Anonymizer) logger() *zap.Logger {
	if a.log != nil {
		return a.log
	}
	return logging.Get(logging.CategoryAnon)
}

// Classify returns the token for a single path. Tagged input and
// unresolvable paths are returned unchanged.
func (a *Anonymizer) Classify(path string) (out string) {
	if a == nil || path == "" {
		return path
	}
	if strings.Contains(path, RootToken) || strings.Contains(path, ExternalToken) {
		return path
	}
	for _, p := range placeholders {
		if path == p {
			return ExternalToken + "/" + p
		}
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger().Warn("path classification panicked", zap.Any("panic", r))
			out = path
		}
	}()

	abs, err := a.abs(path)
	if err != nil {
		a.logger().Warn("path classification failed", zap.Error(err))
		return path
	}
	abs = filepath.Clean(abs)

	if rel, ok := a.relative(abs); ok {
		return RootToken + "/" + filepath.ToSlash(rel)
	}
	return ExternalToken + "/" + filepath.Base(abs)
}

// relative returns abs relative to the root when abs is the root or below it.
func (a *Anonymizer) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(a.root, abs)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// Rewrite replaces every candidate path in text with its token. It never
// fails: on an internal error the input is returned as is.
func (a *Anonymizer) Rewrite(text string) (out string) {
	if a == nil || text == "" {
		return text
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger().Warn("rewrite panicked, passing text through", zap.Any("panic", r))
			out = text
		}
	}()

	matches := candidatePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return tagPlaceholders(text)
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		if m[2] >= 0 {
			b.WriteByte('"')
			b.WriteString(a.Classify(text[m[2]:m[3]]))
			b.WriteByte('"')
		} else {
			b.WriteString(text[m[4]:m[5]])
			b.WriteString(a.Classify(text[m[6]:m[7]]))
		}
		last = m[1]
	}
	b.WriteString(text[last:])
	return tagPlaceholders(b.String())
}

// tagPlaceholders prefixes bare placeholders with the external token.
func tagPlaceholders(s string) string {
	tag := ExternalToken + "/"
	for _, p := range placeholders {
		if !strings.Contains(s, p) {
			continue
		}
		var b strings.Builder
		rest := s
		for {
			i := strings.Index(rest, p)
			if i < 0 {
				break
			}
			b.WriteString(rest[:i])
			if !strings.HasSuffix(rest[:i], tag) {
				b.WriteString(tag)
			}
			b.WriteString(p)
			rest = rest[i+len(p):]
		}
		b.WriteString(rest)
		s = b.String()
	}
	return s
}

// RewriteLines returns a rewritten copy of lines.
func (a *Anonymizer) RewriteLines(lines []string) []string {
	if a == nil || lines == nil {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = a.Rewrite(l)
	}
	return out
}
