package anon

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"go.uber.org/zap"
)

// PanicExitCode is the status the Go runtime uses for an unrecovered panic.
const PanicExitCode = 2

// FormatPanic renders v and stack the way the runtime prints a panic.
func FormatPanic(v any, stack []byte) string {
	return fmt.Sprintf("panic: %v\n\n%s", v, stack)
}

// HandlePanic reports a panic through the anonymized stream and exits.
// It must be deferred directly:
//
//	ctx, _ := anon.Install(anon.Options{})
//	defer ctx.HandlePanic()
//
// A nil context writes the report unchanged to os.Stderr.
func (c *Context) HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	c.ReportPanic(r, debug.Stack())
}

// ReportPanic writes an anonymized report of v and stack, then exits with
// PanicExitCode. Pending redirected output is flushed first so the report
// comes last.
func (c *Context) ReportPanic(v any, stack []byte) {
	exit := os.Exit
	if c != nil && c.exit != nil {
		exit = c.exit
	}
	defer exit(PanicExitCode)

	report := FormatPanic(v, stack)
	if c == nil || c.stderr == nil {
		_, _ = io.WriteString(os.Stderr, report)
		return
	}

	if err := c.Uninstall(); err != nil {
		c.log.Warn("failed to flush stream before panic report", zap.Error(err))
	}
	if _, err := io.WriteString(c.stderr, report); err != nil {
		_, _ = io.WriteString(c.Original(), c.anon.Rewrite(report))
	}
	_ = c.stderr.Flush()
}

// Stack returns the calling goroutine's stack trace, anonymized.
func (c *Context) Stack() []byte {
	return []byte(c.Anonymizer().Rewrite(string(debug.Stack())))
}

// AllStacks returns the stack traces of all goroutines, anonymized.
func (c *Context) AllStacks() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, 2*len(buf))
	}
	return []byte(c.Anonymizer().Rewrite(string(buf)))
}

// DecorateString wraps a formatter so its result is anonymized.
func DecorateString[T any](a *Anonymizer, fn func(T) string) func(T) string {
	return func(v T) string {
		return a.Rewrite(fn(v))
	}
}

// DecorateLines wraps a formatter returning lines so each line is
// anonymized.
func DecorateLines[T any](a *Anonymizer, fn func(T) []string) func(T) []string {
	return func(v T) []string {
		return a.RewriteLines(fn(v))
	}
}
