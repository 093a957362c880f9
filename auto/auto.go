// Package auto anonymizes the process output as soon as it is imported:
//
//	import _ "pathscrub/auto"
//
// $PATHSCRUB_MODE selects what is installed: "substitute" (default) replaces
// the working directory and GOROOT on stdout and stderr, "classify" rewrites
// every path on stderr as [ROOT]/... or [EXTERNAL]/..., and "off" installs
// nothing. The root comes from $ANONYMIZATION_ROOT_DIR or the working
// directory.
//
// Wrapped streams are forwarded by a goroutine, so main must drain them
// before the process exits. Defer HandlePanic first thing in main:
//
//	func main() {
//		defer auto.HandlePanic()
//		...
//	}
//
// Output still in the pipe when main returns without it is lost. Calls to
// os.Exit skip deferred functions; call Stop before them.
package auto

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"pathscrub/internal/anon"
	"pathscrub/internal/config"
	"pathscrub/internal/loganon"
)

var (
	mu     sync.Mutex
	mode   string
	ctx    *anon.Context
	subst  *loganon.Logger
	exitFn = os.Exit
)

func init() {
	if err := Start(os.Getenv(config.EnvMode)); err != nil {
		fmt.Fprintf(os.Stderr, "pathscrub/auto: %v\n", err)
	}
}

// Start replaces whatever is installed with mode. An empty mode means
// substitute.
func Start(m string) error {
	m = strings.ToLower(strings.TrimSpace(m))
	if m == "" {
		m = config.ModeSubstitute
	}

	mu.Lock()
	defer mu.Unlock()

	if err := stopLocked(); err != nil {
		return err
	}

	switch m {
	case config.ModeOff:
	case config.ModeSubstitute:
		root, err := anon.RootFromEnv()
		if err != nil {
			return err
		}
		l, err := loganon.New(loganon.Options{Root: root})
		if err != nil {
			return err
		}
		if err := l.Start(); err != nil {
			return err
		}
		subst = l
	case config.ModeClassify:
		c, err := anon.Install(anon.Options{
			Exit:           func(code int) { exitFn(code) },
			DiscardCapture: true,
		})
		if err != nil {
			return err
		}
		ctx = c
	default:
		return fmt.Errorf("unknown mode %q (valid: %v)", m, config.ValidModes)
	}
	mode = m
	return nil
}

// Stop uninstalls whatever Start installed.
func Stop() error {
	mu.Lock()
	defer mu.Unlock()
	return stopLocked()
}

func stopLocked() error {
	var err error
	if ctx != nil {
		err = ctx.Uninstall()
		ctx = nil
	}
	if subst != nil {
		if e := subst.Stop(); e != nil && err == nil {
			err = e
		}
		subst = nil
	}
	mode = config.ModeOff
	return err
}

// Mode returns the active mode.
func Mode() string {
	mu.Lock()
	defer mu.Unlock()
	return mode
}

// Context returns the classify-mode context, or nil.
func Context() *anon.Context {
	mu.Lock()
	defer mu.Unlock()
	return ctx
}

// Logger returns the substitute-mode interceptor, or nil.
func Logger() *loganon.Logger {
	mu.Lock()
	defer mu.Unlock()
	return subst
}

// HandlePanic drains and restores the wrapped streams when main returns.
// On a panic it reports it with anonymized paths and exits with status 2.
// It must be deferred directly:
//
//	defer auto.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		if err := Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "pathscrub/auto: %v\n", err)
		}
		return
	}
	stack := debug.Stack()

	mu.Lock()
	c, l := ctx, subst
	mu.Unlock()

	switch {
	case c != nil:
		c.ReportPanic(r, stack)
	case l != nil:
		_ = Stop()
		fmt.Fprint(os.Stderr, l.Anonymize(anon.FormatPanic(r, stack)))
		exitFn(anon.PanicExitCode)
	default:
		fmt.Fprint(os.Stderr, anon.FormatPanic(r, stack))
		exitFn(anon.PanicExitCode)
	}
}
