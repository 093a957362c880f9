package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"pathscrub/internal/anon"
	"pathscrub/internal/config"
	"pathscrub/internal/loganon"
	"pathscrub/internal/redirect"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runMode string

// runCmd runs a child process with its output anonymized
var runCmd = &cobra.Command{
	Use:   "run [--mode classify|substitute] -- command [args...]",
	Short: "Run a command with its stdout and stderr anonymized",
	Long: `Runs a command and rewrites both of its output streams line by line.

Modes:
  classify    every absolute path becomes [ROOT]/<relative> or [EXTERNAL]/<name>
  substitute  the root and GOROOT are replaced with [ANONYMIZED]

The child sees ANONYMIZATION_ROOT_DIR and PATHSCRUB_MODE=off, so a program
importing pathscrub/auto is not rewritten twice. pathscrub exits with the
child's exit status.

Example:
  pathscrub run -- go test ./...
  pathscrub run --mode substitute -- ./server`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChildCmd,
}

func init() {
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "", "classify or substitute (default: anonymizer.mode from config)")
}

func runChildCmd(cmd *cobra.Command, args []string) error {
	mode := runMode
	if mode == "" {
		mode = cfg.Anonymizer.Mode
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := runChild(ctx, mode, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if code != 0 {
		return &exitCodeError{code: code}
	}
	return nil
}

// outputWriter wraps dst for mode.
func outputWriter(mode string, dst io.Writer) (io.Writer, error) {
	switch mode {
	case config.ModeClassify:
		return anon.NewWriter(dst, anonymizer, anon.DiscardCapture()), nil
	case config.ModeSubstitute:
		return loganon.NewInterceptor(dst, anonymizer.Root()), nil
	case config.ModeOff:
		return dst, nil
	default:
		return nil, fmt.Errorf("unknown mode %q (valid: %v)", mode, config.ValidModes)
	}
}

// runChild runs args[0] with both output streams rewritten for mode and
// returns its exit status.
func runChild(ctx context.Context, mode string, args []string, stdout, stderr io.Writer) (int, error) {
	outW, err := outputWriter(mode, stdout)
	if err != nil {
		return 0, err
	}
	errW, err := outputWriter(mode, stderr)
	if err != nil {
		return 0, err
	}

	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Env = append(os.Environ(),
		anon.EnvRoot+"="+anonymizer.Root(),
		config.EnvMode+"="+config.ModeOff,
	)
	outPipe, err := child.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to attach stdout: %w", err)
	}
	errPipe, err := child.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to attach stderr: %w", err)
	}

	if err := child.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", args[0], err)
	}
	logger.Debug("child started", zap.String("command", args[0]), zap.String("mode", mode), zap.Int("pid", child.Process.Pid))

	var g errgroup.Group
	g.Go(func() error { return redirect.Pump(outPipe, outW) })
	g.Go(func() error { return redirect.Pump(errPipe, errW) })
	pumpErr := g.Wait()

	waitErr := child.Wait()
	if pumpErr != nil {
		logger.Warn("output forwarding failed", zap.Error(pumpErr))
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		return 0, nil
	case errors.As(waitErr, &exitErr):
		code := exitErr.ExitCode()
		if code < 0 {
			// killed by a signal
			code = 1
		}
		logger.Debug("child exited", zap.Int("code", code))
		return code, nil
	default:
		return 0, fmt.Errorf("failed to wait for %s: %w", args[0], waitErr)
	}
}
