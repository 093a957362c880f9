package main

import (
	"fmt"
	"io"
	"os"

	"pathscrub/internal/redirect"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rewriteMode string

// rewriteCmd anonymizes files or stdin
var rewriteCmd = &cobra.Command{
	Use:   "rewrite [file...]",
	Short: "Anonymize files (or stdin) to stdout",
	Long: `Reads each file in turn, or stdin when no file is given, and writes it
to stdout with paths rewritten.

Example:
  pathscrub rewrite crash.log > crash.shareable.log
  go test ./... 2>&1 | pathscrub rewrite`,
	RunE: rewriteFiles,
}

func init() {
	rewriteCmd.Flags().StringVarP(&rewriteMode, "mode", "m", "classify", "classify or substitute")
}

func rewriteFiles(cmd *cobra.Command, args []string) error {
	w, err := outputWriter(rewriteMode, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return redirect.Pump(cmd.InOrStdin(), w)
	}
	for _, name := range args {
		if err := rewriteFile(name, w); err != nil {
			return err
		}
	}
	return nil
}

func rewriteFile(name string, w io.Writer) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	logger.Debug("rewriting file", zap.String("file", anonymizer.Classify(name)))
	if err := redirect.Pump(f, w); err != nil {
		return fmt.Errorf("failed to rewrite %s: %w", name, err)
	}
	return nil
}
