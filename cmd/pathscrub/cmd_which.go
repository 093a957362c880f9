package main

import (
	"errors"
	"fmt"

	"pathscrub/internal/origin"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var whichFiles bool

// whichCmd resolves import paths to anonymized source locations
var whichCmd = &cobra.Command{
	Use:   "which importpath...",
	Short: "Show where an import path would be loaded from",
	Long: `Resolves each import path through the main module, GOROOT and the module
cache, in that order, and prints the anonymized directory it was found in.

Example:
  pathscrub which strings pathscrub/internal/anon github.com/spf13/cobra`,
	Args: cobra.MinimumNArgs(1),
	RunE: whichImports,
}

func init() {
	whichCmd.Flags().BoolVar(&whichFiles, "files", false, "List the package's Go files")
}

func whichImports(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	chain := anonymizer.WrapChain(origin.DefaultChain(anonymizer.Root()))

	missing := 0
	for _, path := range args {
		o, err := chain.Resolve(path)
		if err != nil {
			missing++
			if errors.Is(err, origin.ErrNotFound) {
				printWarning(out, "%s: not found", path)
			} else {
				printError(out, "%s: %v", path, err)
			}
			logger.Debug("import path not resolved", zap.String("path", path), zap.Error(err))
			continue
		}
		fmt.Fprintf(out, "%s %s %s\n", styles.Bold.Render(o.ImportPath), styles.Badge.Render(o.Resolver), o.Dir)
		if whichFiles {
			for _, f := range o.Files {
				fmt.Fprintf(out, "  %s\n", styles.Muted.Render(f))
			}
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d import paths not resolved", missing, len(args))
	}
	return nil
}
