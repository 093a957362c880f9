package main

import (
	"errors"
	"fmt"
	"os"

	"pathscrub/internal/anon"
	"pathscrub/internal/config"
	"pathscrub/internal/loganon"
	"pathscrub/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	rootDir    string

	cfg        *config.Config
	anonymizer *anon.Anonymizer

	// Logger
	logger *zap.Logger
)

// exitCodeError carries a child's exit status out of a command without
// printing anything.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pathscrub",
	Short: "Strip local filesystem paths from program output",
	Long: `pathscrub rewrites absolute paths in program output so logs and crash
reports can be shared without revealing the local directory layout.

Paths under the project root become [ROOT]/<relative path>; any other
absolute path becomes [EXTERNAL]/<file name>. The root is the working
directory unless --root or ANONYMIZATION_ROOT_DIR says otherwise.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

// loadRuntime loads the config, builds the anonymizer and initializes
// logging with caller paths anonymized.
func loadRuntime(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if rootDir != "" {
		c.Anonymizer.Root = rootDir
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	root, err := c.ResolveRoot()
	if err != nil {
		return err
	}
	a, err := anon.New(root)
	if err != nil {
		return err
	}

	opts := logging.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Classifier: a,
	}
	if c.Logging.File != "" {
		opts.OutputPaths = []string{c.Logging.File}
	}
	if _, err := logging.Initialize(opts); err != nil {
		return err
	}

	cfg, anonymizer = c, a
	logger = logging.Get(logging.CategoryCLI)
	logging.Get(logging.CategoryBoot).Debug("configuration loaded",
		zap.String("config", a.Classify(path)),
		zap.String("mode", c.Anonymizer.Mode))
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $PATHSCRUB_CONFIG or nearest .pathscrub.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Project root (default: $ANONYMIZATION_ROOT_DIR or current directory)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(whichCmd)
	rootCmd.AddCommand(shimCmd)
	rootCmd.AddCommand(plotCmd)
}

func main() {
	os.Exit(execute())
}

func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	printError(os.Stderr, "%s", loganon.AnonymizePaths(err.Error(), anonymizer.Root()))
	return 1
}
