package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var classifyShowInput bool

// classifyCmd prints the classification of each path
var classifyCmd = &cobra.Command{
	Use:   "classify path...",
	Short: "Print the anonymized form of each path",
	Long: `Prints one line per argument: [ROOT]/<relative> for paths under the root,
[EXTERNAL]/<name> for everything else.

Example:
  pathscrub classify ./internal/anon/anonymizer.go /usr/lib/libc.so.6`,
	Args: cobra.MinimumNArgs(1),
	RunE: classifyPaths,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyShowInput, "show-input", false, "Print each input next to its classification")
}

func classifyPaths(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, p := range args {
		c := anonymizer.Classify(p)
		if classifyShowInput {
			fmt.Fprintf(out, "%s\t%s\n", styles.Muted.Render(p), c)
			continue
		}
		fmt.Fprintln(out, c)
	}
	return nil
}
