package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pathscrub/internal/shim"

	"github.com/spf13/cobra"
)

var (
	shimDir     string
	shimForce   bool
	shimPackage string
	shimWatch   bool
)

// shimCmd manages the auto-import shim
var shimCmd = &cobra.Command{
	Use:   "shim",
	Short: "Install or remove the pathscrub/auto import shim",
	Long: `The shim is a generated Go file that blank-imports pathscrub/auto, so a
program anonymizes its own output from startup. A checksum file written next
to it lets uninstall refuse to delete a shim that was edited by hand.`,
}

var shimInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Write the shim into a package directory",
	Args:  cobra.NoArgs,
	RunE:  shimInstall,
}

var shimUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the shim after verifying its checksum",
	Args:  cobra.NoArgs,
	RunE:  shimUninstall,
}

var shimVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the shim against its checksum",
	Args:  cobra.NoArgs,
	RunE:  shimVerify,
}

func init() {
	shimCmd.PersistentFlags().StringVarP(&shimDir, "dir", "d", "", "Package directory (default: shim.dir from config)")
	shimInstallCmd.Flags().BoolVarP(&shimForce, "force", "f", false, "Overwrite an existing shim (use with caution)")
	shimInstallCmd.Flags().StringVar(&shimPackage, "package", "", "Package clause (default: detected from the directory)")
	shimVerifyCmd.Flags().BoolVarP(&shimWatch, "watch", "w", false, "Keep verifying whenever the shim changes")

	shimCmd.AddCommand(shimInstallCmd)
	shimCmd.AddCommand(shimUninstallCmd)
	shimCmd.AddCommand(shimVerifyCmd)
}

func shimOptions() shim.Options {
	dir := shimDir
	if dir == "" {
		dir = cfg.Shim.Dir
	}
	return shim.Options{
		Dir:        dir,
		FileName:   cfg.Shim.FileName,
		SumName:    cfg.Shim.ChecksumFile,
		ImportPath: cfg.Shim.ImportPath,
		Package:    shimPackage,
		Force:      shimForce,
	}
}

func shimInstall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	opts := shimOptions()
	res, err := shim.Install(opts)
	if err != nil {
		return err
	}
	if res.Overwrote {
		printWarning(out, "Replaced the existing shim")
	}
	printSuccess(out, "Shim installed at %s (package %s)", anonymizer.Classify(res.Path), res.Package)
	printSuccess(out, "Checksum saved to %s", anonymizer.Classify(res.SumPath))
	printInfo(out, "Start main with \"defer auto.HandlePanic()\" (import %q) so output is flushed before exit", opts.ImportPath)
	return nil
}

func shimUninstall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	opts := shimOptions()
	err := shim.Uninstall(opts)
	switch {
	case err == nil:
		printSuccess(out, "Shim removed from %s", anonymizer.Classify(opts.ShimPath()))
		return nil
	case errors.Is(err, shim.ErrNotInstalled):
		printWarning(out, "No shim at %s", anonymizer.Classify(opts.ShimPath()))
		return err
	case errors.Is(err, shim.ErrChecksumMismatch):
		printError(out, "The shim was modified after installation; remove %s by hand if that is intended", anonymizer.Classify(opts.ShimPath()))
		return err
	default:
		return err
	}
}

func shimVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	opts := shimOptions()

	if err := shim.Verify(opts); err != nil {
		printError(out, "%s: %v", anonymizer.Classify(opts.ShimPath()), err)
		if !shimWatch {
			return err
		}
	} else {
		printSuccess(out, "%s matches its checksum", anonymizer.Classify(opts.ShimPath()))
	}
	if !shimWatch {
		return nil
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, styles.Title.Render("Watching "+anonymizer.Classify(opts.Dir)+" (Ctrl+C to stop)"))

	printStatus := func(s shim.Status) {
		if s.OK() {
			printSuccess(out, "%s %s: verified", s.Time.Format("15:04:05"), s.Event)
			return
		}
		printError(out, "%s %s: %v", s.Time.Format("15:04:05"), s.Event, s.Err)
	}
	return shim.Watch(ctx, opts, printStatus)
}
