package main

import (
	"fmt"
	"os"
	"time"

	"pathscrub/internal/plotutil"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"
)

var (
	plotOut      string
	plotA        string
	plotS        string
	plotFrames   string
	plotPLim     float64
	plotAlpha    bool
	plotDuration time.Duration
	plotPalette  string
	plotInput    string
)

// plotCmd groups the canned plots
var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render the house histogram, animation and heatmap plots",
	Long: `Numeric inputs are YAML or JSON files. Vectors are plain arrays, frames
are a list of {A: [[...], ...]} matrices, and heatmap input is a matrix.`,
}

var plotHistCmd = &cobra.Command{
	Use:   "hist",
	Short: "Draw weights A (blue) with S (yellow) on top",
	Args:  cobra.NoArgs,
	RunE:  plotHist,
}

var plotGifCmd = &cobra.Command{
	Use:   "gif",
	Short: "Animate a sequence of weight matrices as a GIF",
	Args:  cobra.NoArgs,
	RunE:  plotGif,
}

var plotHeatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Render a matrix through a registered palette",
	Args:  cobra.NoArgs,
	RunE:  plotHeatmap,
}

func init() {
	plotCmd.PersistentFlags().StringVarP(&plotOut, "out", "o", "", "Output file (default: a new file in the temp dir)")

	plotHistCmd.Flags().StringVar(&plotA, "a", "", "File with the A weights (required)")
	plotHistCmd.Flags().StringVar(&plotS, "s", "", "File with the S weights (required)")
	plotHistCmd.MarkFlagRequired("a")
	plotHistCmd.MarkFlagRequired("s")

	plotGifCmd.Flags().StringVar(&plotFrames, "frames", "", "File with the frames (required)")
	plotGifCmd.Flags().Float64Var(&plotPLim, "plim", 0, "Fix the y axis to [0, plim]")
	plotGifCmd.Flags().BoolVar(&plotAlpha, "alpha", false, "Fade later rows")
	plotGifCmd.Flags().DurationVar(&plotDuration, "duration", 0, "Total animation time (default: plot.gif_duration from config)")
	plotGifCmd.MarkFlagRequired("frames")

	plotHeatmapCmd.Flags().StringVar(&plotPalette, "palette", "", "Palette name (default: plot.palette from config)")
	plotHeatmapCmd.Flags().StringVar(&plotInput, "input", "", "File with the matrix (default: a cos/sin demo grid)")

	plotCmd.AddCommand(plotHistCmd)
	plotCmd.AddCommand(plotGifCmd)
	plotCmd.AddCommand(plotHeatmapCmd)
}

func plotStyle() plotutil.Style {
	return plotutil.Style{
		Width:  vg.Length(cfg.Plot.Width) * vg.Inch,
		Height: vg.Length(cfg.Plot.Height) * vg.Inch,
		DPI:    cfg.Plot.DPI,
	}
}

// readNumeric decodes a YAML or JSON file into v.
func readNumeric(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func plotHist(cmd *cobra.Command, args []string) error {
	var a, s []float64
	if err := readNumeric(plotA, &a); err != nil {
		return err
	}
	if err := readNumeric(plotS, &s); err != nil {
		return err
	}
	path, err := plotutil.SingleHist(a, s, plotOut, plotStyle())
	if err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Histogram written to %s", anonymizer.Classify(path))
	return nil
}

func plotGif(cmd *cobra.Command, args []string) error {
	var frames []plotutil.Frame
	if err := readNumeric(plotFrames, &frames); err != nil {
		return err
	}
	out := plotOut
	if out == "" {
		out = plotutil.TempFile("giffer", ".gif")
	}
	duration := plotDuration
	if duration <= 0 {
		duration = cfg.GetGIFDuration()
	}

	err := plotutil.UnivariateGiffer(frames, out, plotutil.GifOptions{
		PLim:      plotPLim,
		Alpha:     plotAlpha,
		TotalTime: duration,
		Style:     plotStyle(),
	})
	if err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Animation with %d frames written to %s", len(frames), anonymizer.Classify(out))
	return nil
}

func plotHeatmap(cmd *cobra.Command, args []string) error {
	grid := plotutil.DemoGrid()
	if plotInput != "" {
		var z [][]float64
		if err := readNumeric(plotInput, &z); err != nil {
			return err
		}
		grid = z
	}
	name := plotPalette
	if name == "" {
		name = cfg.Plot.Palette
	}
	path, err := plotutil.Heatmap(grid, name, plotOut, plotStyle())
	if err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Heatmap written to %s", anonymizer.Classify(path))
	return nil
}
