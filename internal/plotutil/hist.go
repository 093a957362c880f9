package plotutil

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"pathscrub/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Style sets the canvas size of a rendered plot.
type Style struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
}

// DefaultStyle is a 9x3 inch strip at 300 DPI.
var DefaultStyle = Style{Width: 9 * vg.Inch, Height: 3 * vg.Inch, DPI: 300}

func (s Style) orDefault() Style {
	if s.Width <= 0 {
		s.Width = DefaultStyle.Width
	}
	if s.Height <= 0 {
		s.Height = DefaultStyle.Height
	}
	if s.DPI <= 0 {
		s.DPI = DefaultStyle.DPI
	}
	return s
}

// WeightedHist returns one unit-width bin per weight, starting at zero,
// filled with c and without outlines.
func WeightedHist(weights []float64, c color.Color) *plotter.Histogram {
	bins := make([]plotter.HistogramBin, len(weights))
	for i, w := range weights {
		bins[i] = plotter.HistogramBin{Min: float64(i), Max: float64(i + 1), Weight: w}
	}
	return &plotter.Histogram{Bins: bins, Width: 1, FillColor: c}
}

// barePlot returns a plot with no axes, title or padding.
func barePlot() *plot.Plot {
	p := plot.New()
	p.HideAxes()
	p.BackgroundColor = color.Transparent
	return p
}

func render(p *plot.Plot, s Style) image.Image {
	s = s.orDefault()
	c := vgimg.NewWith(vgimg.UseWH(s.Width, s.Height), vgimg.UseDPI(s.DPI))
	p.Draw(draw.New(c))
	return c.Image()
}

func savePNG(p *plot.Plot, s Style, out string) error {
	s = s.orDefault()
	c := vgimg.NewWith(vgimg.UseWH(s.Width, s.Height), vgimg.UseDPI(s.DPI))
	p.Draw(draw.New(c))

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return f.Close()
}

// TempFile returns a fresh path in the temp dir ending in ext.
func TempFile(prefix, ext string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext))
}

// SingleHist draws the weights a in blue with s in yellow on top, over bins
// 0..len(a), and writes a PNG to out. An empty out writes to a new temp file.
// It returns the written path.
func SingleHist(a, s []float64, out string, style Style) (string, error) {
	if len(a) == 0 {
		return "", errors.New("histogram needs at least one weight")
	}
	if len(s) != len(a) {
		return "", fmt.Errorf("weight lengths differ: %d and %d", len(a), len(s))
	}
	if out == "" {
		out = TempFile("singlehist", ".png")
	}

	p := barePlot()
	p.Add(WeightedHist(a, Blue), WeightedHist(s, Yellow))
	p.X.Min, p.X.Max = 0, float64(len(a))

	if err := savePNG(p, style, out); err != nil {
		return "", err
	}
	logging.Get(logging.CategoryPlot).Debug("histogram written", zap.Int("bins", len(a)))
	return out, nil
}
