package plotutil

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	stdpalette "image/color/palette"
	"image/draw"
	"image/gif"
	"os"
	"time"

	"pathscrub/internal/logging"

	"go.uber.org/zap"
	"gonum.org/v1/plot/palette"
)

// Frame is one animation step: each row of A is drawn as a weighted
// histogram over the same bins.
type Frame struct {
	A [][]float64 `yaml:"A" json:"A"`
}

// GifOptions tunes UnivariateGiffer.
type GifOptions struct {
	// PLim fixes the y axis to [0, PLim] when positive.
	PLim float64
	// Alpha fades later rows: row i of n gets 0.5 + 0.5*(n-i)/n.
	Alpha bool
	// TotalTime is split evenly across frames. Defaults to 5s.
	TotalTime time.Duration
	// Palette colors the rows. Defaults to RMPY.
	Palette palette.Palette
	Style   Style
}

// DefaultGifDuration is the animation length when none is given.
const DefaultGifDuration = 5 * time.Second

// RowAlpha returns the fade applied to row i of n.
func RowAlpha(i, n int, fade bool) float64 {
	if !fade || n <= 0 {
		return 1
	}
	return 0.5 + 0.5*float64(n-i)/float64(n)
}

// FrameDelay returns the per-frame delay in hundredths of a second.
func FrameDelay(total time.Duration, frames int) int {
	if frames <= 0 {
		return 0
	}
	if total <= 0 {
		total = DefaultGifDuration
	}
	d := int(total / time.Duration(frames) / (10 * time.Millisecond))
	if d < 1 {
		d = 1
	}
	return d
}

// RenderFrame draws a single frame.
func RenderFrame(f Frame, opts GifOptions) (image.Image, error) {
	if len(f.A) == 0 {
		return nil, errors.New("frame has no rows")
	}
	d := len(f.A[0])
	for i, row := range f.A {
		if len(row) != d {
			return nil, fmt.Errorf("row %d has %d bins, want %d", i, len(row), d)
		}
	}
	pal := opts.Palette
	if pal == nil {
		pal = RMPY()
	}
	colors := Colors(pal.Colors())

	p := barePlot()
	n := len(f.A)
	for i, row := range f.A {
		p.Add(WeightedHist(row, WithAlpha(colors.At(i), RowAlpha(i, n, opts.Alpha))))
	}
	p.X.Min, p.X.Max = 0, float64(d)
	if opts.PLim > 0 {
		p.Y.Min, p.Y.Max = 0, opts.PLim
	}
	return render(p, opts.Style), nil
}

// UnivariateGiffer renders frames into an animated GIF at out.
func UnivariateGiffer(frames []Frame, out string, opts GifOptions) error {
	if len(frames) == 0 {
		return errors.New("no frames to animate")
	}
	if out == "" {
		return errors.New("output path is required")
	}

	anim := &gif.GIF{LoopCount: -1}
	delay := FrameDelay(opts.TotalTime, len(frames))
	for i, f := range frames {
		img, err := RenderFrame(f, opts)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		anim.Image = append(anim.Image, quantize(img))
		anim.Delay = append(anim.Delay, delay)
	}

	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := gif.EncodeAll(file, anim); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", out, err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	logging.Get(logging.CategoryPlot).Debug("animation written",
		zap.Int("frames", len(frames)), zap.Int("delay_cs", delay))
	return nil
}

func quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	pal := make(color.Palette, len(stdpalette.Plan9))
	copy(pal, stdpalette.Plan9)
	dst := image.NewPaletted(b, pal)
	draw.FloydSteinberg.Draw(dst, b, img, b.Min)
	return dst
}
