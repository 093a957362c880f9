package plotutil

import (
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

var tiny = Style{Width: 2 * vg.Inch, Height: 1 * vg.Inch, DPI: 20}

func TestRMPYPalette(t *testing.T) {
	p, err := Lookup(RMPYName)
	require.NoError(t, err)
	colors := p.Colors()
	require.Len(t, colors, 5)
	assert.Equal(t, color.NRGBA{R: 0x00, G: 0x5b, B: 0xaa, A: 0xff}, colors[0])
	assert.Equal(t, color.NRGBA{R: 0xf0, G: 0xe4, B: 0x42, A: 0xff}, colors[4])
	assert.Contains(t, Names(), RMPYName)
}

func TestRegisterAndLookup(t *testing.T) {
	_, err := Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownPalette)

	require.NoError(t, Register("mono", Colors{color.Black}))
	p, err := Lookup("mono")
	require.NoError(t, err)
	assert.Len(t, p.Colors(), 1)

	assert.Error(t, Register("", Colors{color.Black}))
	assert.Error(t, Register("empty", Colors{}))
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#ff2a2a")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0x2a, B: 0x2a, A: 0xff}, c)

	for _, bad := range []string{"", "ff2a2a", "#ff2a2", "#zzzzzz"} {
		_, err := ParseHex(bad)
		assert.Error(t, err, bad)
	}
}

func TestColorsAtCycles(t *testing.T) {
	c := RMPY()
	assert.Equal(t, c[0], c.At(5))
	assert.Equal(t, color.Black, Colors{}.At(3))
}

func TestWithAlpha(t *testing.T) {
	assert.Equal(t, uint8(0x80), WithAlpha(Blue, 0.5).A)
	assert.Equal(t, uint8(0xff), WithAlpha(Blue, 2).A)
	assert.Equal(t, uint8(0), WithAlpha(Blue, -1).A)
}

func TestRowAlpha(t *testing.T) {
	assert.Equal(t, 1.0, RowAlpha(0, 4, false))
	assert.Equal(t, 1.0, RowAlpha(0, 4, true))
	assert.Equal(t, 0.875, RowAlpha(1, 4, true))
	assert.Equal(t, 0.625, RowAlpha(3, 4, true))
}

func TestFrameDelay(t *testing.T) {
	assert.Equal(t, 100, FrameDelay(0, 5))
	assert.Equal(t, 50, FrameDelay(2*time.Second, 4))
	assert.Equal(t, 1, FrameDelay(time.Millisecond, 10))
	assert.Equal(t, 0, FrameDelay(time.Second, 0))
}

func TestWeightedHistBins(t *testing.T) {
	h := WeightedHist([]float64{0.1, 0.4, 0.5}, Blue)
	require.Len(t, h.Bins, 3)
	assert.Equal(t, 2.0, h.Bins[2].Min)
	assert.Equal(t, 3.0, h.Bins[2].Max)
	assert.Equal(t, 0.4, h.Bins[1].Weight)

	xmin, xmax, ymin, ymax := h.DataRange()
	assert.Equal(t, []float64{0, 3, 0, 0.5}, []float64{xmin, xmax, ymin, ymax})
}

func TestSingleHistWritesPNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "hist.png")
	a := []float64{0.1, 0.2, 0.4, 0.2, 0.1}
	s := []float64{0, 0, 0, 0.4, 0}

	path, err := SingleHist(a, s, out, tiny)
	require.NoError(t, err)
	assert.Equal(t, out, path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
}

func TestSingleHistTempFile(t *testing.T) {
	path, err := SingleHist([]float64{1}, []float64{0}, "", tiny)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })
	assert.True(t, strings.HasPrefix(filepath.Base(path), "singlehist-"))
	assert.FileExists(t, path)
}

func TestSingleHistRejectsBadInput(t *testing.T) {
	_, err := SingleHist(nil, nil, "", tiny)
	assert.Error(t, err)
	_, err = SingleHist([]float64{1, 2}, []float64{1}, "", tiny)
	assert.Error(t, err)
}

func TestUnivariateGiffer(t *testing.T) {
	out := filepath.Join(t.TempDir(), "anim.gif")
	frames := []Frame{
		{A: [][]float64{{1, 2, 3}, {3, 2, 1}}},
		{A: [][]float64{{2, 2, 2}, {1, 3, 1}}},
		{A: [][]float64{{3, 2, 1}, {1, 2, 3}}},
	}
	require.NoError(t, UnivariateGiffer(frames, out, GifOptions{
		PLim:      4,
		Alpha:     true,
		TotalTime: 3 * time.Second,
		Style:     tiny,
	}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, anim.Image, 3)
	assert.Equal(t, []int{100, 100, 100}, anim.Delay)
}

func TestUnivariateGifferErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, UnivariateGiffer(nil, filepath.Join(dir, "a.gif"), GifOptions{}))
	assert.Error(t, UnivariateGiffer([]Frame{{A: [][]float64{{1}}}}, "", GifOptions{}))

	err := UnivariateGiffer([]Frame{{A: [][]float64{{1, 2}, {1}}}}, filepath.Join(dir, "b.gif"), GifOptions{Style: tiny})
	assert.ErrorContains(t, err, "frame 0")

	err = UnivariateGiffer([]Frame{{}}, filepath.Join(dir, "c.gif"), GifOptions{Style: tiny})
	assert.ErrorContains(t, err, "no rows")
}

func TestHeatmap(t *testing.T) {
	out := filepath.Join(t.TempDir(), "heat.png")
	path, err := Heatmap(DemoGrid(), "", out, tiny)
	require.NoError(t, err)
	assert.Equal(t, out, path)
	assert.FileExists(t, out)

	_, err = Heatmap(Grid{{1}}, "missing", out, tiny)
	assert.ErrorIs(t, err, ErrUnknownPalette)

	_, err = Heatmap(Grid{}, "", out, tiny)
	assert.Error(t, err)

	_, err = Heatmap(Grid{{1, 2}, {3}}, "", out, tiny)
	assert.Error(t, err)

	_, err = Heatmap(Grid{{5, 5}, {5, 5}}, RMPYName, out, tiny)
	assert.NoError(t, err)
}

func TestDemoGridShape(t *testing.T) {
	c, r := DemoGrid().Dims()
	assert.Equal(t, 32, c)
	assert.Equal(t, 63, r)
}
