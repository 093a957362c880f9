package plotutil

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot/plotter"
)

// Grid is a row-major matrix exposed as a plotter.GridXYZ with unit cells.
type Grid [][]float64

// Dims implements plotter.GridXYZ.
func (g Grid) Dims() (c, r int) {
	if len(g) == 0 {
		return 0, 0
	}
	return len(g[0]), len(g)
}

// Z implements plotter.GridXYZ.
func (g Grid) Z(c, r int) float64 { return g[r][c] }

// X implements plotter.GridXYZ.
func (g Grid) X(c int) float64 { return float64(c) }

// Y implements plotter.GridXYZ.
func (g Grid) Y(r int) float64 { return float64(r) }

// DemoGrid returns cos(x)*sin(y)*10 sampled every 0.1 over [0,pi)x[0,2pi).
func DemoGrid() Grid {
	const step = 0.1
	cols := int(math.Ceil(math.Pi / step))
	rows := int(math.Ceil(2 * math.Pi / step))
	g := make(Grid, rows)
	for r := range g {
		g[r] = make([]float64, cols)
		for c := range g[r] {
			g[r][c] = math.Cos(float64(c)*step) * math.Sin(float64(r)*step) * 10
		}
	}
	return g
}

// Heatmap renders z through a registered palette and writes a PNG to out.
// An empty out writes to a new temp file. It returns the written path.
func Heatmap(z Grid, paletteName, out string, style Style) (string, error) {
	c, r := z.Dims()
	if c == 0 || r == 0 {
		return "", errors.New("heatmap grid is empty")
	}
	for i, row := range z {
		if len(row) != c {
			return "", fmt.Errorf("row %d has %d columns, want %d", i, len(row), c)
		}
	}
	if paletteName == "" {
		paletteName = RMPYName
	}
	pal, err := Lookup(paletteName)
	if err != nil {
		return "", err
	}
	if out == "" {
		out = TempFile("heatmap", ".png")
	}

	hm := plotter.NewHeatMap(z, pal)
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	p := barePlot()
	p.Add(hm)

	if err := savePNG(p, style, out); err != nil {
		return "", err
	}
	return out, nil
}
