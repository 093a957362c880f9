// Package plotutil holds the house palette and a few canned plots built on
// gonum.org/v1/plot.
package plotutil

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"sync"

	"gonum.org/v1/plot/palette"
)

// RMPYName is the registry name of the house palette.
const RMPYName = "RMPY"

var (
	Blue   = mustHex("#005baa")
	Red    = mustHex("#ff2a2a")
	Purple = mustHex("#25a000")
	Green  = mustHex("#ed00d4")
	Yellow = mustHex("#f0e442")
)

// ErrUnknownPalette is returned by Lookup for unregistered names.
var ErrUnknownPalette = errors.New("unknown palette")

// Colors is a fixed list of colors usable as a palette.Palette.
type Colors []color.Color

// Colors implements palette.Palette.
func (c Colors) Colors() []color.Color { return c }

// At returns the i-th color, cycling past the end.
func (c Colors) At(i int) color.Color {
	if len(c) == 0 {
		return color.Black
	}
	return c[i%len(c)]
}

// RMPY returns the five house colors in order.
func RMPY() Colors {
	return Colors{Blue, Red, Purple, Green, Yellow}
}

var (
	registryMu sync.RWMutex
	registry   = map[string]palette.Palette{RMPYName: RMPY()}
)

// Register adds or replaces a named palette.
func Register(name string, p palette.Palette) error {
	if name == "" {
		return errors.New("palette name is empty")
	}
	if p == nil || len(p.Colors()) == 0 {
		return fmt.Errorf("palette %q has no colors", name)
	}
	registryMu.Lock()
	registry[name] = p
	registryMu.Unlock()
	return nil
}

// Lookup returns a registered palette.
func Lookup(name string) (palette.Palette, error) {
	registryMu.RLock()
	p, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
	}
	return p, nil
}

// Names lists the registered palettes, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseHex parses "#rrggbb" into an opaque color.
func ParseHex(s string) (color.NRGBA, error) {
	var c color.NRGBA
	if len(s) != 7 || s[0] != '#' {
		return c, fmt.Errorf("invalid hex color %q", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	c.A = 0xff
	return c, nil
}

func mustHex(s string) color.NRGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// WithAlpha returns c with its opacity scaled to alpha in [0, 1].
func WithAlpha(c color.Color, alpha float64) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	n.A = uint8(alpha*float64(n.A) + 0.5)
	return n
}
