package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Colormap maps [0, 1] onto colours by linear interpolation between evenly
// spaced anchors.
type Colormap struct {
	Name    string
	anchors []colorful.Color
}

var colormapAnchors = map[string][]string{
	"viridis": {"#440154", "#482475", "#414487", "#355f8d", "#2a788e", "#21918c", "#22a884", "#44bf70", "#7ad151", "#bddf26", "#fde725"},
	"plasma":  {"#0d0887", "#41049d", "#6a00a8", "#8f0da4", "#b12a90", "#cc4778", "#e16462", "#f2844b", "#fca636", "#fcce25", "#f0f921"},
	"magma":   {"#000004", "#140e36", "#3b0f70", "#641a80", "#8c2981", "#b73779", "#de4968", "#f7705c", "#fe9f6d", "#fecf92", "#fcfdbf"},
	"inferno": {"#000004", "#160b39", "#420a68", "#6a176e", "#932667", "#bc3754", "#dd513a", "#f37819", "#fca50a", "#f6d746", "#fcffa4"},
	"greys":   {"#ffffff", "#f2f2f2", "#e2e2e2", "#cecece", "#b4b4b4", "#979797", "#7a7a7a", "#5f5f5f", "#404040", "#1e1e1e", "#000000"},
}

// Colormaps lists the available colormap names.
func Colormaps() []string {
	names := make([]string, 0, len(colormapAnchors))
	for n := range colormapAnchors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupColormap returns the named colormap. Names are case-insensitive.
func LookupColormap(name string) (Colormap, error) {
	key := strings.ToLower(name)
	hexes, ok := colormapAnchors[key]
	if !ok {
		return Colormap{}, fmt.Errorf("unknown colormap %q (have %s)", name, strings.Join(Colormaps(), ", "))
	}
	cm := Colormap{Name: key, anchors: make([]colorful.Color, len(hexes))}
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return Colormap{}, fmt.Errorf("colormap %s anchor %d: %w", key, i, err)
		}
		cm.anchors[i] = c
	}
	return cm, nil
}

// At returns the colour at t, clamped to [0, 1].
func (m Colormap) At(t float64) colorful.Color {
	if math.IsNaN(t) || t <= 0 {
		return m.anchors[0]
	}
	if t >= 1 {
		return m.anchors[len(m.anchors)-1]
	}
	pos := t * float64(len(m.anchors)-1)
	i := int(pos)
	return m.anchors[i].BlendRgb(m.anchors[i+1], pos-float64(i)).Clamped()
}

// Scale returns the colour of v on the [vmin, vmax] range.
func (m Colormap) Scale(v, vmin, vmax float64) colorful.Color {
	return m.At((v - vmin) / (vmax - vmin))
}
