// Package render draws choropleth maps of feature collections onto PNG
// images with gridlines, a colour bar and a legend.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidOptions is returned by Options.Validate.
var ErrInvalidOptions = errors.New("invalid render options")

// Sides selects the map edges that carry gridline labels.
type Sides struct {
	Left   bool
	Right  bool
	Top    bool
	Bottom bool
}

// Options holds every drawing constant of a map figure.
type Options struct {
	// Figure size in inches and resolution.
	WidthInches  float64
	HeightInches float64
	DPI          int

	// Colour scale of the choropleth.
	VMin     float64
	VMax     float64
	Colormap string

	// Colour bar appended to the right of the map axes.
	ColorbarLabel     string
	ColorbarSize      float64 // fraction of the axes width
	ColorbarPadInches float64
	ColorbarTickStep  float64

	// Overlay outline colour (name or #rrggbb) and width in points.
	BoundaryColor string
	BoundaryWidth float64

	// Graticule positions in degrees.
	GridLons   []float64
	GridLats   []float64
	GridLabels Sides

	LegendLabel      string
	LegendFontSize   float64
	LegendLocation   string
	LegendFrameAlpha float64

	// FontSize applies to tick and gridline labels.
	FontSize float64

	Tight          bool
	TightPadInches float64
}

// DefaultOptions returns the standard county/ward population figure.
func DefaultOptions() Options {
	return Options{
		WidthInches:       10,
		HeightInches:      10,
		DPI:               300,
		VMin:              1000,
		VMax:              8000,
		Colormap:          "viridis",
		ColorbarLabel:     "Resident Population",
		ColorbarSize:      0.05,
		ColorbarPadInches: 0.1,
		ColorbarTickStep:  1000,
		BoundaryColor:     "r",
		BoundaryWidth:     1,
		GridLons:          []float64{-8, -7.5, -7, -6.5, -6, -5.5},
		GridLats:          []float64{54, 54.5, 55, 55.5},
		GridLabels:        Sides{Left: true, Top: true},
		LegendLabel:       "County Boundaries",
		LegendFontSize:    12,
		LegendLocation:    "upper left",
		LegendFrameAlpha:  1,
		FontSize:          10,
		Tight:             true,
		TightPadInches:    0.1,
	}
}

// Validate reports the first inconsistent setting.
func (o Options) Validate() error {
	switch {
	case o.WidthInches <= 0 || o.HeightInches <= 0:
		return fmt.Errorf("%w: figure size must be positive", ErrInvalidOptions)
	case o.DPI <= 0:
		return fmt.Errorf("%w: dpi must be positive", ErrInvalidOptions)
	case o.VMax <= o.VMin:
		return fmt.Errorf("%w: vmax must be greater than vmin", ErrInvalidOptions)
	case o.ColorbarSize <= 0 || o.ColorbarSize >= 1:
		return fmt.Errorf("%w: colour bar size must be between 0 and 1", ErrInvalidOptions)
	case o.ColorbarTickStep <= 0:
		return fmt.Errorf("%w: colour bar tick step must be positive", ErrInvalidOptions)
	case o.LegendFrameAlpha < 0 || o.LegendFrameAlpha > 1:
		return fmt.Errorf("%w: legend frame alpha must be between 0 and 1", ErrInvalidOptions)
	}
	if _, err := LookupColormap(o.Colormap); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if _, err := ParseColor(o.BoundaryColor); err != nil {
		return fmt.Errorf("%w: boundary colour: %w", ErrInvalidOptions, err)
	}
	if _, ok := legendCorners[strings.ToLower(o.LegendLocation)]; !ok {
		return fmt.Errorf("%w: unknown legend location %q", ErrInvalidOptions, o.LegendLocation)
	}
	return nil
}

func (o Options) dpi() float64 {
	return float64(o.DPI)
}

// px converts a length in points to pixels.
func (o Options) px(points float64) float64 {
	return points * o.dpi() / 72
}

var namedColors = map[string]string{
	"r": "#ff0000", "red": "#ff0000",
	"g": "#008000", "green": "#008000",
	"b": "#0000ff", "blue": "#0000ff",
	"k": "#000000", "black": "#000000",
	"w": "#ffffff", "white": "#ffffff",
	"c": "#00bfbf", "cyan": "#00ffff",
	"m": "#bf00bf", "magenta": "#ff00ff",
	"y": "#bfbf00", "yellow": "#ffff00",
	"grey": "#808080", "gray": "#808080",
	"c0": "#1f77b4",
}

// ParseColor accepts a short or long colour name or a #rrggbb hex value.
func ParseColor(s string) (colorful.Color, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if hex, ok := namedColors[key]; ok {
		key = hex
	}
	c, err := colorful.Hex(key)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return c, nil
}
