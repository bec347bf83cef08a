package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/c360studio/wardmap/crs"
	"github.com/c360studio/wardmap/feature"
)

// ErrNothingToDraw is returned when a map has no layers.
var ErrNothingToDraw = errors.New("map has no layers to draw")

// Map is the content of a choropleth figure.
type Map struct {
	// Choropleth features are filled by the value of Column.
	Choropleth *feature.Collection
	Column     string
	// Boundaries are drawn as unfilled outlines on top.
	Boundaries *feature.Collection
}

var regular = mustParseFont(goregular.TTF)

func mustParseFont(ttf []byte) *truetype.Font {
	f, err := truetype.Parse(ttf)
	if err != nil {
		panic(fmt.Sprintf("parse embedded font: %v", err))
	}
	return f
}

func fontFace(points float64, dpi float64) font.Face {
	return truetype.NewFace(regular, &truetype.Options{Size: points, DPI: dpi, Hinting: font.HintingFull})
}

var (
	black     = colorful.Color{}
	white     = colorful.Color{R: 1, G: 1, B: 1}
	gridColor = colorful.Color{R: 0.5, G: 0.5, B: 0.5}
	frameEdge = colorful.Color{R: 0.8, G: 0.8, B: 0.8}
	pointBlue = colorful.Color{R: 0x1f / 255.0, G: 0x77 / 255.0, B: 0xb4 / 255.0}
)

// Render draws m onto a new figure. The result is not cropped.
func Render(m Map, opts Options) (image.Image, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if m.Choropleth == nil && m.Boundaries == nil {
		return nil, ErrNothingToDraw
	}
	cmap, err := LookupColormap(opts.Colormap)
	if err != nil {
		return nil, err
	}
	edge, err := ParseColor(opts.BoundaryColor)
	if err != nil {
		return nil, err
	}

	bound, ok := layersBound(m.Choropleth, m.Boundaries)
	if !ok {
		return nil, ErrNothingToDraw
	}

	l := computeLayout(bound, opts, true)
	dc := gg.NewContext(l.width, l.height)
	dc.SetColor(white)
	dc.Clear()

	ax := l.axes
	dc.DrawRectangle(ax.X, ax.Y, ax.W, ax.H)
	dc.Clip()

	if m.Choropleth != nil {
		dc.SetFillRule(gg.FillRuleEvenOdd)
		for _, f := range m.Choropleth.Features {
			v, ok := f.Properties.Number(m.Column)
			if !ok || f.Geometry == nil {
				continue
			}
			if !tracePolygons(dc, ax, f.Geometry) {
				continue
			}
			dc.SetColor(cmap.Scale(v, opts.VMin, opts.VMax))
			dc.Fill()
		}
	}

	if m.Boundaries != nil {
		dc.SetColor(edge)
		dc.SetLineWidth(opts.px(opts.BoundaryWidth))
		for _, f := range m.Boundaries.Features {
			if tracePolygons(dc, ax, f.Geometry) {
				dc.Stroke()
			}
		}
	}

	lines, err := graticule(ax, mapCRS(m.Choropleth, m.Boundaries), opts)
	if err != nil {
		return nil, err
	}
	dc.SetRGBA(gridColor.R, gridColor.G, gridColor.B, 0.5)
	dc.SetLineWidth(opts.px(1))
	for _, gl := range lines {
		drawPolyline(dc, gl.pixels)
		dc.Stroke()
	}
	dc.ResetClip()

	drawAxesFrame(dc, ax.rect, opts)

	dc.SetFontFace(fontFace(opts.FontSize, opts.dpi()))
	dc.SetColor(black)
	for _, lb := range gridLabels(ax, lines, opts.GridLabels, opts.px(4)) {
		dc.DrawStringAnchored(lb.text, lb.x, lb.y, lb.ax, lb.ay)
	}

	drawColorbar(dc, l.colorbar, cmap, opts)
	drawLegend(dc, ax.rect, edge, opts)

	return dc.Image(), nil
}

// RenderPoints draws boundary outlines and point features on a plain axes:
// a quick look at where representative points fall.
func RenderPoints(boundaries, points *feature.Collection, opts Options) (image.Image, error) {
	if opts.DPI <= 0 || opts.WidthInches <= 0 || opts.HeightInches <= 0 {
		return nil, fmt.Errorf("%w: figure size and dpi must be positive", ErrInvalidOptions)
	}
	bound, ok := layersBound(boundaries, points)
	if !ok {
		return nil, ErrNothingToDraw
	}

	l := computeLayout(bound, opts, false)
	dc := gg.NewContext(l.width, l.height)
	dc.SetColor(white)
	dc.Clear()

	ax := l.axes
	if boundaries != nil {
		dc.SetColor(pointBlue)
		dc.SetLineWidth(opts.px(1))
		for _, f := range boundaries.Features {
			if tracePolygons(dc, ax, f.Geometry) {
				dc.Stroke()
			}
		}
	}
	if points != nil {
		dc.SetColor(pointBlue)
		r := opts.px(2.5)
		for _, f := range points.Features {
			p, ok := f.Geometry.(orb.Point)
			if !ok {
				continue
			}
			x, y := ax.toPixel(p)
			dc.DrawCircle(x, y, r)
			dc.Fill()
		}
	}
	drawAxesFrame(dc, ax.rect, opts)
	return dc.Image(), nil
}

// mapCRS returns the CRS of the first layer that has one.
func mapCRS(layers ...*feature.Collection) crs.CRS {
	for _, c := range layers {
		if c != nil && c.CRS != nil {
			return c.CRS
		}
	}
	return nil
}
