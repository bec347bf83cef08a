package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"

	"github.com/c360studio/wardmap/feature"
)

// Legend anchor corners as fractions of the free space inside the axes.
var legendCorners = map[string][2]float64{
	"upper left":  {0, 0},
	"upper right": {1, 0},
	"lower left":  {0, 1},
	"lower right": {1, 1},
}

// layersBound is the union of the bounds of every non-nil geometry.
func layersBound(layers ...*feature.Collection) (orb.Bound, bool) {
	var b orb.Bound
	found := false
	for _, c := range layers {
		if c == nil {
			continue
		}
		for _, f := range c.Features {
			if f.Geometry == nil {
				continue
			}
			if !found {
				b = f.Geometry.Bound()
				found = true
				continue
			}
			b = b.Union(f.Geometry.Bound())
		}
	}
	return b, found
}

// tracePolygons adds the rings of g to the current path. It reports false
// when g has no polygonal part.
func tracePolygons(dc *gg.Context, f frame, g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return tracePolygon(dc, f, v)
	case orb.MultiPolygon:
		traced := false
		for _, p := range v {
			if tracePolygon(dc, f, p) {
				traced = true
			}
		}
		return traced
	}
	return false
}

func tracePolygon(dc *gg.Context, f frame, p orb.Polygon) bool {
	traced := false
	for _, ring := range p {
		if len(ring) < 3 {
			continue
		}
		for i, pt := range ring {
			x, y := f.toPixel(pt)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
		traced = true
	}
	return traced
}

func drawPolyline(dc *gg.Context, pts []orb.Point) {
	for i, p := range pts {
		if i == 0 {
			dc.MoveTo(p[0], p[1])
		} else {
			dc.LineTo(p[0], p[1])
		}
	}
}

func drawAxesFrame(dc *gg.Context, r rect, opts Options) {
	dc.SetColor(black)
	dc.SetLineWidth(opts.px(0.8))
	dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	dc.Stroke()
}

// drawColorbar fills r with the colormap from VMin (bottom) to VMax (top),
// then adds ticks, tick labels and the rotated bar label on the right.
func drawColorbar(dc *gg.Context, r rect, cmap Colormap, opts Options) {
	rows := int(math.Ceil(r.H))
	for i := 0; i < rows; i++ {
		h := math.Min(1, r.H-float64(i))
		t := 1 - (float64(i)+h/2)/r.H
		dc.SetColor(cmap.At(t))
		dc.DrawRectangle(r.X, r.Y+float64(i), r.W, h)
		dc.Fill()
	}
	drawAxesFrame(dc, r, opts)

	tickLen := opts.px(3.5)
	dc.SetFontFace(fontFace(opts.FontSize, opts.dpi()))
	maxLabel := 0.0
	for _, v := range colorbarTicks(opts.VMin, opts.VMax, opts.ColorbarTickStep) {
		y := r.bottom() - (v-opts.VMin)/(opts.VMax-opts.VMin)*r.H
		dc.SetColor(black)
		dc.SetLineWidth(opts.px(0.8))
		dc.DrawLine(r.right(), y, r.right()+tickLen, y)
		dc.Stroke()

		text := strconv.FormatFloat(v, 'f', -1, 64)
		w, _ := dc.MeasureString(text)
		maxLabel = math.Max(maxLabel, w)
		dc.DrawStringAnchored(text, r.right()+2*tickLen, y, 0, 0.5)
	}

	if opts.ColorbarLabel == "" {
		return
	}
	_, th := dc.MeasureString(opts.ColorbarLabel)
	x := r.right() + 2*tickLen + maxLabel + opts.px(4) + th/2
	y := r.Y + r.H/2
	dc.Push()
	dc.RotateAbout(-math.Pi/2, x, y)
	dc.DrawStringAnchored(opts.ColorbarLabel, x, y, 0.5, 0.5)
	dc.Pop()
}

// colorbarTicks returns the multiples of step within [vmin, vmax].
func colorbarTicks(vmin, vmax, step float64) []float64 {
	first := math.Ceil(vmin/step) * step
	n := int(math.Floor((vmax-first)/step + 1e-9))
	ticks := make([]float64, 0, n+1)
	for k := 0; k <= n; k++ {
		ticks = append(ticks, first+float64(k)*step)
	}
	return ticks
}

// drawLegend draws a framed legend with one unfilled rectangle swatch in
// the edge colour, placed in a corner of the axes.
func drawLegend(dc *gg.Context, axes rect, edge colorful.Color, opts Options) {
	if opts.LegendLabel == "" {
		return
	}
	fs := opts.px(opts.LegendFontSize)
	dc.SetFontFace(fontFace(opts.LegendFontSize, opts.dpi()))
	tw, th := dc.MeasureString(opts.LegendLabel)

	var (
		borderPad = 0.4 * fs
		handleLen = 2.0 * fs
		handleH   = 0.7 * fs
		textPad   = 0.8 * fs
		axesPad   = 0.5 * fs
	)
	w := 2*borderPad + handleLen + textPad + tw
	h := 2*borderPad + math.Max(th, fs)

	corner := legendCorners[strings.ToLower(opts.LegendLocation)]
	x := axes.X + axesPad + corner[0]*(axes.W-w-2*axesPad)
	y := axes.Y + axesPad + corner[1]*(axes.H-h-2*axesPad)

	dc.DrawRoundedRectangle(x, y, w, h, 0.2*fs)
	dc.SetRGBA(white.R, white.G, white.B, opts.LegendFrameAlpha)
	dc.FillPreserve()
	dc.SetRGBA(frameEdge.R, frameEdge.G, frameEdge.B, opts.LegendFrameAlpha)
	dc.SetLineWidth(opts.px(1))
	dc.Stroke()

	sx := x + borderPad
	sy := y + h/2 - handleH/2
	dc.DrawRectangle(sx, sy, handleLen, handleH)
	dc.SetColor(edge)
	dc.SetLineWidth(opts.px(opts.BoundaryWidth))
	dc.Stroke()

	dc.SetColor(black)
	dc.DrawStringAnchored(opts.LegendLabel, sx+handleLen+textPad, y+h/2, 0, 0.5)
}
