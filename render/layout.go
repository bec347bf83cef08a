package render

import (
	"math"

	"github.com/paulmach/orb"
)

// Default subplot margins as fractions of the figure.
const (
	subplotLeft   = 0.125
	subplotRight  = 0.9
	subplotBottom = 0.11
	subplotTop    = 0.88
)

type rect struct {
	X, Y, W, H float64
}

func (r rect) right() float64  { return r.X + r.W }
func (r rect) bottom() float64 { return r.Y + r.H }

// frame maps data coordinates into a pixel rectangle with equal aspect.
// Pixel Y grows downwards.
type frame struct {
	rect
	bound orb.Bound
	scale float64
}

func (f frame) toPixel(p orb.Point) (float64, float64) {
	return f.X + (p[0]-f.bound.Min[0])*f.scale, f.Y + f.H - (p[1]-f.bound.Min[1])*f.scale
}

func (f frame) toData(x, y float64) orb.Point {
	return orb.Point{
		f.bound.Min[0] + (x-f.X)/f.scale,
		f.bound.Min[1] + (f.Y+f.H-y)/f.scale,
	}
}

type layout struct {
	width, height int
	axes          frame
	colorbar      rect
}

// computeLayout fits bound into the subplot area with equal aspect. When
// colorbar is set, a bar ColorbarSize times the axes width is appended to
// the right of the axes after a ColorbarPadInches gap.
func computeLayout(bound orb.Bound, opts Options, colorbar bool) layout {
	bound = nonEmpty(bound)
	dpi := opts.dpi()
	l := layout{
		width:  int(math.Round(opts.WidthInches * dpi)),
		height: int(math.Round(opts.HeightInches * dpi)),
	}
	fw, fh := float64(l.width), float64(l.height)
	sub := rect{
		X: subplotLeft * fw,
		Y: (1 - subplotTop) * fh,
		W: (subplotRight - subplotLeft) * fw,
		H: (subplotTop - subplotBottom) * fh,
	}

	availW := sub.W
	pad := 0.0
	if colorbar {
		pad = opts.ColorbarPadInches * dpi
		availW = (sub.W - pad) / (1 + opts.ColorbarSize)
	}

	dw, dh := bound.Max[0]-bound.Min[0], bound.Max[1]-bound.Min[1]
	scale := math.Min(availW/dw, sub.H/dh)
	axW, axH := dw*scale, dh*scale

	groupW := axW
	if colorbar {
		groupW += pad + opts.ColorbarSize*axW
	}
	l.axes = frame{
		rect: rect{
			X: sub.X + (sub.W-groupW)/2,
			Y: sub.Y + (sub.H-axH)/2,
			W: axW,
			H: axH,
		},
		bound: bound,
		scale: scale,
	}
	if colorbar {
		l.colorbar = rect{
			X: l.axes.right() + pad,
			Y: l.axes.Y,
			W: opts.ColorbarSize * axW,
			H: axH,
		}
	}
	return l
}

func nonEmpty(b orb.Bound) orb.Bound {
	if b.Max[0]-b.Min[0] <= 0 {
		b.Min[0] -= 0.5
		b.Max[0] += 0.5
	}
	if b.Max[1]-b.Min[1] <= 0 {
		b.Min[1] -= 0.5
		b.Max[1] += 0.5
	}
	return b
}
