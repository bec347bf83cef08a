package render

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/c360studio/wardmap/crs"
)

const (
	graticuleSteps = 96
	edgeSamples    = 16
)

type gridLine struct {
	meridian bool // true for a line of constant longitude
	value    float64
	pixels   []orb.Point
}

type gridLabel struct {
	text   string
	x, y   float64
	ax, ay float64
}

// graticule projects the configured meridians and parallels into the
// axes. Lines outside the map's geographic extent are skipped.
func graticule(f frame, mapCRS crs.CRS, opts Options) ([]gridLine, error) {
	if mapCRS == nil || (len(opts.GridLons) == 0 && len(opts.GridLats) == 0) {
		return nil, nil
	}
	wgs, err := crs.FromEPSG(4326)
	if err != nil {
		return nil, err
	}
	toGeo, err := crs.NewTransformer(mapCRS, wgs)
	if err != nil {
		return nil, fmt.Errorf("graticule: %w", err)
	}
	toMap, err := crs.NewTransformer(wgs, mapCRS)
	if err != nil {
		return nil, fmt.Errorf("graticule: %w", err)
	}

	ext := geographicExtent(f.bound, toGeo).Pad(0.5)

	var lines []gridLine
	for _, lon := range opts.GridLons {
		if lon < ext.Min[0] || lon > ext.Max[0] {
			continue
		}
		lines = append(lines, gridLine{
			meridian: true,
			value:    lon,
			pixels:   sampleLine(f, toMap, orb.Point{lon, ext.Min[1]}, orb.Point{lon, ext.Max[1]}),
		})
	}
	for _, lat := range opts.GridLats {
		if lat < ext.Min[1] || lat > ext.Max[1] {
			continue
		}
		lines = append(lines, gridLine{
			value:  lat,
			pixels: sampleLine(f, toMap, orb.Point{ext.Min[0], lat}, orb.Point{ext.Max[0], lat}),
		})
	}
	return lines, nil
}

func geographicExtent(b orb.Bound, toGeo *crs.Transformer) orb.Bound {
	var ext orb.Bound
	first := true
	add := func(p orb.Point) {
		ll := toGeo.Point(p)
		if first {
			ext = orb.Bound{Min: ll, Max: ll}
			first = false
			return
		}
		ext = ext.Extend(ll)
	}
	for i := 0; i <= edgeSamples; i++ {
		t := float64(i) / edgeSamples
		x := b.Min[0] + t*(b.Max[0]-b.Min[0])
		y := b.Min[1] + t*(b.Max[1]-b.Min[1])
		add(orb.Point{x, b.Min[1]})
		add(orb.Point{x, b.Max[1]})
		add(orb.Point{b.Min[0], y})
		add(orb.Point{b.Max[0], y})
	}
	return ext
}

func sampleLine(f frame, toMap *crs.Transformer, from, to orb.Point) []orb.Point {
	pts := make([]orb.Point, 0, graticuleSteps+1)
	for i := 0; i <= graticuleSteps; i++ {
		t := float64(i) / graticuleSteps
		ll := orb.Point{from[0] + t*(to[0]-from[0]), from[1] + t*(to[1]-from[1])}
		x, y := f.toPixel(toMap.Point(ll))
		pts = append(pts, orb.Point{x, y})
	}
	return pts
}

// gridLabels places a label wherever a line crosses an enabled axes edge.
// Meridians are labelled on the top and bottom, parallels on the left and
// right.
func gridLabels(f frame, lines []gridLine, sides Sides, gap float64) []gridLabel {
	var out []gridLabel
	for _, l := range lines {
		if l.meridian {
			text := degreeLabel(l.value, "E", "W")
			if sides.Top {
				if x, ok := crossing(l.pixels, 1, f.Y); ok && x >= f.X && x <= f.right() {
					out = append(out, gridLabel{text: text, x: x, y: f.Y - gap, ax: 0.5, ay: 0})
				}
			}
			if sides.Bottom {
				if x, ok := crossing(l.pixels, 1, f.bottom()); ok && x >= f.X && x <= f.right() {
					out = append(out, gridLabel{text: text, x: x, y: f.bottom() + gap, ax: 0.5, ay: 1})
				}
			}
			continue
		}

		text := degreeLabel(l.value, "N", "S")
		if sides.Left {
			if y, ok := crossing(l.pixels, 0, f.X); ok && y >= f.Y && y <= f.bottom() {
				out = append(out, gridLabel{text: text, x: f.X - gap, y: y, ax: 1, ay: 0.5})
			}
		}
		if sides.Right {
			if y, ok := crossing(l.pixels, 0, f.right()); ok && y >= f.Y && y <= f.bottom() {
				out = append(out, gridLabel{text: text, x: f.right() + gap, y: y, ax: 0, ay: 0.5})
			}
		}
	}
	return out
}

// crossing returns the other ordinate where pts first crosses the line
// pts[i][axis] == c.
func crossing(pts []orb.Point, axis int, c float64) (float64, bool) {
	other := 1 - axis
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i][axis]-c, pts[i+1][axis]-c
		if a == 0 {
			return pts[i][other], true
		}
		if (a < 0) == (b < 0) {
			continue
		}
		t := a / (a - b)
		return pts[i][other] + t*(pts[i+1][other]-pts[i][other]), true
	}
	return 0, false
}

// degreeLabel formats v as e.g. 7.5°W or 54°N.
func degreeLabel(v float64, pos, neg string) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', -1, 64) + "°"
	switch {
	case v > 0:
		s += pos
	case v < 0:
		s += neg
	}
	return s
}
