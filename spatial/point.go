// Package spatial derives representative points and performs
// point-in-polygon spatial joins between feature collections.
package spatial

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/c360studio/wardmap/feature"
)

// RepresentativePoint returns a point guaranteed to lie inside g.
//
// For polygons a horizontal scan line is placed through the middle of the
// bounding box at a Y that touches no vertex; the midpoint of the widest
// interior interval on that line is returned. Multi-polygons use the widest
// interval across all parts. Points return themselves; other geometries
// return the first vertex. ok is false for nil or empty geometries.
func RepresentativePoint(g orb.Geometry) (orb.Point, bool) {
	switch v := g.(type) {
	case nil:
		return orb.Point{}, false
	case orb.Point:
		return v, true
	case orb.MultiPoint:
		if len(v) == 0 {
			return orb.Point{}, false
		}
		return v[0], true
	case orb.Polygon:
		return polygonsPoint([]orb.Polygon{v})
	case orb.MultiPolygon:
		return polygonsPoint(v)
	case orb.LineString:
		if len(v) == 0 {
			return orb.Point{}, false
		}
		return v[0], true
	case orb.MultiLineString:
		for _, ls := range v {
			if len(ls) > 0 {
				return ls[0], true
			}
		}
	}
	return orb.Point{}, false
}

// WithRepresentativePoints returns a copy of c whose geometries are replaced
// by their representative points. c is not modified. Features whose point
// cannot be derived keep a nil geometry.
func WithRepresentativePoints(c *feature.Collection) *feature.Collection {
	out := c.Copy()
	for i := range out.Features {
		if p, ok := RepresentativePoint(out.Features[i].Geometry); ok {
			out.Features[i].Geometry = p
		} else {
			out.Features[i].Geometry = nil
		}
	}
	return out
}

func polygonsPoint(polys []orb.Polygon) (orb.Point, bool) {
	var (
		best      orb.Point
		bestWidth = -1.0
	)
	for _, poly := range polys {
		if len(poly) == 0 || len(poly[0]) == 0 {
			continue
		}
		p, w, ok := scanPolygon(poly)
		if ok && w > bestWidth {
			best, bestWidth = p, w
		}
	}
	if bestWidth >= 0 {
		return best, true
	}
	// Degenerate input: fall back to the first shell vertex.
	for _, poly := range polys {
		if len(poly) > 0 && len(poly[0]) > 0 {
			return poly[0][0], true
		}
	}
	return orb.Point{}, false
}

// scanPolygon returns the midpoint and width of the widest interior
// interval of poly along its scan line.
func scanPolygon(poly orb.Polygon) (orb.Point, float64, bool) {
	b := poly.Bound()
	scanY := scanLineY(poly, b)

	var xs []float64
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			p1, p2 := ring[i], ring[i+1]
			if (p1[1] > scanY) == (p2[1] > scanY) {
				continue
			}
			t := (scanY - p1[1]) / (p2[1] - p1[1])
			xs = append(xs, p1[0]+t*(p2[0]-p1[0]))
		}
	}
	if len(xs) < 2 {
		return orb.Point{}, 0, false
	}
	sort.Float64s(xs)

	bestMid, bestWidth := 0.0, -1.0
	for i := 0; i+1 < len(xs); i += 2 {
		w := xs[i+1] - xs[i]
		if w > bestWidth {
			bestMid, bestWidth = (xs[i]+xs[i+1])/2, w
		}
	}
	if bestWidth <= 0 {
		return orb.Point{}, 0, false
	}
	return orb.Point{bestMid, scanY}, bestWidth, true
}

// scanLineY picks the Y halfway between the closest vertex ordinates below
// and above the bounding box centre, so the scan line never passes through
// a vertex.
func scanLineY(poly orb.Polygon, b orb.Bound) float64 {
	centre := (b.Min[1] + b.Max[1]) / 2
	lo, hi := b.Min[1], b.Max[1]
	for _, ring := range poly {
		for _, p := range ring {
			y := p[1]
			switch {
			case y <= centre && y > lo:
				lo = y
			case y > centre && y < hi:
				hi = y
			}
		}
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return centre
	}
	return (lo + hi) / 2
}
