package crs

import (
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"
)

var epsgRepository = sync.OnceValue(wgs84.EPSG)

// Transformer converts coordinates from one CRS to another.
type Transformer struct {
	src, dst CRS
	fn       func(a, b, c float64) (float64, float64, float64)
	identity bool
}

// NewTransformer builds a transformer from src to dst.
func NewTransformer(src, dst CRS) (*Transformer, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("transform: %w: nil CRS", ErrUnsupported)
	}
	for _, c := range []CRS{src, dst} {
		if _, err := FromEPSG(c.EPSG()); err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
	}
	t := &Transformer{src: src, dst: dst, identity: Equal(src, dst)}
	if !t.identity {
		repo := epsgRepository()
		t.fn = repo.Transform(src.EPSG(), dst.EPSG())
	}
	return t, nil
}

// Identity reports whether the transform leaves coordinates unchanged.
func (t *Transformer) Identity() bool {
	return t.identity
}

// Point transforms a single coordinate. Geographic coordinates are
// longitude, latitude in degrees.
func (t *Transformer) Point(p orb.Point) orb.Point {
	if t.identity {
		return p
	}
	x, y, _ := t.fn(p[0], p[1], 0)
	return orb.Point{x, y}
}

// Geometry returns a transformed clone of g. g is not modified.
func (t *Transformer) Geometry(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	c := orb.Clone(g)
	if t.identity {
		return c
	}
	return project.Geometry(c, t.Point)
}

// Reproject is Geometry with validation: geographic input must lie within
// ±180° longitude and ±90° latitude, and every output coordinate must be
// finite. Both failures wrap ErrOutOfRange.
func (t *Transformer) Reproject(g orb.Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	if !t.src.Projected() {
		b := g.Bound()
		if b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90 {
			return nil, fmt.Errorf("%s bound %v: %w", t.src.Name(), b, ErrOutOfRange)
		}
	}

	var bad orb.Point
	invalid := false
	out := project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		q := t.Point(p)
		if !invalid && !finite(q) {
			bad, invalid = p, true
		}
		return q
	})
	if invalid {
		return nil, fmt.Errorf("%s to %s at %v: %w", t.src.Name(), t.dst.Name(), bad, ErrOutOfRange)
	}
	return out, nil
}

func finite(p orb.Point) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
