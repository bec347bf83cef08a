package spatial

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"

	"github.com/c360studio/wardmap/crs"
	"github.com/c360studio/wardmap/feature"
)

// Join errors.
var (
	// ErrCRSMismatch is returned when the two sides of a join use different CRSs.
	ErrCRSMismatch = errors.New("join inputs have different coordinate reference systems")

	// ErrUnsupportedGeometry is returned when neither side of a join is
	// points-against-polygons.
	ErrUnsupportedGeometry = errors.New("join needs points on one side and polygons on the other")

	// ErrInvalidHow is returned for an unknown join type.
	ErrInvalidHow = errors.New("invalid join type")
)

// How selects which unmatched rows a join keeps.
type How string

// Join types.
const (
	Inner How = "inner"
	Left  How = "left"
)

// JoinOptions configures Join.
type JoinOptions struct {
	How     How
	LSuffix string
	RSuffix string
}

// DefaultJoinOptions returns an inner join with "left"/"right" suffixes.
func DefaultJoinOptions() JoinOptions {
	return JoinOptions{How: Inner, LSuffix: "left", RSuffix: "right"}
}

// indexed adapts a feature row to orb.Pointer for the quadtree.
type indexed struct {
	row int
	pt  orb.Point
}

func (i indexed) Point() orb.Point { return i.pt }

// Join pairs features of left and right where a point on one side lies
// inside a polygon on the other. The result has one row per matching pair,
// ordered by left row then right row, and carries the left geometry.
// Attribute names present on both sides get "_"+suffix appended, and
// "index_"+RSuffix holds the matched right row index.
func Join(left, right *feature.Collection, opts JoinOptions) (*feature.Collection, error) {
	if opts.How == "" {
		opts.How = Inner
	}
	if opts.How != Inner && opts.How != Left {
		return nil, fmt.Errorf("join %q: %w", opts.How, ErrInvalidHow)
	}
	if opts.LSuffix == "" {
		opts.LSuffix = "left"
	}
	if opts.RSuffix == "" {
		opts.RSuffix = "right"
	}
	if !crs.Equal(left.CRS, right.CRS) {
		return nil, fmt.Errorf("join %s with %s: %w (%s vs %s)",
			left.Name, right.Name, ErrCRSMismatch, crsName(left.CRS), crsName(right.CRS))
	}

	var matches [][]int
	var err error
	switch {
	case allPolygonal(left) && allPoints(right):
		matches, err = polygonsContainingPoints(left, right)
	case allPoints(left) && allPolygonal(right):
		matches, err = pointsWithinPolygons(left, right)
	default:
		return nil, fmt.Errorf("join %s with %s: %w", left.Name, right.Name, ErrUnsupportedGeometry)
	}
	if err != nil {
		return nil, err
	}

	cols := newColumnMap(left.Fields, right.Fields, opts)
	out := &feature.Collection{
		Name:   left.Name + "_" + right.Name,
		CRS:    left.CRS,
		Fields: cols.fields,
	}
	for li, lf := range left.Features {
		rows := matches[li]
		if len(rows) == 0 {
			if opts.How == Left {
				out.Features = append(out.Features, cols.row(len(out.Features), lf, nil, -1))
			}
			continue
		}
		for _, ri := range rows {
			rf := right.Features[ri]
			out.Features = append(out.Features, cols.row(len(out.Features), lf, &rf, ri))
		}
	}
	return out, nil
}

// polygonsContainingPoints indexes the right points in a quadtree and, for
// each left polygon, returns the right rows whose point it contains.
func polygonsContainingPoints(left, right *feature.Collection) ([][]int, error) {
	matches := make([][]int, len(left.Features))
	if right.Len() == 0 || left.Len() == 0 {
		return matches, nil
	}

	qt := quadtree.New(right.Bound().Pad(1))
	for i, f := range right.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		if err := qt.Add(indexed{row: i, pt: p}); err != nil {
			return nil, fmt.Errorf("index %s row %d: %w", right.Name, i, err)
		}
	}

	var buf []orb.Pointer
	for li, lf := range left.Features {
		if lf.Geometry == nil {
			continue
		}
		buf = qt.InBound(buf[:0], lf.Geometry.Bound())
		var rows []int
		for _, c := range buf {
			ix := c.(indexed)
			if contains(lf.Geometry, ix.pt) {
				rows = append(rows, ix.row)
			}
		}
		sort.Ints(rows)
		matches[li] = rows
	}
	return matches, nil
}

// pointsWithinPolygons returns, for each left point, the right polygons
// containing it.
func pointsWithinPolygons(left, right *feature.Collection) ([][]int, error) {
	matches := make([][]int, len(left.Features))
	bounds := make([]orb.Bound, len(right.Features))
	for i, f := range right.Features {
		if f.Geometry != nil {
			bounds[i] = f.Geometry.Bound()
		}
	}
	for li, lf := range left.Features {
		p, ok := lf.Geometry.(orb.Point)
		if !ok {
			continue
		}
		for ri, rf := range right.Features {
			if rf.Geometry == nil || !bounds[ri].Contains(p) {
				continue
			}
			if contains(rf.Geometry, p) {
				matches[li] = append(matches[li], ri)
			}
		}
	}
	return matches, nil
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(v, p)
	}
	return false
}

func allPoints(c *feature.Collection) bool {
	for _, f := range c.Features {
		switch f.Geometry.(type) {
		case nil, orb.Point:
		default:
			return false
		}
	}
	return true
}

func allPolygonal(c *feature.Collection) bool {
	for _, f := range c.Features {
		switch f.Geometry.(type) {
		case nil, orb.Polygon, orb.MultiPolygon:
		default:
			return false
		}
	}
	return true
}

func crsName(c crs.CRS) string {
	if c == nil {
		return "<none>"
	}
	return c.Name()
}

// columnMap renames colliding attribute columns of a join.
type columnMap struct {
	fields    []feature.Field
	leftName  map[string]string
	rightName map[string]string
	indexCol  string
}

func newColumnMap(left, right []feature.Field, opts JoinOptions) *columnMap {
	inLeft := make(map[string]bool, len(left))
	for _, f := range left {
		inLeft[f.Name] = true
	}
	inRight := make(map[string]bool, len(right))
	for _, f := range right {
		inRight[f.Name] = true
	}

	m := &columnMap{
		leftName:  make(map[string]string, len(left)),
		rightName: make(map[string]string, len(right)),
		indexCol:  "index_" + opts.RSuffix,
	}
	for _, f := range left {
		name := f.Name
		if inRight[name] {
			name += "_" + opts.LSuffix
		}
		m.leftName[f.Name] = name
		f.Name = name
		m.fields = append(m.fields, f)
	}
	m.fields = append(m.fields, feature.Field{Name: m.indexCol, Type: feature.Integer})
	for _, f := range right {
		name := f.Name
		if inLeft[name] {
			name += "_" + opts.RSuffix
		}
		m.rightName[f.Name] = name
		f.Name = name
		m.fields = append(m.fields, f)
	}
	return m
}

func (m *columnMap) row(id int, lf feature.Feature, rf *feature.Feature, ri int) feature.Feature {
	props := make(feature.Properties, len(m.fields))
	for k, v := range lf.Properties {
		if name, ok := m.leftName[k]; ok {
			props[name] = v
		}
	}
	if rf != nil {
		props[m.indexCol] = int64(ri)
		for k, v := range rf.Properties {
			if name, ok := m.rightName[k]; ok {
				props[name] = v
			}
		}
	} else {
		props[m.indexCol] = nil
		for _, name := range m.rightName {
			props[name] = nil
		}
	}

	var g orb.Geometry
	if lf.Geometry != nil {
		g = orb.Clone(lf.Geometry)
	}
	return feature.Feature{ID: id, Geometry: g, Properties: props}
}
