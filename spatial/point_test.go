package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/wardmap/feature"
)

func TestRepresentativePointInsidePolygon(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
	}{
		{
			name: "square",
			geom: orb.Polygon{{{0, 0}, {0, 4}, {4, 4}, {4, 0}, {0, 0}}},
		},
		{
			name: "concave c-shape",
			// Bounding box centre (2, 2) lies in the notch.
			geom: orb.Polygon{{{0, 0}, {0, 4}, {4, 4}, {4, 3}, {1, 3}, {1, 1}, {4, 1}, {4, 0}, {0, 0}}},
		},
		{
			name: "l-shape",
			geom: orb.Polygon{{{0, 0}, {0, 10}, {1, 10}, {1, 1}, {10, 1}, {10, 0}, {0, 0}}},
		},
		{
			name: "square with centred hole",
			geom: orb.Polygon{
				{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}},
				{{3, 3}, {7, 3}, {7, 7}, {3, 7}, {3, 3}},
			},
		},
		{
			name: "multipolygon",
			geom: orb.MultiPolygon{
				{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}},
				{{{5, 5}, {5, 9}, {9, 9}, {9, 5}, {5, 5}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := RepresentativePoint(tt.geom)
			require.True(t, ok)

			switch g := tt.geom.(type) {
			case orb.Polygon:
				assert.True(t, planar.PolygonContains(g, p), "point %v outside polygon", p)
			case orb.MultiPolygon:
				assert.True(t, planar.MultiPolygonContains(g, p), "point %v outside multipolygon", p)
			}
		})
	}
}

func TestRepresentativePointPicksWidestPart(t *testing.T) {
	mp := orb.MultiPolygon{
		{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}},
		{{{5, 5}, {5, 9}, {9, 9}, {9, 5}, {5, 5}}},
	}
	p, ok := RepresentativePoint(mp)
	require.True(t, ok)
	assert.True(t, planar.PolygonContains(mp[1], p))
}

func TestRepresentativePointOtherGeometries(t *testing.T) {
	p, ok := RepresentativePoint(orb.Point{1, 2})
	assert.True(t, ok)
	assert.Equal(t, orb.Point{1, 2}, p)

	p, ok = RepresentativePoint(orb.LineString{{3, 4}, {5, 6}})
	assert.True(t, ok)
	assert.Equal(t, orb.Point{3, 4}, p)

	_, ok = RepresentativePoint(nil)
	assert.False(t, ok)

	_, ok = RepresentativePoint(orb.Polygon{})
	assert.False(t, ok)
}

func TestWithRepresentativePointsLeavesSourceUntouched(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {0, 2}, {2, 2}, {2, 0}, {0, 0}}}
	c := &feature.Collection{
		Name: "wards",
		Features: []feature.Feature{
			{ID: 0, Geometry: square, Properties: feature.Properties{"Ward": "Abbey"}},
			{ID: 1, Geometry: nil, Properties: feature.Properties{"Ward": "Empty"}},
		},
	}

	pts := WithRepresentativePoints(c)
	require.Equal(t, 2, pts.Len())

	p, ok := pts.Features[0].Geometry.(orb.Point)
	require.True(t, ok)
	assert.True(t, planar.PolygonContains(square, p))
	assert.Nil(t, pts.Features[1].Geometry)
	assert.Equal(t, "Abbey", pts.Features[0].Properties["Ward"])

	_, stillPolygon := c.Features[0].Geometry.(orb.Polygon)
	assert.True(t, stillPolygon)
}
