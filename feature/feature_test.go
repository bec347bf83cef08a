package feature

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/wardmap/crs"
)

func square(x0, y0, size float64) orb.Polygon {
	return orb.Polygon{{
		{x0, y0}, {x0, y0 + size}, {x0 + size, y0 + size}, {x0 + size, y0}, {x0, y0},
	}}
}

func testCollection(t *testing.T) *Collection {
	t.Helper()
	wgs, err := crs.Parse("EPSG:4326")
	require.NoError(t, err)
	return &Collection{
		Name: "wards",
		CRS:  wgs,
		Fields: []Field{
			{Name: "Ward", Type: String, Size: 40},
			{Name: "Population", Type: Integer, Size: 10},
		},
		Features: []Feature{
			{ID: 0, Geometry: square(-7, 54, 0.1), Properties: Properties{"Ward": "A", "Population": int64(100)}},
			{ID: 1, Geometry: square(-6.5, 54.5, 0.1), Properties: Properties{"Ward": "B", "Population": int64(200)}},
			{ID: 2, Geometry: nil, Properties: Properties{"Ward": "C", "Population": nil}},
		},
	}
}

func TestPropertiesAccessors(t *testing.T) {
	p := Properties{
		"s": "text",
		"i": int64(42),
		"f": 1.5,
		"b": true,
		"n": nil,
		"q": " 12.25 ",
	}

	s, ok := p.String("i")
	assert.True(t, ok)
	assert.Equal(t, "42", s)

	s, ok = p.String("f")
	assert.True(t, ok)
	assert.Equal(t, "1.5", s)

	_, ok = p.String("n")
	assert.False(t, ok)
	_, ok = p.String("missing")
	assert.False(t, ok)

	v, ok := p.Number("i")
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)

	v, ok = p.Number("q")
	assert.True(t, ok)
	assert.Equal(t, 12.25, v)

	_, ok = p.Number("s")
	assert.False(t, ok)
	_, ok = p.Number("b")
	assert.False(t, ok)
}

func TestCollectionField(t *testing.T) {
	c := testCollection(t)
	f, ok := c.Field("Population")
	require.True(t, ok)
	assert.Equal(t, Integer, f.Type)

	_, ok = c.Field("CountyName")
	assert.False(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestCollectionBoundSkipsNil(t *testing.T) {
	c := testCollection(t)
	b := c.Bound()
	assert.InDelta(t, -7, b.Min[0], 1e-12)
	assert.InDelta(t, 54, b.Min[1], 1e-12)
	assert.InDelta(t, -6.4, b.Max[0], 1e-12)
	assert.InDelta(t, 54.6, b.Max[1], 1e-12)
}

func TestCollectionCopyIsDeep(t *testing.T) {
	c := testCollection(t)
	cp := c.Copy()

	cp.Features[0].Properties["Ward"] = "changed"
	cp.Features[0].Geometry.(orb.Polygon)[0][0] = orb.Point{0, 0}

	assert.Equal(t, "A", c.Features[0].Properties["Ward"])
	assert.Equal(t, orb.Point{-7, 54}, c.Features[0].Geometry.(orb.Polygon)[0][0])
	assert.Nil(t, cp.Features[2].Geometry)
}

func TestToCRSLeavesSourceUnmodified(t *testing.T) {
	c := testCollection(t)
	utm := crs.UTM(29, true)

	out, err := c.ToCRS(utm)
	require.NoError(t, err)

	assert.Equal(t, utm, out.CRS)
	assert.Equal(t, orb.Point{-7, 54}, c.Features[0].Geometry.(orb.Polygon)[0][0])

	p := out.Features[0].Geometry.(orb.Polygon)[0][0]
	assert.Greater(t, p[0], 500000.0, "east of the zone 29 central meridian")
	assert.Greater(t, p[1], 5900000.0)
	assert.Nil(t, out.Features[2].Geometry)
	assert.Equal(t, int64(100), out.Features[0].Properties["Population"])
}

func TestToCRSIdempotent(t *testing.T) {
	c := testCollection(t)
	utm := crs.UTM(29, true)

	once, err := c.ToCRS(utm)
	require.NoError(t, err)
	twice, err := once.ToCRS(utm)
	require.NoError(t, err)

	assert.Equal(t, once.Features[1].Geometry, twice.Features[1].Geometry)
}

func TestToCRSWithoutSourceCRS(t *testing.T) {
	c := testCollection(t)
	c.CRS = nil
	_, err := c.ToCRS(crs.UTM(29, true))
	assert.ErrorIs(t, err, crs.ErrUnsupported)
}

func TestToCRSRejectsOutOfRangeDegrees(t *testing.T) {
	c := testCollection(t)
	// Grid metres labelled as degrees.
	c.Features[1].Geometry = square(333000, 373000, 1000)

	_, err := c.ToCRS(crs.UTM(29, true))
	assert.ErrorIs(t, err, crs.ErrOutOfRange)
	assert.Contains(t, err.Error(), "feature 1")
}
