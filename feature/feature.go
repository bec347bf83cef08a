// Package feature defines the in-memory feature collections wardmap loads,
// reprojects and joins.
package feature

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/c360studio/wardmap/crs"
)

// FieldType is the attribute type of a column.
type FieldType string

// Attribute column types.
const (
	String  FieldType = "string"
	Integer FieldType = "integer"
	Float   FieldType = "float"
	Bool    FieldType = "bool"
	Date    FieldType = "date"
)

// Field describes one attribute column.
type Field struct {
	Name     string
	Type     FieldType
	Size     int
	Decimals int
}

// Properties holds a feature's attribute values. Values are string, int64,
// float64, bool or nil.
type Properties map[string]any

// String returns the value of key formatted as text.
func (p Properties) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return fmt.Sprint(v), true
}

// Number returns the numeric value of key. Text values are parsed.
func (p Properties) Number(key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func (p Properties) clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Feature is one geometry with its attributes. ID is the feature's row
// index in the source it was read from.
type Feature struct {
	ID         int
	Geometry   orb.Geometry
	Properties Properties
}

// Collection is an ordered set of features sharing a schema and a CRS.
type Collection struct {
	Name     string
	CRS      crs.CRS
	Fields   []Field
	Features []Feature
}

// Len returns the number of features.
func (c *Collection) Len() int {
	return len(c.Features)
}

// Field returns the column with the given name.
func (c *Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Bound returns the bounding box of all non-nil geometries.
func (c *Collection) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		if first {
			b = f.Geometry.Bound()
			first = false
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// Copy returns a deep copy. Geometries and property maps are not shared.
func (c *Collection) Copy() *Collection {
	out := &Collection{
		Name:     c.Name,
		CRS:      c.CRS,
		Fields:   append([]Field(nil), c.Fields...),
		Features: make([]Feature, len(c.Features)),
	}
	for i, f := range c.Features {
		var g orb.Geometry
		if f.Geometry != nil {
			g = orb.Clone(f.Geometry)
		}
		out.Features[i] = Feature{ID: f.ID, Geometry: g, Properties: f.Properties.clone()}
	}
	return out
}

// ToCRS returns a copy of c with every geometry transformed to target.
// c is left unmodified. A coordinate outside its CRS's domain fails the
// whole collection with crs.ErrOutOfRange.
func (c *Collection) ToCRS(target crs.CRS) (*Collection, error) {
	if c.CRS == nil {
		return nil, fmt.Errorf("reproject %s: %w: source CRS not set", c.Name, crs.ErrUnsupported)
	}
	t, err := crs.NewTransformer(c.CRS, target)
	if err != nil {
		return nil, fmt.Errorf("reproject %s: %w", c.Name, err)
	}

	out := &Collection{
		Name:     c.Name,
		CRS:      target,
		Fields:   append([]Field(nil), c.Fields...),
		Features: make([]Feature, len(c.Features)),
	}
	for i, f := range c.Features {
		g, err := t.Reproject(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("reproject %s feature %d: %w", c.Name, f.ID, err)
		}
		out.Features[i] = Feature{
			ID:         f.ID,
			Geometry:   g,
			Properties: f.Properties.clone(),
		}
	}
	return out, nil
}
