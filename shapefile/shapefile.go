// Package shapefile loads ESRI shapefiles (.shp geometry, .dbf attributes,
// .prj CRS and .cpg encoding) into feature collections.
package shapefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/c360studio/wardmap/crs"
	"github.com/c360studio/wardmap/feature"
)

// Options controls how a shapefile is interpreted.
type Options struct {
	// CRS, when set, overrides the .prj file.
	CRS crs.CRS
	// DefaultCRS is used when there is no .prj file.
	DefaultCRS crs.CRS
	// Name labels the collection; defaults to the file stem.
	Name string
}

// Open reads a shapefile into memory. path may be a doublestar glob that
// resolves to a single .shp file.
func Open(path string, opts Options) (*feature.Collection, error) {
	shpPath, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(shpPath), ".shp") {
		return nil, fmt.Errorf("open %s: not a .shp file", shpPath)
	}
	if _, err := os.Stat(shpPath); err != nil {
		return nil, fmt.Errorf("open %s: %w", shpPath, err)
	}
	dbfPath := sidecar(shpPath, ".dbf")
	if _, err := os.Stat(dbfPath); err != nil {
		return nil, fmt.Errorf("open attribute table %s: %w", dbfPath, err)
	}

	ref, err := readCRS(shpPath, opts)
	if err != nil {
		return nil, err
	}
	dec, err := readEncoding(shpPath)
	if err != nil {
		return nil, err
	}

	r, err := shp.Open(shpPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", shpPath, err)
	}
	defer r.Close()

	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))
	}

	shpFields := r.Fields()
	fields := make([]feature.Field, len(shpFields))
	for i, f := range shpFields {
		fields[i] = convertField(f)
	}

	rows := r.AttributeCount()
	c := &feature.Collection{Name: name, CRS: ref, Fields: fields}
	for r.Next() {
		n, s := r.Shape()
		g, err := convertShape(s)
		if err != nil {
			return nil, fmt.Errorf("read %s record %d: %w", shpPath, n, err)
		}
		if n >= rows {
			return nil, fmt.Errorf("read %s record %d: %w: attribute table has %d rows", shpPath, n, ErrMalformed, rows)
		}
		props := make(feature.Properties, len(fields))
		for k, f := range fields {
			raw := r.ReadAttribute(n, k)
			props[f.Name] = parseValue(dec.decode(raw), f)
		}
		c.Features = append(c.Features, feature.Feature{ID: n, Geometry: g, Properties: props})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", shpPath, ErrMalformed, err)
	}
	if len(c.Features) != rows {
		return nil, fmt.Errorf("read %s: %w: %d shapes but %d attribute rows", shpPath, ErrMalformed, len(c.Features), rows)
	}
	return c, nil
}

// RequireFields fails with ErrMissingField unless every name is a column of c.
func RequireFields(c *feature.Collection, names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := c.Field(n); !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w: %s", c.Name, ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

func readCRS(shpPath string, opts Options) (crs.CRS, error) {
	if opts.CRS != nil {
		return opts.CRS, nil
	}
	prjPath := sidecar(shpPath, ".prj")
	data, err := os.ReadFile(prjPath)
	switch {
	case err == nil:
		ref, err := crs.ParseWKT(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", prjPath, err)
		}
		return ref, nil
	case errors.Is(err, os.ErrNotExist):
		if opts.DefaultCRS != nil {
			return opts.DefaultCRS, nil
		}
		return nil, fmt.Errorf("%s: %w", shpPath, ErrUnknownCRS)
	default:
		return nil, fmt.Errorf("read %s: %w", prjPath, err)
	}
}

// textDecoder converts dBASE text to UTF-8.
type textDecoder struct {
	enc      encoding.Encoding
	explicit bool
}

func (d textDecoder) decode(s string) string {
	if d.enc == nil {
		return s
	}
	if !d.explicit && utf8.ValidString(s) {
		return s
	}
	out, err := d.enc.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

func readEncoding(shpPath string) (textDecoder, error) {
	data, err := os.ReadFile(sidecar(shpPath, ".cpg"))
	if errors.Is(err, os.ErrNotExist) {
		return textDecoder{enc: charmap.Windows1252}, nil
	}
	if err != nil {
		return textDecoder{}, fmt.Errorf("read code page: %w", err)
	}
	switch strings.ToUpper(strings.TrimSpace(string(data))) {
	case "UTF-8", "UTF8", "65001":
		return textDecoder{}, nil
	case "ISO-8859-1", "ISO88591", "8859_1", "LATIN1":
		return textDecoder{enc: charmap.ISO8859_1, explicit: true}, nil
	default:
		return textDecoder{enc: charmap.Windows1252, explicit: true}, nil
	}
}

func convertField(f shp.Field) feature.Field {
	out := feature.Field{
		Name:     f.String(),
		Size:     int(f.Size),
		Decimals: int(f.Precision),
	}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			out.Type = feature.Integer
		} else {
			out.Type = feature.Float
		}
	case 'F':
		out.Type = feature.Float
	case 'L':
		out.Type = feature.Bool
	case 'D':
		out.Type = feature.Date
	default:
		out.Type = feature.String
	}
	return out
}

func parseValue(raw string, f feature.Field) any {
	raw = strings.TrimSpace(strings.Trim(raw, "\x00"))
	switch f.Type {
	case feature.Integer:
		if raw == "" {
			return nil
		}
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return nil
	case feature.Float:
		if raw == "" {
			return nil
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return nil
	case feature.Bool:
		switch raw {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		}
		return nil
	}
	return raw
}

func convertShape(s shp.Shape) (orb.Geometry, error) {
	switch v := s.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointM:
		return orb.Point{v.X, v.Y}, nil
	case *shp.MultiPoint:
		mp := make(orb.MultiPoint, len(v.Points))
		for i, p := range v.Points {
			mp[i] = orb.Point{p.X, p.Y}
		}
		return mp, nil
	case *shp.PolyLine:
		return lines(splitParts(v.Parts, v.Points)), nil
	case *shp.PolyLineZ:
		return lines(splitParts(v.Parts, v.Points)), nil
	case *shp.PolyLineM:
		return lines(splitParts(v.Parts, v.Points)), nil
	case *shp.Polygon:
		return polygons(splitParts(v.Parts, v.Points)), nil
	case *shp.PolygonZ:
		return polygons(splitParts(v.Parts, v.Points)), nil
	case *shp.PolygonM:
		return polygons(splitParts(v.Parts, v.Points)), nil
	}
	return nil, fmt.Errorf("unsupported shape type %T", s)
}

func splitParts(parts []int32, points []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		ring := make([]orb.Point, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		out = append(out, ring)
	}
	return out
}

func lines(parts [][]orb.Point) orb.Geometry {
	if len(parts) == 1 {
		return orb.LineString(parts[0])
	}
	mls := make(orb.MultiLineString, len(parts))
	for i, p := range parts {
		mls[i] = orb.LineString(p)
	}
	return mls
}

// polygons groups rings into polygons: clockwise rings are shells, the rest
// are holes of the first shell that contains them. Files whose rings are all
// counter-clockwise are treated as shells only.
func polygons(parts [][]orb.Point) orb.Geometry {
	var shells []orb.Polygon
	var holes []orb.Ring
	for _, p := range parts {
		r := orb.Ring(p)
		if len(r) < 4 {
			continue
		}
		if r.Orientation() == orb.CW {
			shells = append(shells, orb.Polygon{r})
		} else {
			holes = append(holes, r)
		}
	}

	if len(shells) == 0 {
		for _, h := range holes {
			shells = append(shells, orb.Polygon{h})
		}
		holes = nil
	}

	for _, h := range holes {
		placed := false
		for i := range shells {
			if planar.RingContains(shells[i][0], h[0]) {
				shells[i] = append(shells[i], h)
				placed = true
				break
			}
		}
		if !placed {
			shells = append(shells, orb.Polygon{h})
		}
	}

	switch len(shells) {
	case 0:
		return nil
	case 1:
		return shells[0]
	}
	return orb.MultiPolygon(shells)
}
