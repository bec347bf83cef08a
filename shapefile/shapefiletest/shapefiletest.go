// Package shapefiletest writes small shapefiles for tests.
package shapefiletest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// WGS84PRJ is the ESRI .prj text for EPSG:4326.
const WGS84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// Row is one polygon record. Each ring must be closed; shells clockwise,
// holes counter-clockwise. Values line up with the writer's fields and may
// be string, int or float64.
type Row struct {
	Rings  []orb.Ring
	Values []any
}

// Square returns a closed clockwise ring with its lower-left corner at (x, y).
func Square(x, y, size float64) orb.Ring {
	return orb.Ring{{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y}}
}

// WritePolygons writes <dir>/<name>.shp/.shx/.dbf and, when prj is not
// empty, <name>.prj. It returns the .shp path.
func WritePolygons(t testing.TB, dir, name string, fields []shp.Field, rows []Row, prj string) string {
	t.Helper()

	path := filepath.Join(dir, name+".shp")
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := w.SetFields(fields); err != nil {
		t.Fatalf("set fields: %v", err)
	}

	for _, row := range rows {
		parts := make([][]shp.Point, len(row.Rings))
		for i, r := range row.Rings {
			pts := make([]shp.Point, len(r))
			for j, p := range r {
				pts[j] = shp.Point{X: p[0], Y: p[1]}
			}
			parts[i] = pts
		}
		pg := shp.Polygon(*shp.NewPolyLine(parts))
		idx := int(w.Write(&pg))
		for k, v := range row.Values {
			if err := w.WriteAttribute(idx, k, v); err != nil {
				t.Fatalf("write attribute %d/%d: %v", idx, k, err)
			}
		}
	}
	w.Close()

	// The writer names the attribute table <stem>dbf, without the dot.
	stem := strings.TrimSuffix(path, ".shp")
	if err := os.Rename(stem+"dbf", stem+".dbf"); err != nil {
		t.Fatalf("rename attribute table: %v", err)
	}

	if prj != "" {
		if err := os.WriteFile(stem+".prj", []byte(prj), 0o644); err != nil {
			t.Fatalf("write prj: %v", err)
		}
	}
	return path
}
