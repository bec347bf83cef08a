package crs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wktWGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

	wktUTM29 = `PROJCS["WGS_1984_UTM_Zone_29N",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-9.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`

	wktIrishGrid = `PROJCS["TM75_Irish_Grid",
  GEOGCS["GCS_TM75",
    DATUM["D_TM75",SPHEROID["Airy_Modified",6377340.189,299.3249646]],
    PRIMEM["Greenwich",0.0],
    UNIT["Degree",0.0174532925199433]],
  PROJECTION["Transverse_Mercator"],
  PARAMETER["False_Easting",200000.0],
  PARAMETER["False_Northing",250000.0],
  PARAMETER["Central_Meridian",-8.0],
  PARAMETER["Scale_Factor",1.000035],
  PARAMETER["Latitude_Of_Origin",53.5],
  UNIT["Meter",1.0]]`

	wktAuthority = `PROJCS["IRENET95 / Irish Transverse Mercator",GEOGCS["IRENET95",DATUM["IRENET95",SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],AUTHORITY["EPSG","6173"]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4173"]],PROJECTION["Transverse_Mercator"],UNIT["metre",1],AUTHORITY["EPSG","2157"]]`
)

func TestParseWKT(t *testing.T) {
	tests := []struct {
		name string
		wkt  string
		want string
	}{
		{"esri geographic", wktWGS84, "EPSG:4326"},
		{"esri utm", wktUTM29, "EPSG:32629"},
		{"esri irish grid", wktIrishGrid, "EPSG:29903"},
		{"root authority", wktAuthority, "EPSG:2157"},
		{"etrs utm", `PROJCS["ETRS_1989_UTM_Zone_29N",GEOGCS["GCS_ETRS_1989"]]`, "EPSG:25829"},
		{"southern utm", `PROJCS["WGS 84 / UTM zone 33S",GEOGCS["WGS 84"]]`, "EPSG:32733"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseWKT(tt.wkt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Name())
		})
	}
}

func TestParseWKTErrors(t *testing.T) {
	tests := []struct {
		name string
		wkt  string
	}{
		{"empty", ""},
		{"no root", `DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]]`},
		{"unnamed", "PROJCS[broken"},
		{"lambert", `PROJCS["NAD_1983_Lambert",GEOGCS["GCS_North_American_1983"],PROJECTION["Lambert_Conformal_Conic"]]`},
		{"unknown authority", `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84"],AUTHORITY["EPSG","3857"]]`},
		{"zone 61", `PROJCS["WGS_1984_UTM_Zone_61N",GEOGCS["GCS_WGS_1984"]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWKT(tt.wkt)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}
