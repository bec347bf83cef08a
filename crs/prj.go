package crs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// The root authority closes a WKT1 definition: ...,AUTHORITY["EPSG","32629"]]
	rootAuthority = regexp.MustCompile(`AUTHORITY\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]\s*\]\s*$`)
	rootName      = regexp.MustCompile(`^\s*(PROJCS|GEOGCS)\s*\[\s*"([^"]*)"`)
	utmName       = regexp.MustCompile(`^(wgs1984|wgs84|etrs1989|etrs89)utmzone(\d{1,2})([ns])$`)
)

// prjCode maps a normalized root name, as ESRI and GDAL write it, to its
// EPSG code.
func prjCode(name string) (int, bool) {
	switch name {
	case "gcswgs1984", "wgs84":
		return 4326, true
	case "gcsetrs1989", "etrs89":
		return 4258, true
	case "tm65irishgrid":
		return 29902, true
	case "tm75irishgrid":
		return 29903, true
	case "irenet95irishtransversemercator", "irenet95itm":
		return 2157, true
	case "britishnationalgrid", "osgb1936britishnationalgrid":
		return 27700, true
	}
	return 0, false
}

// ParseWKT maps the WKT1 text of a .prj file to a supported CRS, using the
// root EPSG authority when present and the root name otherwise.
func ParseWKT(text string) (CRS, error) {
	text = strings.TrimSpace(text)
	if m := rootAuthority.FindStringSubmatch(text); m != nil {
		code, _ := strconv.Atoi(m[1])
		return FromEPSG(code)
	}

	m := rootName.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("parse wkt: no PROJCS or GEOGCS root: %w", ErrUnsupported)
	}
	name := normalizeName(m[2])
	if code, ok := prjCode(name); ok {
		return FromEPSG(code)
	}
	if u := utmName.FindStringSubmatch(name); u != nil {
		zone, _ := strconv.Atoi(u[2])
		if zone < 1 || zone > 60 {
			return nil, fmt.Errorf("parse wkt %q: %w", m[2], ErrUnsupported)
		}
		if strings.HasPrefix(u[1], "etrs") {
			if u[3] != "n" {
				return nil, fmt.Errorf("parse wkt %q: %w", m[2], ErrUnsupported)
			}
			return FromEPSG(25800 + zone)
		}
		return UTM(zone, u[3] == "n"), nil
	}
	return nil, fmt.Errorf("parse wkt %q: %w", m[2], ErrUnsupported)
}

// normalizeName lowercases and strips everything but letters and digits.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
