package crs

import (
	"fmt"
	"strconv"
	"strings"
)

// Geographic and projected codes outside the UTM ranges.
var registry = map[int]bool{
	4326:  false, // WGS 84
	4258:  false, // ETRS89
	2157:  true,  // IRENET95 / Irish Transverse Mercator
	27700: true,  // OSGB 1936 / British National Grid
	29902: true,  // TM65 / Irish Grid
	29903: true,  // TM75 / Irish Grid
}

// Parse resolves an identifier such as "EPSG:32629", "epsg:4326" or
// "UTM:29N" to a CRS.
func Parse(s string) (CRS, error) {
	id := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(id, "EPSG:"):
		code, err := strconv.Atoi(strings.TrimPrefix(id, "EPSG:"))
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", s, ErrUnsupported)
		}
		return FromEPSG(code)
	case strings.HasPrefix(id, "UTM:"):
		zone := strings.TrimPrefix(id, "UTM:")
		if zone == "" {
			return nil, fmt.Errorf("parse %q: %w", s, ErrUnsupported)
		}
		north := true
		switch zone[len(zone)-1] {
		case 'N':
			zone = zone[:len(zone)-1]
		case 'S':
			north = false
			zone = zone[:len(zone)-1]
		}
		n, err := strconv.Atoi(zone)
		if err != nil || n < 1 || n > 60 {
			return nil, fmt.Errorf("parse %q: %w", s, ErrUnsupported)
		}
		return UTM(n, north), nil
	}
	return nil, fmt.Errorf("parse %q: %w", s, ErrUnsupported)
}

// FromEPSG returns the CRS registered under an EPSG code.
func FromEPSG(code int) (CRS, error) {
	switch {
	case code > 32600 && code <= 32660:
		return UTM(code-32600, true), nil
	case code > 32700 && code <= 32760:
		return UTM(code-32700, false), nil
	case code >= 25828 && code <= 25838:
		return System{code: code, projected: true}, nil
	}
	if projected, ok := registry[code]; ok {
		return System{code: code, projected: projected}, nil
	}
	return nil, fmt.Errorf("EPSG:%d: %w", code, ErrUnsupported)
}
