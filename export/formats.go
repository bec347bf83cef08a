// Package export writes joined feature tables and aggregates to GeoJSON,
// CSV and JSON files.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned when a file extension has no writer.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format specifies the output serialization format.
type Format string

const (
	// FormatGeoJSON produces an RFC 7946 FeatureCollection (.geojson).
	FormatGeoJSON Format = "geojson"

	// FormatCSV produces comma-separated attribute rows (.csv).
	FormatCSV Format = "csv"

	// FormatJSON produces a JSON document (.json).
	FormatJSON Format = "json"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatGeoJSON: {
		Name:        FormatGeoJSON,
		MIMEType:    "application/geo+json",
		Extension:   ".geojson",
		Description: "GeoJSON - features with WGS84 geometry",
	},
	FormatCSV: {
		Name:        FormatCSV,
		MIMEType:    "text/csv",
		Extension:   ".csv",
		Description: "CSV - attribute table without geometry",
	},
	FormatJSON: {
		Name:        FormatJSON,
		MIMEType:    "application/json",
		Extension:   ".json",
		Description: "JSON - aggregate tables",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// FormatForPath picks the format whose extension matches path.
func FormatForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for name, info := range FormatRegistry {
		if info.Extension == ext {
			return name, nil
		}
	}
	return "", fmt.Errorf("%s: %w %q (have %s)", path, ErrUnsupportedFormat, ext, strings.Join(extensions(), ", "))
}

func extensions() []string {
	exts := make([]string, 0, len(FormatRegistry))
	for _, info := range FormatRegistry {
		exts = append(exts, info.Extension)
	}
	sort.Strings(exts)
	return exts
}
