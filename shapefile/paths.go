package shapefile

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Resolve expands a glob pattern to exactly one file path. Paths without
// glob characters are returned unchanged.
//
// Examples:
//   - "data_files/Counties.shp" → "data_files/Counties.shp"
//   - "data_files/**/NI_Wards.shp" → "data_files/2021/NI_Wards.shp"
func Resolve(pattern string) (string, error) {
	if !containsGlob(pattern) {
		return pattern, nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Clean(pattern))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", pattern, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("resolve %q: %w", pattern, ErrNoMatch)
	case 1:
		return matches[0], nil
	}
	sort.Strings(matches)
	return "", fmt.Errorf("resolve %q: %w: %s", pattern, ErrAmbiguous, strings.Join(matches, ", "))
}

// containsGlob checks if a pattern contains glob characters.
func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// sidecar returns the path of a companion file (".dbf", ".prj", ...) for a
// .shp path.
func sidecar(shpPath, ext string) string {
	return strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ext
}
