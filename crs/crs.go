// Package crs names the coordinate reference systems wardmap reads and
// writes by EPSG code and reprojects between them with the wgs84 library,
// which carries the projection formulas and datum shifts.
package crs

import (
	"errors"
	"fmt"
)

// Common CRS errors.
var (
	// ErrUnsupported is returned for CRS definitions wardmap cannot model.
	ErrUnsupported = errors.New("unsupported coordinate reference system")

	// ErrOutOfRange is returned when a coordinate lies outside the valid
	// domain of its CRS or does not survive reprojection.
	ErrOutOfRange = errors.New("coordinate out of range")
)

// CRS is a coordinate reference system identified by an EPSG code.
type CRS interface {
	// Name is a human-readable identifier, e.g. "EPSG:32629".
	Name() string
	// EPSG returns the registry code.
	EPSG() int
	// Projected reports whether coordinates are planar grid units.
	Projected() bool
}

// System is the CRS implementation for every supported code.
type System struct {
	code      int
	projected bool
}

// Name implements CRS.
func (s System) Name() string { return fmt.Sprintf("EPSG:%d", s.code) }

// EPSG implements CRS.
func (s System) EPSG() int { return s.code }

// Projected implements CRS.
func (s System) Projected() bool { return s.projected }

// String implements fmt.Stringer.
func (s System) String() string { return s.Name() }

// UTM returns the WGS84 Universal Transverse Mercator zone. zone must be
// in 1..60.
func UTM(zone int, north bool) System {
	if north {
		return System{code: 32600 + zone, projected: true}
	}
	return System{code: 32700 + zone, projected: true}
}

// Equal reports whether a and b are the same coordinate system.
func Equal(a, b CRS) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.EPSG() == b.EPSG()
}
