package shapefile

import "errors"

// Loader errors.
var (
	// ErrNoMatch is returned when an input glob matches no file.
	ErrNoMatch = errors.New("no file matches pattern")

	// ErrAmbiguous is returned when an input glob matches more than one file.
	ErrAmbiguous = errors.New("pattern matches more than one file")

	// ErrUnknownCRS is returned when neither a .prj nor a default CRS is available.
	ErrUnknownCRS = errors.New("coordinate reference system unknown")

	// ErrMalformed is returned when the geometry or attribute table cannot
	// be read to the end, or their record counts disagree.
	ErrMalformed = errors.New("malformed shapefile")

	// ErrMissingField is returned when a required attribute column is absent.
	ErrMissingField = errors.New("required field missing")
)
