package geo

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidRadius    = errors.New("radius must be greater than zero")
	ErrInvalidLatitude  = errors.New("latitude must be within [-90, 90]")
	ErrInvalidLongitude = errors.New("longitude must be within [-180, 180]")
)

type ValidationError struct {
	reason error
	value  float64
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: got %v", e.reason, e.value)
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// ValidateQuery checks a radius query before any snapshot is taken.
func ValidateQuery(lat, lon, radiusKm float64) error {
	switch {
	case math.IsNaN(lat) || lat < -90 || lat > 90:
		return ValidationError{reason: ErrInvalidLatitude, value: lat}
	case math.IsNaN(lon) || lon < -180 || lon > 180:
		return ValidationError{reason: ErrInvalidLongitude, value: lon}
	case math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm <= 0:
		return ValidationError{reason: ErrInvalidRadius, value: radiusKm}
	}
	return nil
}
