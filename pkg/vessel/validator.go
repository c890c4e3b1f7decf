package vessel

import (
	"errors"
	"fmt"

	"github.com/aistrack/platform/pkg/ais"
)

var (
	ErrInvalidMMSI = errors.New("invalid mmsi")
	ErrNilReport   = errors.New("missing report")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func ValidateMMSI(mmsi ais.MMSI) error {
	if !mmsi.Valid() {
		return ValidationError{reason: fmt.Errorf("mmsi %d outside %d..%d: %w", mmsi, ais.MinMMSI, ais.MaxMMSI, ErrInvalidMMSI)}
	}
	return nil
}
