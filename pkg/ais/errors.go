package ais

import (
	"errors"
	"fmt"
)

var (
	ErrEmpty               = errors.New("empty sentence")
	ErrNotAIS              = errors.New("not an AIS sentence")
	ErrFraming             = errors.New("malformed sentence framing")
	ErrChecksum            = errors.New("checksum mismatch")
	ErrInvalidChar         = errors.New("invalid payload character")
	ErrPayloadLength       = errors.New("payload too short for message type")
	ErrInvalidField        = errors.New("invalid field value")
	ErrPositionUnavailable = errors.New("position not available")
	ErrFragment            = errors.New("fragment sequence broken")
)

// DecodeError reports why a sentence or payload could not be decoded.
type DecodeError struct {
	Reason error
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return "ais decode: " + e.Reason.Error()
	}
	return fmt.Sprintf("ais decode: %s: %s", e.Reason, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Reason
}

// Label is a short, bounded identifier suitable for metric labels.
func (e *DecodeError) Label() string {
	switch {
	case errors.Is(e.Reason, ErrEmpty):
		return "empty"
	case errors.Is(e.Reason, ErrNotAIS):
		return "not_ais"
	case errors.Is(e.Reason, ErrFraming):
		return "framing"
	case errors.Is(e.Reason, ErrChecksum):
		return "checksum"
	case errors.Is(e.Reason, ErrInvalidChar):
		return "invalid_char"
	case errors.Is(e.Reason, ErrPayloadLength):
		return "length"
	case errors.Is(e.Reason, ErrInvalidField):
		return "invalid_field"
	case errors.Is(e.Reason, ErrPositionUnavailable):
		return "no_position"
	case errors.Is(e.Reason, ErrFragment):
		return "fragment"
	default:
		return "unknown"
	}
}

func decodeErr(reason error, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
