package enrichment

import (
	"errors"
	"fmt"
	"time"

	"github.com/aistrack/platform/pkg/ais"
)

type FetchState string

const (
	StateNotStarted FetchState = "not_started"
	StateInFlight   FetchState = "in_flight"
	StateSucceeded  FetchState = "succeeded"
	StateFailed     FetchState = "failed"
)

// Record is the cached outcome of an enrichment lookup for one vessel.
// Payload is only set when State is StateSucceeded.
type Record struct {
	MMSI      ais.MMSI          `json:"mmsi"`
	State     FetchState        `json:"state"`
	Payload   map[string]string `json:"payload,omitempty"`
	Error     string            `json:"error,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	Attempts  int               `json:"attempts"`
}

func (r Record) Found() bool {
	return r.State == StateSucceeded
}

// Settled reports whether r is a terminal outcome that is still valid at now.
func (r Record) Settled(now time.Time) bool {
	if r.State != StateSucceeded && r.State != StateFailed {
		return false
	}
	return now.Before(r.ExpiresAt)
}

func (r Record) clone() Record {
	if r.Payload != nil {
		payload := make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			payload[k] = v
		}
		r.Payload = payload
	}
	return r
}

var (
	ErrVesselNotFound = errors.New("vessel not found at enrichment source")
	ErrFetchTimeout   = errors.New("enrichment fetch timed out")
	ErrFetchPanic     = errors.New("enrichment fetch panicked")
	ErrUpstream       = errors.New("enrichment source error")
)

// FetchError wraps any failure of the external lookup.
type FetchError struct {
	MMSI       ais.MMSI
	StatusCode int
	Reason     error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %d: status %d: %v", e.MMSI, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("fetch %d: %v", e.MMSI, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Reason
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
