package vessel

import (
	"time"

	"github.com/aistrack/platform/pkg/ais"
)

// Record is the aggregate held per vessel. Position is nil while a vessel is
// only known from static data; such records are not query-visible.
//
// Reports referenced by a Record are never mutated after they are stored, so a
// copied Record is safe to read without locks.
type Record struct {
	MMSI     ais.MMSI
	Position *ais.PositionReport
	Static   *ais.StaticInfo
}

// Trackable reports whether the vessel has a known position.
func (r Record) Trackable() bool {
	return r.Position != nil
}

// LastSeen is the local receive time of the latest applied position.
func (r Record) LastSeen() time.Time {
	if r.Position == nil {
		return time.Time{}
	}
	return r.Position.ReceivedAt
}

// Stale reports whether nothing was heard from the vessel for longer than after.
// A non-positive threshold disables staleness.
func (r Record) Stale(now time.Time, after time.Duration) bool {
	if after <= 0 || r.Position == nil {
		return false
	}
	return now.Sub(r.Position.ReceivedAt) > after
}

type Counts struct {
	Total      int `json:"unique_ships"`
	WithStatic int `json:"ships_with_info"`
}
