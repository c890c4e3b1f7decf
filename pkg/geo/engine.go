package geo

import (
	"github.com/aistrack/platform/pkg/vessel"
)

// Snapshotter is the read side of the vessel store the engine needs.
type Snapshotter interface {
	SnapshotAll() []vessel.Record
}

// Engine answers radius queries over point-in-time store snapshots. It holds
// no state of its own.
type Engine struct {
	store Snapshotter
}

func NewEngine(store Snapshotter) *Engine {
	return &Engine{store: store}
}

// QueryInRadius returns the trackable vessels whose latest position lies within
// radiusKm of the centre, boundary included. Result order is unspecified.
func (e *Engine) QueryInRadius(lat, lon, radiusKm float64) ([]vessel.Record, error) {
	if err := ValidateQuery(lat, lon, radiusKm); err != nil {
		return nil, err
	}
	return Within(e.store.SnapshotAll(), lat, lon, radiusKm), nil
}

// Within filters records against a circle. Arguments are assumed valid.
func Within(records []vessel.Record, lat, lon, radiusKm float64) []vessel.Record {
	b := newBox(lat, lon, radiusKm)
	out := make([]vessel.Record, 0)
	for _, rec := range records {
		p := rec.Position
		if p == nil || !b.contains(p.Latitude, p.Longitude) {
			continue
		}
		if Haversine(lat, lon, p.Latitude, p.Longitude) <= radiusKm {
			out = append(out, rec)
		}
	}
	return out
}
