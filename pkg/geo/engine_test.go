package geo

import (
	"math/rand"
	"testing"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/aistrack/platform/pkg/vessel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 40, 0, time.UTC)

func at(mmsi ais.MMSI, lat, lon float64) vessel.Record {
	return vessel.Record{MMSI: mmsi, Position: &ais.PositionReport{
		MMSI: mmsi, MessageType: 1, Latitude: lat, Longitude: lon,
		ReportTimestamp: now, ReceivedAt: now,
	}}
}

type staticSnapshot []vessel.Record

func (s staticSnapshot) SnapshotAll() []vessel.Record { return s }

func mmsis(records []vessel.Record) []ais.MMSI {
	out := make([]ais.MMSI, 0, len(records))
	for _, r := range records {
		out = append(out, r.MMSI)
	}
	return out
}

func TestHaversineKnownDistances(t *testing.T) {
	assert.Equal(t, 0.0, Haversine(59.91, 10.75, 59.91, 10.75))
	// one degree of arc along the equator
	assert.InDelta(t, 111.195, Haversine(0, 0, 0, 1), 0.01)
	// Oslo to Bergen
	assert.InDelta(t, 305, Haversine(59.9139, 10.7522, 60.3913, 5.3221), 2)
	assert.InDelta(t, Haversine(10, 20, -30, 40), Haversine(-30, 40, 10, 20), 1e-9)
}

func TestQueryInRadiusScenario(t *testing.T) {
	hdg := 180
	payload, fill, err := ais.EncodePosition(&ais.PositionReport{
		MMSI: 257123456, MessageType: 1, Latitude: 59.91, Longitude: 10.75,
		Heading: &hdg, ReportTimestamp: now,
	})
	require.NoError(t, err)

	msg, err := ais.DecodeSentence(ais.FormatSentence("A", payload, fill), now)
	require.NoError(t, err)
	report, ok := msg.(*ais.PositionReport)
	require.True(t, ok)

	store := vessel.NewStore(4)
	_, err = store.UpsertPosition(report)
	require.NoError(t, err)

	rec, ok := store.Get(257123456)
	require.True(t, ok)
	assert.InDelta(t, 59.91, rec.Position.Latitude, 1e-6)
	assert.InDelta(t, 10.75, rec.Position.Longitude, 1e-6)
	require.NotNil(t, rec.Position.Heading)
	assert.Equal(t, 180, *rec.Position.Heading)

	engine := NewEngine(store)
	hits, err := engine.QueryInRadius(59.91, 10.75, 1)
	require.NoError(t, err)
	assert.Equal(t, []ais.MMSI{257123456}, mmsis(hits))

	hits, err = engine.QueryInRadius(0, 0, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestQueryInRadiusBoundaryIncluded(t *testing.T) {
	centerLat, centerLon := 59.91, 10.75
	edge := at(257000001, 59.95, 10.80)
	radius := Haversine(centerLat, centerLon, edge.Position.Latitude, edge.Position.Longitude)

	engine := NewEngine(staticSnapshot{edge})
	hits, err := engine.QueryInRadius(centerLat, centerLon, radius)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = engine.QueryInRadius(centerLat, centerLon, radius*0.999999)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestQueryInRadiusAcrossAntimeridianAndPole(t *testing.T) {
	records := staticSnapshot{
		at(257000001, 0, -179.99),
		at(257000002, 89.99, 180),
		at(257000003, 45, 0),
	}
	engine := NewEngine(records)

	hits, err := engine.QueryInRadius(0, 179.99, 5)
	require.NoError(t, err)
	assert.Equal(t, []ais.MMSI{257000001}, mmsis(hits))

	hits, err = engine.QueryInRadius(89.99, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []ais.MMSI{257000002}, mmsis(hits))
}

func TestQueryInRadiusMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	records := make(staticSnapshot, 0, 2000)
	for i := 0; i < 2000; i++ {
		records = append(records, at(ais.MMSI(200000000+i), rng.Float64()*180-90, rng.Float64()*360-180))
	}
	engine := NewEngine(records)

	for q := 0; q < 50; q++ {
		lat, lon := rng.Float64()*180-90, rng.Float64()*360-180
		radius := rng.Float64() * 3000
		if radius == 0 {
			continue
		}

		var want []ais.MMSI
		for _, r := range records {
			if Haversine(lat, lon, r.Position.Latitude, r.Position.Longitude) <= radius {
				want = append(want, r.MMSI)
			}
		}

		hits, err := engine.QueryInRadius(lat, lon, radius)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, mmsis(hits), "query lat=%f lon=%f r=%f", lat, lon, radius)
	}
}

func TestQueryInRadiusSkipsUntrackable(t *testing.T) {
	engine := NewEngine(staticSnapshot{{MMSI: 257000009}})
	hits, err := engine.QueryInRadius(0, 0, 20000)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestQueryInRadiusValidation(t *testing.T) {
	engine := NewEngine(staticSnapshot{at(257000001, 0, 0)})

	tests := []struct {
		name           string
		lat, lon, r    float64
		expectedReason error
	}{
		{"zero radius", 0, 0, 0, ErrInvalidRadius},
		{"negative radius", 0, 0, -1, ErrInvalidRadius},
		{"latitude too high", 90.5, 0, 1, ErrInvalidLatitude},
		{"latitude too low", -91, 0, 1, ErrInvalidLatitude},
		{"longitude too high", 0, 180.1, 1, ErrInvalidLongitude},
		{"longitude too low", 0, -181, 1, ErrInvalidLongitude},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := engine.QueryInRadius(tt.lat, tt.lon, tt.r)
			require.Error(t, err)
			assert.Nil(t, hits)
			assert.True(t, IsValidationError(err))
			assert.ErrorIs(t, err, tt.expectedReason)
		})
	}

	_, err := engine.QueryInRadius(-90, 180, 0.001)
	assert.NoError(t, err)
}
