package vessel

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func position(mmsi ais.MMSI, lat, lon float64, reportedAt time.Time) *ais.PositionReport {
	return &ais.PositionReport{
		MMSI:            mmsi,
		MessageType:     1,
		Latitude:        lat,
		Longitude:       lon,
		ReportTimestamp: reportedAt,
		ReceivedAt:      reportedAt.Add(time.Second),
	}
}

func strPtr(s string) *string { return &s }

func TestUpsertPositionCreatesRecord(t *testing.T) {
	s := NewStore(4)
	applied, err := s.UpsertPosition(position(257123456, 59.91, 10.75, base))
	require.NoError(t, err)
	assert.True(t, applied)

	rec, ok := s.Get(257123456)
	require.True(t, ok)
	assert.True(t, rec.Trackable())
	assert.InDelta(t, 59.91, rec.Position.Latitude, 1e-9)
	assert.Equal(t, base.Add(time.Second), rec.LastSeen())
}

func TestUpsertPositionDropsLateReport(t *testing.T) {
	s := NewStore(4)
	t1, t2 := base, base.Add(30*time.Second)

	_, err := s.UpsertPosition(position(257123456, 60.0, 11.0, t2))
	require.NoError(t, err)
	applied, err := s.UpsertPosition(position(257123456, 59.0, 10.0, t1))
	require.NoError(t, err)
	assert.False(t, applied)

	rec, _ := s.Get(257123456)
	assert.Equal(t, t2, rec.Position.ReportTimestamp)
	assert.InDelta(t, 60.0, rec.Position.Latitude, 1e-9)
}

func TestUpsertPositionEqualTimestampApplies(t *testing.T) {
	s := NewStore(1)
	_, _ = s.UpsertPosition(position(257123456, 60.0, 11.0, base))
	applied, err := s.UpsertPosition(position(257123456, 61.0, 11.0, base))
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestUpsertPositionOrderIndependent(t *testing.T) {
	reports := make([]*ais.PositionReport, 20)
	for i := range reports {
		reports[i] = position(257000001, 50+float64(i)*0.1, 5, base.Add(time.Duration(i)*time.Second))
	}

	inOrder := NewStore(2)
	for _, r := range reports {
		_, _ = inOrder.UpsertPosition(r)
	}
	want, _ := inOrder.Get(257000001)

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 25; round++ {
		shuffled := append([]*ais.PositionReport(nil), reports...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		s := NewStore(2)
		for _, r := range shuffled {
			_, _ = s.UpsertPosition(r)
		}
		got, _ := s.Get(257000001)
		assert.Equal(t, *want.Position, *got.Position)
	}
}

func TestUpsertRejectsInvalidMMSI(t *testing.T) {
	s := NewStore(2)
	_, _ = s.UpsertPosition(position(257123456, 59.91, 10.75, base))

	for _, mmsi := range []ais.MMSI{0, -5, 1000000000} {
		_, err := s.UpsertPosition(position(mmsi, 1, 1, base))
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		err = s.UpsertStatic(&ais.StaticInfo{MMSI: mmsi, VesselName: strPtr("X")})
		assert.True(t, IsValidationError(err))
	}

	_, err := s.UpsertPosition(nil)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, Counts{Total: 1}, s.Count())
}

func TestUpsertStaticMergesFields(t *testing.T) {
	s := NewStore(2)
	require.NoError(t, s.UpsertStatic(&ais.StaticInfo{
		MMSI:        257123456,
		MessageType: 5,
		VesselName:  strPtr("NORNE"),
		Destination: strPtr("OSLO"),
		UpdatedAt:   base,
	}))
	require.NoError(t, s.UpsertStatic(&ais.StaticInfo{
		MMSI:        257123456,
		MessageType: 24,
		Callsign:    strPtr("LAJS3"),
		UpdatedAt:   base.Add(time.Minute),
	}))

	rec, ok := s.Get(257123456)
	require.True(t, ok)
	assert.False(t, rec.Trackable(), "static-only vessel must not be trackable")
	assert.Equal(t, "NORNE", *rec.Static.VesselName)
	assert.Equal(t, "OSLO", *rec.Static.Destination)
	assert.Equal(t, "LAJS3", *rec.Static.Callsign)
	assert.Equal(t, base.Add(time.Minute), rec.Static.UpdatedAt)
	assert.Empty(t, s.SnapshotAll())
}

func TestUpsertStaticCommutative(t *testing.T) {
	name := &ais.StaticInfo{MMSI: 257123456, MessageType: 24, VesselName: strPtr("NORNE"), UpdatedAt: base}
	callsign := &ais.StaticInfo{MMSI: 257123456, MessageType: 24, Callsign: strPtr("LAJS3"), UpdatedAt: base.Add(time.Second)}

	a := NewStore(1)
	require.NoError(t, a.UpsertStatic(name))
	require.NoError(t, a.UpsertStatic(callsign))

	b := NewStore(1)
	require.NoError(t, b.UpsertStatic(callsign))
	require.NoError(t, b.UpsertStatic(name))

	ra, _ := a.Get(257123456)
	rb, _ := b.Get(257123456)
	assert.Equal(t, *ra.Static, *rb.Static)
}

func TestCountScenario(t *testing.T) {
	s := NewStore(8)
	for i, mmsi := range []ais.MMSI{257000001, 257000002, 257000003} {
		_, err := s.UpsertPosition(position(mmsi, 59+float64(i), 10, base))
		require.NoError(t, err)
	}
	require.NoError(t, s.UpsertStatic(&ais.StaticInfo{MMSI: 257000001, VesselName: strPtr("A")}))
	require.NoError(t, s.UpsertStatic(&ais.StaticInfo{MMSI: 257000003, VesselName: strPtr("C")}))

	assert.Equal(t, Counts{Total: 3, WithStatic: 2}, s.Count())
}

func TestSnapshotIsIsolatedFromLaterWrites(t *testing.T) {
	s := NewStore(4)
	_, _ = s.UpsertPosition(position(257000002, 10, 10, base))
	_, _ = s.UpsertPosition(position(257000001, 20, 20, base))

	snap := s.SnapshotAll()
	require.Len(t, snap, 2)
	assert.Equal(t, ais.MMSI(257000001), snap[0].MMSI)

	_, _ = s.UpsertPosition(position(257000001, 30, 30, base.Add(time.Minute)))
	assert.InDelta(t, 20, snap[0].Position.Latitude, 1e-9)
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	s := NewStore(16)
	const feeders, perFeeder = 8, 200

	var wg sync.WaitGroup
	for f := 0; f < feeders; f++ {
		wg.Add(1)
		go func(f int) {
			defer wg.Done()
			for i := 0; i < perFeeder; i++ {
				mmsi := ais.MMSI(257000000 + i%50)
				_, err := s.UpsertPosition(position(mmsi, float64(f), float64(i%180), base.Add(time.Duration(i)*time.Second)))
				assert.NoError(t, err)
				if i%10 == 0 {
					assert.NoError(t, s.UpsertStatic(&ais.StaticInfo{MMSI: mmsi, VesselName: strPtr("V"), UpdatedAt: base}))
				}
			}
		}(f)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				for _, rec := range s.SnapshotAll() {
					assert.NotNil(t, rec.Position)
				}
				_ = s.Count()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Count().Total)
	rec, _ := s.Get(257000049)
	assert.Equal(t, base.Add(199*time.Second), rec.Position.ReportTimestamp)
}

func TestEvictBefore(t *testing.T) {
	s := NewStore(4)
	_, _ = s.UpsertPosition(position(257000001, 1, 1, base))
	_, _ = s.UpsertPosition(position(257000002, 1, 1, base.Add(time.Hour)))
	require.NoError(t, s.UpsertStatic(&ais.StaticInfo{MMSI: 257000003, VesselName: strPtr("OLD"), UpdatedAt: base}))

	evicted := s.EvictBefore(base.Add(30 * time.Minute))
	assert.ElementsMatch(t, []ais.MMSI{257000001, 257000003}, evicted)

	_, ok := s.Get(257000001)
	assert.False(t, ok)
	_, ok = s.Get(257000002)
	assert.True(t, ok)
}

func TestRecordStale(t *testing.T) {
	rec := Record{MMSI: 1, Position: position(1, 0, 0, base)}
	assert.False(t, rec.Stale(base.Add(5*time.Minute), 10*time.Minute))
	assert.True(t, rec.Stale(base.Add(11*time.Minute), 10*time.Minute))
	assert.False(t, rec.Stale(base.Add(time.Hour), 0))
}
