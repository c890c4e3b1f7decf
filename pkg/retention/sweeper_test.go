package retention

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/aistrack/platform/pkg/enrichment"
	"github.com/aistrack/platform/pkg/vessel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeMirror struct {
	removed []ais.MMSI
	err     error
}

func (m *fakeMirror) Remove(ctx context.Context, mmsis ...ais.MMSI) error {
	m.removed = append(m.removed, mmsis...)
	return m.err
}

type fakeDeleter struct {
	cutoff time.Time
	n      int64
	err    error
}

func (d *fakeDeleter) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	d.cutoff = cutoff
	return d.n, d.err
}

type fakeGauges struct {
	total, withStatic, evictions int
}

func (g *fakeGauges) SetVesselCounts(total, withStatic int) {
	g.total, g.withStatic = total, withStatic
}

func (g *fakeGauges) ObserveEvictions(n int) { g.evictions += n }

func seen(t *testing.T, store *vessel.Store, mmsi ais.MMSI, at time.Time) {
	t.Helper()
	_, err := store.UpsertPosition(&ais.PositionReport{
		MMSI:            mmsi,
		MessageType:     1,
		Latitude:        59.9,
		Longitude:       10.7,
		ReportTimestamp: at,
		ReceivedAt:      at,
	})
	require.NoError(t, err)
}

func TestSweepEvictsOldVessels(t *testing.T) {
	store := vessel.NewStore(4)
	seen(t, store, 257000001, base.Add(-2*time.Hour))
	seen(t, store, 257000002, base.Add(-90*time.Minute))
	seen(t, store, 257000003, base.Add(-time.Minute))

	mirror := &fakeMirror{err: errors.New("redis down")}
	gauges := &fakeGauges{}
	s := &Sweeper{Store: store, Period: time.Hour, Mirror: mirror, Gauges: gauges, now: func() time.Time { return base }}

	res := s.Sweep(context.Background())
	assert.Equal(t, 2, res.Evicted)
	assert.Equal(t, vessel.Counts{Total: 1}, res.Counts)

	sort.Slice(mirror.removed, func(i, j int) bool { return mirror.removed[i] < mirror.removed[j] })
	assert.Equal(t, []ais.MMSI{257000001, 257000002}, mirror.removed)
	assert.Equal(t, 2, gauges.evictions)
	assert.Equal(t, 1, gauges.total)

	_, ok := store.Get(257000003)
	assert.True(t, ok)
}

func TestSweepWithoutRetentionKeepsEverything(t *testing.T) {
	store := vessel.NewStore(4)
	seen(t, store, 257000001, base.Add(-30*24*time.Hour))

	mirror := &fakeMirror{}
	deleter := &fakeDeleter{n: 4}
	gauges := &fakeGauges{}
	s := &Sweeper{Store: store, Mirror: mirror, Expired: deleter, Gauges: gauges, now: func() time.Time { return base }}

	res := s.Sweep(context.Background())
	assert.Zero(t, res.Evicted)
	assert.Empty(t, mirror.removed)
	assert.Equal(t, int64(4), res.EnrichmentPurged)
	assert.Equal(t, base, deleter.cutoff)
	assert.Equal(t, 1, gauges.total)
}

func TestSweepDropsExpiredEnrichment(t *testing.T) {
	store := vessel.NewStore(1)
	cache := enrichment.NewCache(enrichment.Options{TTL: time.Millisecond, FetchTimeout: time.Second})
	_, err := cache.GetOrFetch(context.Background(), 257000001, func(ctx context.Context, mmsi ais.MMSI) (map[string]string, error) {
		return map[string]string{"Flag": "Norway"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	s := &Sweeper{Store: store, Cache: cache, now: func() time.Time { return time.Now().Add(time.Minute) }}
	res := s.Sweep(context.Background())
	assert.Equal(t, 1, res.EnrichmentDropped)
	assert.Zero(t, cache.Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	s := &Sweeper{Store: vessel.NewStore(1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
