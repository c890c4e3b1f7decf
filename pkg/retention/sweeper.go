package retention

import (
	"context"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/aistrack/platform/pkg/enrichment"
	"github.com/aistrack/platform/pkg/vessel"
)

const (
	cleanupTimeout  = 30 * time.Second
	defaultInterval = 5 * time.Minute
)

// Remover drops evicted vessels from an external copy of the store.
type Remover interface {
	Remove(ctx context.Context, mmsis ...ais.MMSI) error
}

// ExpiredDeleter purges enrichment records that are no longer valid.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Gauges receives the vessel counts after every sweep.
type Gauges interface {
	SetVesselCounts(total, withStatic int)
	ObserveEvictions(n int)
}

// Sweeper periodically applies the retention policy. With Period zero no
// vessel is ever evicted; counts are still published and expired enrichment
// records are still dropped.
type Sweeper struct {
	Store   *vessel.Store
	Period  time.Duration
	Mirror  Remover
	Cache   *enrichment.Cache
	Expired ExpiredDeleter
	Gauges  Gauges

	now func() time.Time
}

// Result summarises one sweep.
type Result struct {
	Evicted           int
	EnrichmentDropped int
	EnrichmentPurged  int64
	Counts            vessel.Counts
}

func (s *Sweeper) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Sweep runs one pass. Failures of the external stores are logged.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	now := s.clock()
	var res Result

	if s.Period > 0 {
		evicted := s.Store.EvictBefore(now.Add(-s.Period))
		res.Evicted = len(evicted)
		if len(evicted) > 0 && s.Mirror != nil {
			if err := s.Mirror.Remove(ctx, evicted...); err != nil {
				logger.Log.WithError(err).WithField("count", len(evicted)).Warn("failed to remove evicted vessels from mirror")
			}
		}
	}

	if s.Cache != nil {
		res.EnrichmentDropped = s.Cache.Sweep(now)
	}
	if s.Expired != nil {
		purged, err := s.Expired.DeleteExpired(ctx, now)
		if err != nil {
			logger.Log.WithError(err).Warn("failed to purge expired enrichment records")
		}
		res.EnrichmentPurged = purged
	}

	res.Counts = s.Store.Count()
	if s.Gauges != nil {
		s.Gauges.ObserveEvictions(res.Evicted)
		s.Gauges.SetVesselCounts(res.Counts.Total, res.Counts.WithStatic)
	}

	if res.Evicted > 0 || res.EnrichmentDropped > 0 || res.EnrichmentPurged > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"evicted":            res.Evicted,
			"enrichment_dropped": res.EnrichmentDropped,
			"enrichment_purged":  res.EnrichmentPurged,
			"vessels":            res.Counts.Total,
		}).Info("retention sweep")
	}
	return res
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}
