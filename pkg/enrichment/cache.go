package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/aistrack/platform/pkg/vessel"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultNegativeTTL  = 15 * time.Minute
	DefaultFetchTimeout = 15 * time.Second

	repositoryTimeout = 5 * time.Second
)

// FetchFunc performs the slow external lookup for one vessel.
type FetchFunc func(ctx context.Context, mmsi ais.MMSI) (map[string]string, error)

// Repository persists settled records across restarts. Load returns nil, nil
// when nothing is stored for the vessel.
type Repository interface {
	Load(ctx context.Context, mmsi ais.MMSI) (*Record, error)
	Save(ctx context.Context, rec Record) error
}

// Observer is told about every completed fetch.
type Observer interface {
	ObserveFetch(state FetchState, elapsed time.Duration)
}

type Options struct {
	TTL          time.Duration
	NegativeTTL  time.Duration
	FetchTimeout time.Duration
	Repository   Repository
	Observer     Observer
}

// Cache deduplicates enrichment lookups per vessel. At most one fetch runs per
// MMSI at a time; concurrent callers share its outcome. Successes are kept for
// TTL and failures for NegativeTTL.
type Cache struct {
	mu      sync.Mutex
	records map[ais.MMSI]Record
	group   singleflight.Group
	opts    Options
	now     func() time.Time
}

func NewCache(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = DefaultNegativeTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return &Cache{
		records: make(map[ais.MMSI]Record),
		opts:    opts,
		now:     time.Now,
	}
}

// GetOrFetch returns the cached outcome for mmsi, running fetch when there is
// no valid one. If ctx ends first the caller stops waiting but the fetch keeps
// running and its outcome is still cached.
func (c *Cache) GetOrFetch(ctx context.Context, mmsi ais.MMSI, fetch FetchFunc) (Record, error) {
	return c.get(ctx, mmsi, fetch, false)
}

// Retry fetches again when the known outcome for mmsi is a failure, even one
// still in its cooldown or loaded from the repository. Settled successes and
// running fetches are returned as GetOrFetch would.
func (c *Cache) Retry(ctx context.Context, mmsi ais.MMSI, fetch FetchFunc) (Record, error) {
	return c.get(ctx, mmsi, fetch, true)
}

func (c *Cache) get(ctx context.Context, mmsi ais.MMSI, fetch FetchFunc, retry bool) (Record, error) {
	if err := vessel.ValidateMMSI(mmsi); err != nil {
		return Record{}, err
	}
	if rec, ok := c.settled(mmsi); ok && reusable(rec, retry) {
		return rec, nil
	}

	ch := c.group.DoChan(mmsi.String(), func() (interface{}, error) {
		return c.resolve(mmsi, fetch, retry), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Record).clone(), nil
	case <-ctx.Done():
		return Record{MMSI: mmsi, State: StateInFlight}, ctx.Err()
	}
}

// reusable reports whether a settled record answers a request. A retry never
// accepts a failure.
func reusable(rec Record, retry bool) bool {
	return !(retry && rec.State == StateFailed)
}

// Peek returns the current record without triggering a fetch.
func (c *Cache) Peek(mmsi ais.MMSI) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[mmsi]
	if !ok {
		return Record{MMSI: mmsi, State: StateNotStarted}, false
	}
	return rec.clone(), true
}

// Sweep drops settled records that expired before now and returns how many
// were removed.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for mmsi, rec := range c.records {
		if rec.State != StateInFlight && !rec.Settled(now) {
			delete(c.records, mmsi)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *Cache) settled(mmsi ais.MMSI) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[mmsi]
	if !ok || !rec.Settled(c.now()) {
		return Record{}, false
	}
	return rec.clone(), true
}

// resolve runs inside the single flight for mmsi.
func (c *Cache) resolve(mmsi ais.MMSI, fetch FetchFunc, retry bool) Record {
	c.mu.Lock()
	prev, known := c.records[mmsi]
	if known && prev.Settled(c.now()) && reusable(prev, retry) {
		c.mu.Unlock()
		return prev
	}
	c.records[mmsi] = Record{MMSI: mmsi, State: StateInFlight, Attempts: prev.Attempts}
	c.mu.Unlock()

	if !known && c.opts.Repository != nil {
		if stored := c.load(mmsi); stored != nil {
			if stored.Settled(c.now()) && reusable(*stored, retry) {
				c.store(*stored)
				return *stored
			}
			prev.Attempts = stored.Attempts
		}
	}

	start := c.now()
	payload, err := c.run(mmsi, fetch)
	finished := c.now()

	rec := Record{MMSI: mmsi, FetchedAt: finished, Attempts: prev.Attempts + 1}
	entry := logger.WithFields(map[string]interface{}{
		"mmsi":     int64(mmsi),
		"attempts": rec.Attempts,
		"elapsed":  finished.Sub(start).String(),
	})
	if err != nil {
		rec.State = StateFailed
		rec.Error = err.Error()
		rec.ExpiresAt = finished.Add(c.opts.NegativeTTL)
		entry.WithError(err).Warn("Enrichment fetch failed")
	} else {
		if payload == nil {
			payload = map[string]string{}
		}
		rec.State = StateSucceeded
		rec.Payload = payload
		rec.ExpiresAt = finished.Add(c.opts.TTL)
		entry.Debug("Enrichment fetch succeeded")
	}

	c.store(rec)
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveFetch(rec.State, finished.Sub(start))
	}
	c.save(rec)
	return rec
}

// run bounds fetch by the fetch timeout and converts panics into failures. The
// timeout applies even when fetch ignores its context.
func (c *Cache) run(mmsi ais.MMSI, fetch FetchFunc) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.FetchTimeout)
	defer cancel()

	type result struct {
		payload map[string]string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: &FetchError{MMSI: mmsi, Reason: fmt.Errorf("%w: %v", ErrFetchPanic, r)}}
			}
		}()
		payload, err := fetch(ctx, mmsi)
		done <- result{payload: payload, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.payload, nil
		}
		if IsFetchError(res.err) {
			return nil, res.err
		}
		if errors.Is(res.err, context.DeadlineExceeded) {
			return nil, &FetchError{MMSI: mmsi, Reason: fmt.Errorf("%w: %v", ErrFetchTimeout, res.err)}
		}
		return nil, &FetchError{MMSI: mmsi, Reason: res.err}
	case <-ctx.Done():
		return nil, &FetchError{MMSI: mmsi, Reason: ErrFetchTimeout}
	}
}

func (c *Cache) store(rec Record) {
	c.mu.Lock()
	c.records[rec.MMSI] = rec
	c.mu.Unlock()
}

func (c *Cache) load(mmsi ais.MMSI) *Record {
	ctx, cancel := context.WithTimeout(context.Background(), repositoryTimeout)
	defer cancel()

	rec, err := c.opts.Repository.Load(ctx, mmsi)
	if err != nil {
		logger.WithField("mmsi", int64(mmsi)).WithError(err).Warn("Failed to load enrichment record")
		return nil
	}
	return rec
}

func (c *Cache) save(rec Record) {
	if c.opts.Repository == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), repositoryTimeout)
	defer cancel()

	if err := c.opts.Repository.Save(ctx, rec); err != nil {
		logger.WithField("mmsi", int64(rec.MMSI)).WithError(err).Warn("Failed to persist enrichment record")
	}
}
