package vessel

import (
	"sort"
	"sync"
	"time"

	"github.com/aistrack/platform/pkg/ais"
)

const DefaultShards = 32

type shard struct {
	mu      sync.RWMutex
	records map[ais.MMSI]*Record
}

// Store holds the latest state per vessel. Vessels are spread over shards by
// MMSI so writers for unrelated vessels rarely contend.
type Store struct {
	shards []*shard
}

func NewStore(shards int) *Store {
	if shards <= 0 {
		shards = DefaultShards
	}
	s := &Store{shards: make([]*shard, shards)}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[ais.MMSI]*Record)}
	}
	return s
}

func (s *Store) shardFor(mmsi ais.MMSI) *shard {
	return s.shards[uint64(mmsi)%uint64(len(s.shards))]
}

// UpsertPosition applies p unless the stored position has a newer report
// timestamp. applied is false when p was dropped as out of order.
func (s *Store) UpsertPosition(p *ais.PositionReport) (applied bool, err error) {
	if p == nil {
		return false, ValidationError{reason: ErrNilReport}
	}
	if err := ValidateMMSI(p.MMSI); err != nil {
		return false, err
	}

	stored := *p
	stored.Static = nil

	sh := s.shardFor(p.MMSI)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[p.MMSI]
	if !ok {
		sh.records[p.MMSI] = &Record{MMSI: p.MMSI, Position: &stored}
		return true, nil
	}
	if rec.Position != nil && stored.ReportTimestamp.Before(rec.Position.ReportTimestamp) {
		return false, nil
	}
	rec.Position = &stored
	return true, nil
}

// UpsertStatic merges the fields present in info over the stored static data.
func (s *Store) UpsertStatic(info *ais.StaticInfo) error {
	if info == nil {
		return ValidationError{reason: ErrNilReport}
	}
	if err := ValidateMMSI(info.MMSI); err != nil {
		return err
	}

	sh := s.shardFor(info.MMSI)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[info.MMSI]
	if !ok {
		rec = &Record{MMSI: info.MMSI}
		sh.records[info.MMSI] = rec
	}
	rec.Static = mergeStatic(rec.Static, info)
	return nil
}

// Get returns a copy of the vessel's record, trackable or not.
func (s *Store) Get(mmsi ais.MMSI) (Record, bool) {
	sh := s.shardFor(mmsi)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	rec, ok := sh.records[mmsi]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// SnapshotAll copies every trackable record, ordered by MMSI. Shards are
// locked one at a time so writers are held for at most one shard copy.
func (s *Store) SnapshotAll() []Record {
	out := make([]Record, 0, s.approxLen())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.records {
			if rec.Position != nil {
				out = append(out, *rec)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out
}

func (s *Store) Count() Counts {
	var c Counts
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.records {
			if rec.Position == nil {
				continue
			}
			c.Total++
			if rec.Static != nil {
				c.WithStatic++
			}
		}
		sh.mu.RUnlock()
	}
	return c
}

// EvictBefore removes vessels last seen before cutoff, including static-only
// vessels whose static data is older than cutoff. It is only called by the
// retention sweep when one is configured.
func (s *Store) EvictBefore(cutoff time.Time) []ais.MMSI {
	var evicted []ais.MMSI
	for _, sh := range s.shards {
		sh.mu.Lock()
		for mmsi, rec := range sh.records {
			seen := rec.LastSeen()
			if rec.Position == nil && rec.Static != nil {
				seen = rec.Static.UpdatedAt
			}
			if seen.Before(cutoff) {
				delete(sh.records, mmsi)
				evicted = append(evicted, mmsi)
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

func (s *Store) approxLen() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.records)
		sh.mu.RUnlock()
	}
	return n
}

// mergeStatic builds a new StaticInfo; the previous value is left untouched
// because snapshots may still reference it.
func mergeStatic(prev, in *ais.StaticInfo) *ais.StaticInfo {
	merged := ais.StaticInfo{MMSI: in.MMSI}
	if prev != nil {
		merged = *prev
	}

	if in.VesselName != nil {
		merged.VesselName = cloneString(in.VesselName)
	}
	if in.Callsign != nil {
		merged.Callsign = cloneString(in.Callsign)
	}
	if in.IMONumber != nil {
		merged.IMONumber = cloneInt(in.IMONumber)
	}
	if in.ShipType != nil {
		merged.ShipType = cloneInt(in.ShipType)
	}
	if in.Destination != nil {
		merged.Destination = cloneString(in.Destination)
	}
	if in.Draught != nil {
		v := *in.Draught
		merged.Draught = &v
	}
	if in.Dimensions != nil {
		v := *in.Dimensions
		merged.Dimensions = &v
	}
	if in.ETA != nil {
		v := *in.ETA
		merged.ETA = &v
	}
	if prev == nil || in.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = in.UpdatedAt
		merged.MessageType = in.MessageType
	}
	return &merged
}

func cloneString(s *string) *string {
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	v := *i
	return &v
}
