package vessel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/redis/go-redis/v9"
)

const (
	mirrorKeyPrefix = "ais:vessel:"
	mirrorIndexKey  = "ais:vessels"
)

// RedisMirror writes vessel records to Redis in the client JSON shape so
// other processes can read positions without talking to the tracker.
type RedisMirror struct {
	client     *redis.Client
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewRedisMirror keeps each record for ttl after its last update; ttl <= 0 keeps it indefinitely.
func NewRedisMirror(client *redis.Client, ttl, staleAfter time.Duration) *RedisMirror {
	return &RedisMirror{client: client, ttl: ttl, staleAfter: staleAfter, now: time.Now}
}

func MirrorKey(mmsi ais.MMSI) string {
	return mirrorKeyPrefix + mmsi.String()
}

func (m *RedisMirror) Publish(ctx context.Context, rec Record) error {
	data, err := json.Marshal(NewRecordJSON(rec, m.now(), m.staleAfter))
	if err != nil {
		return fmt.Errorf("marshal vessel %d: %w", rec.MMSI, err)
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, MirrorKey(rec.MMSI), data, m.ttl)
	if rec.Position != nil {
		pipe.ZAdd(ctx, mirrorIndexKey, redis.Z{
			Score:  float64(rec.Position.ReceivedAt.Unix()),
			Member: rec.MMSI.String(),
		})
	}
	if bound, ok := m.indexExpiry(); ok {
		pipe.ZRemRangeByScore(ctx, mirrorIndexKey, "-inf", bound)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror vessel %d: %w", rec.MMSI, err)
	}
	return nil
}

// indexExpiry is the exclusive upper score bound of index members last seen
// longer than ttl ago. Their records have expired, so the index drops them.
func (m *RedisMirror) indexExpiry() (string, bool) {
	if m.ttl <= 0 {
		return "", false
	}
	return "(" + strconv.FormatInt(m.now().Add(-m.ttl).Unix(), 10), true
}

func (m *RedisMirror) Remove(ctx context.Context, mmsis ...ais.MMSI) error {
	if len(mmsis) == 0 {
		return nil
	}
	keys := make([]string, 0, len(mmsis))
	members := make([]interface{}, 0, len(mmsis))
	for _, mmsi := range mmsis {
		keys = append(keys, MirrorKey(mmsi))
		members = append(members, mmsi.String())
	}

	pipe := m.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, mirrorIndexKey, members...)
	_, err := pipe.Exec(ctx)
	return err
}
