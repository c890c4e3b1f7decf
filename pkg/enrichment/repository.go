package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// recordRow is the Postgres form of a Record.
type recordRow struct {
	MMSI      int64             `gorm:"primaryKey;column:mmsi;autoIncrement:false"`
	State     string            `gorm:"column:state;index"`
	Payload   datatypes.JSONMap `gorm:"column:payload"`
	Error     string            `gorm:"column:error"`
	Attempts  int               `gorm:"column:attempts"`
	FetchedAt time.Time         `gorm:"column:fetched_at"`
	ExpiresAt time.Time         `gorm:"column:expires_at;index"`
	UpdatedAt time.Time         `gorm:"column:updated_at"`
}

func (recordRow) TableName() string {
	return "enrichment_records"
}

func rowFromRecord(rec Record) recordRow {
	row := recordRow{
		MMSI:      int64(rec.MMSI),
		State:     string(rec.State),
		Error:     rec.Error,
		Attempts:  rec.Attempts,
		FetchedAt: rec.FetchedAt.UTC(),
		ExpiresAt: rec.ExpiresAt.UTC(),
	}
	if rec.Payload != nil {
		row.Payload = make(datatypes.JSONMap, len(rec.Payload))
		for k, v := range rec.Payload {
			row.Payload[k] = v
		}
	}
	return row
}

func (r recordRow) record() Record {
	rec := Record{
		MMSI:      ais.MMSI(r.MMSI),
		State:     FetchState(r.State),
		Error:     r.Error,
		Attempts:  r.Attempts,
		FetchedAt: r.FetchedAt,
		ExpiresAt: r.ExpiresAt,
	}
	if r.Payload != nil {
		rec.Payload = make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			rec.Payload[k] = fmt.Sprint(v)
		}
	}
	return rec
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&recordRow{})
}

func (r *GormRepository) Load(ctx context.Context, mmsi ais.MMSI) (*Record, error) {
	var row recordRow
	result := r.db.WithContext(ctx).First(&row, "mmsi = ?", int64(mmsi))
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	rec := row.record()
	return &rec, nil
}

func (r *GormRepository) Save(ctx context.Context, rec Record) error {
	row := rowFromRecord(rec)
	row.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// DeleteExpired removes rows whose validity ended before cutoff.
func (r *GormRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", cutoff.UTC()).Delete(&recordRow{})
	return result.RowsAffected, result.Error
}

const redisKeyPrefix = "ais:enrichment:"

// RedisRepository shares settled records between tracker instances. Entries
// expire in Redis together with the record.
type RedisRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client, now: time.Now}
}

func redisKey(mmsi ais.MMSI) string {
	return redisKeyPrefix + mmsi.String()
}

func (r *RedisRepository) Load(ctx context.Context, mmsi ais.MMSI) (*Record, error) {
	data, err := r.client.Get(ctx, redisKey(mmsi)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", redisKey(mmsi), err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode enrichment record %d: %w", mmsi, err)
	}
	return &rec, nil
}

func (r *RedisRepository) Save(ctx context.Context, rec Record) error {
	ttl := rec.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode enrichment record %d: %w", rec.MMSI, err)
	}
	return r.client.Set(ctx, redisKey(rec.MMSI), data, ttl).Err()
}

// Tiered reads from the first repository holding a record and writes to all.
type Tiered []Repository

func (t Tiered) Load(ctx context.Context, mmsi ais.MMSI) (*Record, error) {
	var errs []error
	for _, repo := range t {
		rec, err := repo.Load(ctx, mmsi)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, errors.Join(errs...)
}

func (t Tiered) Save(ctx context.Context, rec Record) error {
	var errs []error
	for _, repo := range t {
		if err := repo.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
