package enrichment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aistrack/platform/pkg/ais"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newGormRepository(t *testing.T) *GormRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	repo := NewGormRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func TestGormRepositoryRoundTrip(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	missing, err := repo.Load(ctx, testMMSI)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Save(ctx, Record{
		MMSI:      testMMSI,
		State:     StateSucceeded,
		Payload:   map[string]string{"Vessel Name": "NORNE", "Flag": "Norway"},
		FetchedAt: now,
		ExpiresAt: now.Add(DefaultTTL),
		Attempts:  1,
	}))

	got, err := repo.Load(ctx, testMMSI)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StateSucceeded, got.State)
	assert.Equal(t, map[string]string{"Vessel Name": "NORNE", "Flag": "Norway"}, got.Payload)
	assert.Equal(t, 1, got.Attempts)
	assert.WithinDuration(t, now.Add(DefaultTTL), got.ExpiresAt, time.Second)
}

func TestGormRepositorySaveOverwrites(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, Record{MMSI: testMMSI, State: StateFailed, Error: "timeout", Attempts: 1, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, repo.Save(ctx, Record{MMSI: testMMSI, State: StateSucceeded, Payload: map[string]string{"Flag": "Norway"}, Attempts: 2, ExpiresAt: now.Add(time.Hour)}))

	got, err := repo.Load(ctx, testMMSI)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StateSucceeded, got.State)
	assert.Empty(t, got.Error)
	assert.Equal(t, 2, got.Attempts)
}

func TestGormRepositoryDeleteExpired(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, Record{MMSI: 257000001, State: StateFailed, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.Save(ctx, Record{MMSI: 257000002, State: StateSucceeded, ExpiresAt: now.Add(time.Hour)}))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, err := repo.Load(ctx, 257000001)
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := repo.Load(ctx, 257000002)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestCacheWarmsFromGormRepository(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, Record{
		MMSI:      testMMSI,
		State:     StateSucceeded,
		Payload:   map[string]string{"Flag": "Norway"},
		FetchedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	c := NewCache(Options{Repository: repo, FetchTimeout: time.Second})
	rec, err := c.GetOrFetch(ctx, testMMSI, func(ctx context.Context, mmsi ais.MMSI) (map[string]string, error) {
		t.Error("fetch must not run for a persisted record")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Norway", rec.Payload["Flag"])
}

type brokenRepository struct{}

func (brokenRepository) Load(ctx context.Context, mmsi ais.MMSI) (*Record, error) {
	return nil, errors.New("unavailable")
}

func (brokenRepository) Save(ctx context.Context, rec Record) error {
	return errors.New("unavailable")
}

func TestTieredRepository(t *testing.T) {
	ctx := context.Background()
	second := newMemoryRepository()
	require.NoError(t, second.Save(ctx, Record{MMSI: testMMSI, State: StateSucceeded}))

	tiered := Tiered{brokenRepository{}, second}

	rec, err := tiered.Load(ctx, testMMSI)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StateSucceeded, rec.State)

	rec, err = tiered.Load(ctx, 257000009)
	assert.Nil(t, rec)
	assert.EqualError(t, err, "unavailable")

	err = tiered.Save(ctx, Record{MMSI: 257000009, State: StateFailed})
	assert.EqualError(t, err, "unavailable")
	stored, _ := second.Load(ctx, 257000009)
	assert.NotNil(t, stored)
}
