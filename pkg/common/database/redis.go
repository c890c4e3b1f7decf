package database

import (
	"context"
	"fmt"
	"time"

	"github.com/aistrack/platform/pkg/common/config"
	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// OpenRedis builds a client and checks it with a ping. The client is returned
// even when the ping fails so callers may decide to continue degraded.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Error("Failed to connect to Redis")
		return client, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr(), err)
	}
	logger.WithField("addr", cfg.RedisAddr()).Info("Connected to Redis")
	return client, nil
}
