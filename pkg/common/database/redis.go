package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/veritas-health/medoutcomes/pkg/common/config"
	"github.com/veritas-health/medoutcomes/pkg/common/logger"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns the shared client for the summary cache. A failed
// ping is logged but not fatal; the summary endpoint falls back to the
// outcome store when the cache is unreachable.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Load()
		addr := fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.WithError(err).WithField("addr", addr).
				Error("Summary cache unreachable, falling back to outcome store")
		} else {
			logger.Log.WithField("addr", addr).Info("Connected to summary cache")
		}
	})

	return redisClient
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
