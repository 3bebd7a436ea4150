package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veritas-health/medoutcomes/pkg/common/models"
)

const summaryCacheKey = "medoutcomes:summary:latest"

var ErrSummaryNotCached = errors.New("summary not cached")

// SummaryCache keeps the latest run summary in Redis so the service's
// summary endpoint does not hit Postgres on every poll.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

func (c *SummaryCache) Set(ctx context.Context, summary models.DatasetSummary) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryCacheKey, encoded, c.ttl).Err()
}

func (c *SummaryCache) Get(ctx context.Context) (models.DatasetSummary, error) {
	encoded, err := c.client.Get(ctx, summaryCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.DatasetSummary{}, ErrSummaryNotCached
	}
	if err != nil {
		return models.DatasetSummary{}, err
	}
	var summary models.DatasetSummary
	if err := json.Unmarshal(encoded, &summary); err != nil {
		return models.DatasetSummary{}, err
	}
	return summary, nil
}
