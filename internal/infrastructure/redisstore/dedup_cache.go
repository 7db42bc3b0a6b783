package redisstore

import (
	"context"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "incident:seen:"

// DedupCache remembers incident natural keys across orchestrator replicas.
type DedupCache struct {
	client redis.UniversalClient
}

func NewDedupCache(client redis.UniversalClient) *DedupCache {
	return &DedupCache{client: client}
}

func (c *DedupCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, dedupKeyPrefix+key).Result()
	if err != nil {
		return false, crerr.Wrapf(err, "redis exists %s", key)
	}
	return n > 0, nil
}

func (c *DedupCache) Remember(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.SetNX(ctx, dedupKeyPrefix+key, "1", ttl).Err(); err != nil {
		return crerr.Wrapf(err, "redis remember %s", key)
	}
	return nil
}
