package cache

import (
	"context"
	"time"

	basecache "github.com/riskibarqy/live-match/internal/platform/cache"
)

const dedupKeyPrefix = "incident:seen:"

// DedupCache is the single-node incident dedup cache used when redis is disabled.
type DedupCache struct {
	store *basecache.Store
}

func NewDedupCache(store *basecache.Store) *DedupCache {
	return &DedupCache{store: store}
}

func (c *DedupCache) Seen(ctx context.Context, key string) (bool, error) {
	_, ok := c.store.Get(ctx, dedupKeyPrefix+key)
	return ok, nil
}

func (c *DedupCache) Remember(ctx context.Context, key string, ttl time.Duration) error {
	c.store.Set(ctx, dedupKeyPrefix+key, "1", ttl)
	return nil
}
