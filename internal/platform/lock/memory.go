package lock

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/live-match/internal/platform/cache"
)

var errNoBackend = errors.New("lock backend not configured")

// MemoryBackend keeps locks in process. It serialises writers of a single node.
type MemoryBackend struct {
	store *cache.Store
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{store: cache.NewStore(DefaultTTL)}
}

func (b *MemoryBackend) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return b.store.SetIfAbsent(ctx, key, value, ttl), nil
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := b.store.Get(ctx, key)
	return v, ok, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) (bool, error) {
	return b.store.Delete(ctx, key), nil
}

func (b *MemoryBackend) DeleteIfValue(ctx context.Context, key, value string) (bool, error) {
	return b.store.CompareAndDelete(ctx, key, value), nil
}

func (b *MemoryBackend) Ping(context.Context) error {
	b.store.Purge()
	return nil
}
