package redisstore

import (
	"context"
	"errors"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockBackend implements lock.Backend on redis SET NX PX.
type LockBackend struct {
	client redis.UniversalClient
}

func NewLockBackend(client redis.UniversalClient) *LockBackend {
	return &LockBackend{client: client}
}

func (b *LockBackend) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := b.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, crerr.Wrapf(err, "redis setnx %s", key)
	}
	return ok, nil
}

func (b *LockBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, crerr.Wrapf(err, "redis get %s", key)
	}
	return v, true, nil
}

func (b *LockBackend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Del(ctx, key).Result()
	if err != nil {
		return false, crerr.Wrapf(err, "redis del %s", key)
	}
	return n > 0, nil
}

// DeleteIfValue deletes key atomically only while it still holds value.
func (b *LockBackend) DeleteIfValue(ctx context.Context, key, value string) (bool, error) {
	n, err := releaseIfOwner.Run(ctx, b.client, []string{key}, value).Int64()
	if err != nil {
		return false, crerr.Wrapf(err, "redis release %s", key)
	}
	return n > 0, nil
}

func (b *LockBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return crerr.Wrap(err, "redis ping")
	}
	return nil
}
