package redisstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	crerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/riskibarqy/live-match/internal/platform/logging"
)

type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	ConnectTries uint
}

func newClient(cfg Config) *redis.Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.ReadTimeout,
	})
}

// Connect builds a client and pings it with exponential backoff. When every
// attempt fails the client is still returned together with the error so the
// caller can run degraded and let the lock manager recover later.
func Connect(ctx context.Context, cfg Config, logger *logging.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	tries := cfg.ConnectTries
	if tries == 0 {
		tries = 5
	}

	client := newClient(cfg)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, client.Ping(ctx).Err()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "redis ping failed, retrying", "addr", cfg.Addr, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		return client, crerr.Wrapf(err, "connect redis addr=%s", cfg.Addr)
	}

	logger.InfoContext(ctx, "redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return client, nil
}
