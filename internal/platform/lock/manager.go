// Package lock provides the advisory per-match write lock.
//
// The manager never fails a caller because the backend is unhealthy: when the
// backend is missing, erroring or behind an open circuit, acquisition succeeds
// and the manager reports ModeDegradedNoLock until a later call succeeds.
package lock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/riskibarqy/live-match/internal/platform/resilience"
)

const DefaultTTL = 5 * time.Second

// Backend is a key/value store with set-if-absent-with-expiry semantics.
type Backend interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// CompareDeleter is implemented by backends that can delete a key atomically
// only while it still holds a given value.
type CompareDeleter interface {
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

type Mode string

const (
	ModeDistributed    Mode = "distributed"
	ModeDegradedNoLock Mode = "degraded_no_lock"
)

type Config struct {
	DefaultTTL       time.Duration
	OperationTimeout time.Duration
	CircuitBreaker   resilience.CircuitBreakerConfig
}

func DefaultConfig() Config {
	return Config{
		DefaultTTL:       DefaultTTL,
		OperationTimeout: time.Second,
		CircuitBreaker:   resilience.DefaultCircuitBreakerConfig(),
	}
}

type Manager struct {
	backend Backend
	cfg     Config
	breaker *resilience.CircuitBreaker
	probes  resilience.SingleFlight[bool]
	logger  *logging.Logger
	mode    atomic.Value
}

func NewManager(backend Backend, cfg Config, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = time.Second
	}
	logger = logger.Named("lock")

	m := &Manager{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
	}
	m.breaker = resilience.NewNamedCircuitBreaker("lock_backend", cfg.CircuitBreaker, func(name string, from, to resilience.CircuitState) {
		logger.Warn("lock backend circuit changed", "breaker", name, "from", from, "to", to)
	})

	initial := ModeDistributed
	if backend == nil {
		initial = ModeDegradedNoLock
	}
	m.mode.Store(initial)
	return m
}

func (m *Manager) Mode() Mode {
	return m.mode.Load().(Mode)
}

// AcquireLock reports whether the caller may proceed. False means another holder
// owns the key. Backend failures return true.
func (m *Manager) AcquireLock(ctx context.Context, key, holder string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}

	var acquired bool
	err := m.call(ctx, func(ctx context.Context, b Backend) error {
		ok, err := b.SetNX(ctx, key, holder, ttl)
		acquired = ok
		return err
	})
	if err != nil {
		m.logger.WarnContext(ctx, "lock acquire degraded", "key", key, "holder", holder, "error", err)
		return true
	}
	if !acquired {
		m.logger.DebugContext(ctx, "lock busy", "key", key, "holder", holder)
	}
	return acquired
}

// ReleaseLock deletes key unconditionally.
func (m *Manager) ReleaseLock(ctx context.Context, key string) bool {
	var released bool
	err := m.call(ctx, func(ctx context.Context, b Backend) error {
		ok, err := b.Delete(ctx, key)
		released = ok
		return err
	})
	if err != nil {
		m.logger.WarnContext(ctx, "lock release failed", "key", key, "error", err)
		return false
	}
	return released
}

// ReleaseLockOwned deletes key only while holder still owns it, so a writer
// that outlived its ttl cannot drop a lock taken by the next writer.
func (m *Manager) ReleaseLockOwned(ctx context.Context, key, holder string) bool {
	var released bool
	err := m.call(ctx, func(ctx context.Context, b Backend) error {
		if cd, ok := b.(CompareDeleter); ok {
			ok, err := cd.DeleteIfValue(ctx, key, holder)
			released = ok
			return err
		}

		current, found, err := b.Get(ctx, key)
		if err != nil || !found || current != holder {
			return err
		}
		ok, err := b.Delete(ctx, key)
		released = ok
		return err
	})
	if err != nil {
		m.logger.WarnContext(ctx, "lock release failed", "key", key, "holder", holder, "error", err)
		return false
	}
	return released
}

// HealthCheck pings the backend and refreshes Mode. Concurrent probes share one ping.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	healthy, _, _ := m.probes.Do("ping", func() (bool, error) {
		err := m.call(ctx, func(ctx context.Context, b Backend) error {
			return b.Ping(ctx)
		})
		if err != nil {
			m.logger.WarnContext(ctx, "lock backend unhealthy", "error", err)
			return false, nil
		}
		return true, nil
	})
	return healthy
}

func (m *Manager) call(ctx context.Context, fn func(context.Context, Backend) error) error {
	if m.backend == nil {
		m.setMode(ModeDegradedNoLock)
		return errNoBackend
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.breaker.Allow(); err != nil {
		m.setMode(ModeDegradedNoLock)
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, m.cfg.OperationTimeout)
	err := fn(opCtx, m.backend)
	cancel()

	switch {
	case err == nil:
		m.breaker.RecordSuccess()
		m.setMode(ModeDistributed)
		return nil
	case ctx.Err() != nil:
		// The caller went away; backend health is unknown.
		m.breaker.RecordAbandoned()
		return err
	default:
		m.breaker.RecordFailure()
		m.setMode(ModeDegradedNoLock)
		return err
	}
}

func (m *Manager) setMode(next Mode) {
	prev := m.Mode()
	if prev == next || !m.mode.CompareAndSwap(prev, next) {
		return
	}
	if next == ModeDegradedNoLock {
		m.logger.Warn("lock manager degraded, writes proceed without mutual exclusion")
		return
	}
	m.logger.Info("lock manager recovered distributed mode")
}
