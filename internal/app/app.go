package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/riskibarqy/live-match/internal/config"
	"github.com/riskibarqy/live-match/internal/domain/incident"
	"github.com/riskibarqy/live-match/internal/domain/match"
	"github.com/riskibarqy/live-match/internal/infrastructure/eventsink"
	"github.com/riskibarqy/live-match/internal/infrastructure/pushstream"
	"github.com/riskibarqy/live-match/internal/infrastructure/redisstore"
	dedupcache "github.com/riskibarqy/live-match/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/live-match/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/live-match/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/live-match/internal/interfaces/httpapi"
	"github.com/riskibarqy/live-match/internal/platform/cache"
	"github.com/riskibarqy/live-match/internal/platform/events"
	"github.com/riskibarqy/live-match/internal/platform/id"
	"github.com/riskibarqy/live-match/internal/platform/lock"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/riskibarqy/live-match/internal/platform/resilience"
	"github.com/riskibarqy/live-match/internal/usecase"
)

// Runtime owns every long-lived component of the orchestrator process.
type Runtime struct {
	cfg    config.Config
	logger *logging.Logger

	db      *sqlx.DB
	redis   *redis.Client
	bus     *events.Bus
	sink    *eventsink.KafkaSink
	locks   *lock.Manager
	push    *pushstream.Consumer
	server  *http.Server
	cancel  context.CancelFunc
	workers sync.WaitGroup

	Orchestrator *usecase.MatchOrchestrator
	Incidents    *usecase.IncidentService
	Watchdog     *usecase.WatchdogService
}

// New assembles the runtime. Optional transports that cannot be reached at
// boot degrade instead of failing: redis falls back to the lock manager's
// degraded mode, everything else is reported as an error.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.Default()
	}
	rt := &Runtime{cfg: cfg, logger: logger}

	var (
		matches   match.Repository
		ledger    incident.Ledger
		lockStore lock.Backend
		dedup     incident.DedupCache
	)

	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory store, state is lost on restart")
		matches = memory.NewMatchRepository()
		ledger = memory.NewIncidentRepository()
	default:
		db, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		rt.db = db
		matches = postgres.NewMatchRepository(db)
		ledger = postgres.NewIncidentRepository(db)
	}

	if cfg.RedisEnabled {
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			ConnectTries: cfg.ConnectTries,
		}, logger)
		if err != nil {
			logger.Error("redis unreachable at boot, starting without distributed lock", "addr", cfg.RedisAddr, "error", err)
		}
		rt.redis = client
		lockStore = redisstore.NewLockBackend(client)
		dedup = redisstore.NewDedupCache(client)
	} else {
		lockStore = lock.NewMemoryBackend()
		dedup = dedupcache.NewDedupCache(cache.NewStore(cfg.IncidentCacheTTL))
	}

	rt.locks = lock.NewManager(lockStore, lock.Config{
		DefaultTTL:       cfg.LockTTL,
		OperationTimeout: cfg.LockOperationTimeout,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.LockCircuitEnabled,
			FailureThreshold: cfg.LockCircuitFailureCount,
			OpenTimeout:      cfg.LockCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.LockCircuitHalfOpenMaxReq,
		}.WithDefaults(),
	}, logger)

	bus, err := events.NewBus(cfg.EventWorkers, logger)
	if err != nil {
		rt.closeStores()
		return nil, fmt.Errorf("create event bus: %w", err)
	}
	rt.bus = bus
	if cfg.KafkaEnabled {
		rt.sink = eventsink.NewKafkaSink(eventsink.Config{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			WriteTimeout: cfg.KafkaWriteTimeout,
		}, logger)
		bus.SubscribeAll(rt.sink.Handle)
	}

	rt.Orchestrator = usecase.NewMatchOrchestrator(matches, rt.locks, bus, id.NewUUIDGenerator(), usecase.MatchOrchestratorConfig{
		LockTTL: cfg.LockTTL,
	}, logger)
	rt.Incidents = usecase.NewIncidentService(ledger, dedup, bus, usecase.IncidentServiceConfig{
		CacheTTL: cfg.IncidentCacheTTL,
	}, logger)
	rt.Watchdog = usecase.NewWatchdogService(matches, rt.Orchestrator, usecase.WatchdogConfig{
		Interval:        cfg.WatchdogInterval,
		MaxLiveDuration: cfg.WatchdogMaxLiveDuration,
		Workers:         cfg.WatchdogWorkers,
	}, logger)

	var push httpapi.PushStatus
	if cfg.MQTTEnabled {
		rt.push = pushstream.NewConsumer(pushstream.Config{
			Broker:       cfg.MQTTBroker,
			Username:     cfg.MQTTUsername,
			Password:     cfg.MQTTPassword,
			Topic:        cfg.MQTTTopic,
			ClientID:     cfg.MQTTClientID,
			ConnectTries: cfg.ConnectTries,
		}, newBatchDispatcher(rt.Orchestrator, rt.Incidents, logger).Dispatch, logger)
		push = rt.push
	}

	handler := httpapi.NewHandler(rt.Orchestrator, push, cfg.ServiceName, cfg.ServiceVersion, logger)
	rt.server = &http.Server{
		Addr:              cfg.HealthAddr,
		Handler:           httpapi.NewRouter(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return rt, nil
}

// Start launches background loops. It returns once every component is running.
func (r *Runtime) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel

	if err := r.Orchestrator.Start(ctx); err != nil {
		return err
	}

	if r.push != nil {
		if err := r.push.Start(ctx); err != nil {
			return fmt.Errorf("start push stream: %w", err)
		}
	}

	if r.cfg.WatchdogEnabled {
		r.workers.Add(1)
		go func() {
			defer r.workers.Done()
			r.Watchdog.Run(runCtx)
		}()
	}

	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		r.logger.Info("health server starting", "addr", r.cfg.HealthAddr)
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("health server failed", "error", err)
		}
	}()

	return nil
}

// Shutdown stops intake first, then drains the bus, then closes stores.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.push != nil {
		r.push.Stop()
	}
	if err := r.Orchestrator.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.cancel != nil {
		r.cancel()
	}
	if err := r.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown health server: %w", err))
	}
	r.workers.Wait()

	if err := r.bus.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}
	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka sink: %w", err))
		}
	}
	errs = append(errs, r.closeStores()...)

	r.logger.Info("runtime stopped")
	return errors.Join(errs...)
}

func (r *Runtime) closeStores() []error {
	var errs []error
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		}
	}
	return errs
}
