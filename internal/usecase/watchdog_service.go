package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/live-match/internal/domain/match"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

// WatchdogSourceLabel tags updates submitted by the reconciliation loop.
const WatchdogSourceLabel = "watchdog"

// MatchUpdater is the façade surface the watchdog drives.
type MatchUpdater interface {
	UpdateMatch(ctx context.Context, matchID string, updates []match.FieldUpdate, sourceLabel string) UpdateResult
	CalculateMinute(matchID string, in match.MinuteInput) *match.FieldUpdate
}

type WatchdogConfig struct {
	Interval        time.Duration
	MaxLiveDuration time.Duration
	Workers         int
}

func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		Interval:        30 * time.Second,
		MaxLiveDuration: 4 * time.Hour,
		Workers:         8,
	}
}

type WatchdogResult struct {
	Scanned  int `json:"scanned"`
	Finished int `json:"finished"`
	Updated  int `json:"updated"`
	Retried  int `json:"retried"`
	Rejected int `json:"rejected"`
	Idle     int `json:"idle"`
}

type taskPool interface {
	Submit(task func()) error
	Release()
}

func newAntsPool(size int) (taskPool, error) {
	return ants.NewPool(size)
}

// WatchdogService keeps live matches moving when producers go quiet: it
// refreshes the computed minute and force-finishes matches stuck live.
type WatchdogService struct {
	repo    match.Repository
	updater MatchUpdater
	cfg     WatchdogConfig
	logger  *logging.Logger
	now     func() time.Time
	newPool func(size int) (taskPool, error)
}

func NewWatchdogService(repo match.Repository, updater MatchUpdater, cfg WatchdogConfig, logger *logging.Logger) *WatchdogService {
	if logger == nil {
		logger = logging.Default()
	}
	defaults := DefaultWatchdogConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.MaxLiveDuration <= 0 {
		cfg.MaxLiveDuration = defaults.MaxLiveDuration
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}

	return &WatchdogService{
		repo:    repo,
		updater: updater,
		cfg:     cfg,
		logger:  logger.Named("watchdog"),
		now:     time.Now,
		newPool: newAntsPool,
	}
}

// Run reconciles on every tick until ctx is cancelled.
func (s *WatchdogService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "watchdog started", "interval", s.cfg.Interval, "max_live_duration", s.cfg.MaxLiveDuration)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watchdog stopped")
			return
		case <-ticker.C:
			if _, err := s.Reconcile(ctx); err != nil {
				s.logger.ErrorContext(ctx, "watchdog reconcile failed", "error", err)
			}
		}
	}
}

func (s *WatchdogService) Reconcile(ctx context.Context) (WatchdogResult, error) {
	ctx, span := startJobSpan(ctx, "usecase.WatchdogService.Reconcile")
	defer span.End()

	records, err := s.repo.ListLive(ctx)
	if err != nil {
		return WatchdogResult{}, fmt.Errorf("%w: list live matches: %v", ErrDependencyUnavailable, err)
	}
	span.SetAttributes(attribute.Int("watchdog.live_matches", len(records)))
	if len(records) == 0 {
		return WatchdogResult{}, nil
	}

	pool, err := s.newPool(s.cfg.Workers)
	if err != nil {
		return WatchdogResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		finished atomic.Int32
		updated  atomic.Int32
		retried  atomic.Int32
		refused  atomic.Int32
		idle     atomic.Int32
	)

	now := s.now()
	var workers sync.WaitGroup
	for _, record := range records {
		record := record
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			updates, stuck := s.plan(record, now)
			if len(updates) == 0 {
				idle.Add(1)
				return
			}
			res := s.updater.UpdateMatch(ctx, record.ID, updates, WatchdogSourceLabel)
			switch res.Status {
			case UpdateStatusSuccess:
				if stuck {
					finished.Add(1)
				} else {
					updated.Add(1)
				}
			case UpdateStatusRetry:
				retried.Add(1)
			default:
				refused.Add(1)
			}
		}); err != nil {
			workers.Done()
			// Tasks already submitted still hold ctx and the updater.
			workers.Wait()
			return WatchdogResult{}, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}
	workers.Wait()

	result := WatchdogResult{
		Scanned:  len(records),
		Finished: int(finished.Load()),
		Updated:  int(updated.Load()),
		Retried:  int(retried.Load()),
		Rejected: int(refused.Load()),
		Idle:     int(idle.Load()),
	}
	s.logger.InfoContext(ctx, "watchdog reconciled",
		"scanned", result.Scanned,
		"finished", result.Finished,
		"updated", result.Updated,
		"retried", result.Retried,
		"rejected", result.Rejected,
	)
	return result, nil
}

// plan returns the updates for one live record and whether it is being force-finished.
func (s *WatchdogService) plan(record match.Record, now time.Time) ([]match.FieldUpdate, bool) {
	if record.MatchTime > 0 && now.Sub(time.Unix(record.MatchTime, 0)) > s.cfg.MaxLiveDuration {
		s.logger.Warn("match stuck live, forcing finish",
			"match_id", record.ID,
			"status", record.CurrentStatus(),
			"match_time", record.MatchTime,
		)
		return []match.FieldUpdate{{
			Field:     match.FieldStatus,
			Value:     match.StatusValue(match.StatusFinished),
			Source:    match.SourceWatchdog,
			Timestamp: now.Unix(),
		}}, true
	}

	minute := s.updater.CalculateMinute(record.ID, match.MinuteInputFromRecord(record))
	if minute == nil {
		return nil, false
	}
	return []match.FieldUpdate{*minute}, false
}
