package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/riskibarqy/live-match/internal/domain/match"
	"github.com/riskibarqy/live-match/internal/platform/events"
	"github.com/riskibarqy/live-match/internal/platform/id"
	"github.com/riskibarqy/live-match/internal/platform/lock"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
)

type UpdateStatus string

const (
	UpdateStatusSuccess  UpdateStatus = "success"
	UpdateStatusRetry    UpdateStatus = "retry"
	UpdateStatusRejected UpdateStatus = "rejected"
)

// UpdateResult is the outcome of one UpdateMatch call. FieldsUpdated holds
// business column names only, never provenance columns.
type UpdateResult struct {
	Status        UpdateStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	FieldsUpdated []string     `json:"fields_updated,omitempty"`
}

func rejected(err error) UpdateResult {
	return UpdateResult{Status: UpdateStatusRejected, Reason: err.Error()}
}

// LockManager is the subset of *lock.Manager the orchestrator depends on.
type LockManager interface {
	AcquireLock(ctx context.Context, key, holder string, ttl time.Duration) bool
	ReleaseLockOwned(ctx context.Context, key, holder string) bool
	HealthCheck(ctx context.Context) bool
	Mode() lock.Mode
}

type MatchOrchestratorConfig struct {
	LockTTL time.Duration
	Rules   match.RuleSet
}

type HealthReport struct {
	Running     bool      `json:"running"`
	LockMode    lock.Mode `json:"lock_mode"`
	LockHealthy bool      `json:"lock_healthy"`
}

// MatchOrchestrator is the only writer of match state. Every producer goes
// through UpdateMatch, which serialises writes per match and lets the
// resolver decide which proposed values survive.
type MatchOrchestrator struct {
	repo      match.Repository
	locks     LockManager
	publisher events.Publisher
	ids       id.Generator
	cfg       MatchOrchestratorConfig
	logger    *logging.Logger
	now       func() time.Time

	running atomic.Bool
	stopped atomic.Bool
}

func NewMatchOrchestrator(
	repo match.Repository,
	locks LockManager,
	publisher events.Publisher,
	ids id.Generator,
	cfg MatchOrchestratorConfig,
	logger *logging.Logger,
) *MatchOrchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = lock.DefaultTTL
	}
	if cfg.Rules == nil {
		cfg.Rules = match.DefaultRules()
	}

	return &MatchOrchestrator{
		repo:      repo,
		locks:     locks,
		publisher: publisher,
		ids:       ids,
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		now:       time.Now,
	}
}

// LockKey is the per-match lock name.
func LockKey(matchID string) string {
	return "lock:match:" + matchID
}

// Start probes the lock backend so the initial mode is known before traffic arrives.
func (s *MatchOrchestrator) Start(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrShutdown
	}
	healthy := s.locks.HealthCheck(ctx)
	s.running.Store(true)
	s.logger.InfoContext(ctx, "match orchestrator started", "lock_mode", s.locks.Mode(), "lock_healthy", healthy)
	return nil
}

// Shutdown makes later UpdateMatch calls return rejected. In-flight calls finish normally.
func (s *MatchOrchestrator) Shutdown(ctx context.Context) error {
	s.stopped.Store(true)
	s.running.Store(false)
	s.logger.InfoContext(ctx, "match orchestrator stopped")
	return nil
}

func (s *MatchOrchestrator) Health(ctx context.Context) HealthReport {
	healthy := s.locks.HealthCheck(ctx)
	return HealthReport{
		Running:     s.running.Load(),
		LockMode:    s.locks.Mode(),
		LockHealthy: healthy,
	}
}

// UpdateMatch applies a batch of proposed field writes. It never returns an
// error: lock contention becomes retry and every failure becomes rejected.
func (s *MatchOrchestrator) UpdateMatch(ctx context.Context, matchID string, updates []match.FieldUpdate, sourceLabel string) (result UpdateResult) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchOrchestrator.UpdateMatch",
		attribute.String("match.id", matchID),
		attribute.String("match.source", sourceLabel),
		attribute.Int("match.updates", len(updates)),
	)
	defer func() {
		recordUpdateResult(span, result)
		span.End()
	}()

	if s.stopped.Load() {
		return rejected(ErrShutdown)
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return rejected(fmt.Errorf("%w: match id is required", ErrInvalidInput))
	}

	key := LockKey(matchID)
	holder := s.holderID(sourceLabel)
	if !s.locks.AcquireLock(ctx, key, holder, s.cfg.LockTTL) {
		s.logger.InfoContext(ctx, "match update deferred, lock busy", "match_id", matchID, "source", sourceLabel)
		s.publish(ctx, events.Event{
			Name:    events.MatchUpdateRetry,
			MatchID: matchID,
			Source:  sourceLabel,
			Payload: map[string]any{"updates": updatesPayload(updates)},
		})
		return UpdateResult{Status: UpdateStatusRetry, Reason: ErrLockBusy.Error()}
	}

	var pc panics.Catcher
	pc.Try(func() {
		result = s.applyLocked(ctx, matchID, updates, sourceLabel)
	})
	if r := pc.Recovered(); r != nil {
		s.logger.ErrorContext(ctx, "match update panicked", "match_id", matchID, "source", sourceLabel, "panic", fmt.Sprint(r.Value))
		result = rejected(r.AsError())
	}

	// Release must run even when the caller's context is already cancelled.
	s.locks.ReleaseLockOwned(context.WithoutCancel(ctx), key, holder)
	return result
}

func (s *MatchOrchestrator) applyLocked(ctx context.Context, matchID string, updates []match.FieldUpdate, sourceLabel string) UpdateResult {
	current, err := s.repo.FetchState(ctx, matchID)
	if err != nil {
		if errors.Is(err, match.ErrNotFound) {
			s.logger.WarnContext(ctx, "match update for unknown match", "match_id", matchID, "source", sourceLabel)
			return rejected(ErrNotFound)
		}
		s.logger.ErrorContext(ctx, "fetch match state failed", "match_id", matchID, "error", err)
		return rejected(err)
	}

	resolution := match.ResolveDetailed(current, updates, s.cfg.Rules)
	for _, d := range resolution.Discarded {
		s.logger.DebugContext(ctx, "field update discarded",
			"match_id", matchID,
			"field", d.Update.Field.String(),
			"source", d.Update.Source,
			"reason", d.Reason,
		)
	}
	if len(resolution.Changes) == 0 {
		return rejected(ErrNoEffectiveChange)
	}

	if err := s.repo.Persist(ctx, matchID, resolution.Changes); err != nil {
		s.logger.ErrorContext(ctx, "persist match state failed", "match_id", matchID, "error", err)
		return rejected(err)
	}

	names := resolution.Changes.Names()
	s.publish(ctx, events.Event{
		Name:    events.MatchUpdated,
		MatchID: matchID,
		Source:  sourceLabel,
		Fields:  names,
		Payload: changesPayload(resolution.Changes),
	})
	s.logger.InfoContext(ctx, "match updated",
		"match_id", matchID,
		"source", sourceLabel,
		"fields", names,
		"discarded", len(resolution.Discarded),
	)

	return UpdateResult{Status: UpdateStatusSuccess, FieldsUpdated: names}
}

// CalculateMinute returns a ready-to-submit computed minute, or nil when the
// phase has no running clock.
func (s *MatchOrchestrator) CalculateMinute(matchID string, in match.MinuteInput) *match.FieldUpdate {
	now := s.now().Unix()
	minute, ok := match.CalculateMinute(in, now)
	if !ok {
		return nil
	}
	s.logger.Debug("minute calculated", "match_id", matchID, "status", in.Status, "minute", minute)
	return &match.FieldUpdate{
		Field:     match.FieldMinute,
		Value:     match.IntValue(minute),
		Source:    match.SourceComputed,
		Timestamp: now,
	}
}

func (s *MatchOrchestrator) holderID(sourceLabel string) string {
	v, err := s.ids.NewID()
	if err != nil {
		return fmt.Sprintf("%s-%d", sourceLabel, s.now().UnixNano())
	}
	return v
}

func (s *MatchOrchestrator) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, evt)
}

func valuePayload(v match.Value) any {
	switch {
	case v.IsNull():
		return nil
	case v.Text != "":
		return v.Text
	default:
		return v.Int
	}
}

func changesPayload(changes match.ChangeSet) map[string]any {
	values := make(map[string]any, len(changes))
	for _, field := range changes.Fields() {
		values[field.String()] = valuePayload(changes[field].Value)
	}
	return map[string]any{"values": values}
}

func updatesPayload(updates []match.FieldUpdate) []map[string]any {
	out := make([]map[string]any, 0, len(updates))
	for _, u := range updates {
		out = append(out, map[string]any{
			"field":     u.Field.String(),
			"value":     valuePayload(u.Value),
			"source":    string(u.Source),
			"priority":  u.Priority,
			"timestamp": u.Timestamp,
		})
	}
	return out
}
