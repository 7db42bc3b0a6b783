package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/live-match/internal/domain/match"
	"github.com/riskibarqy/live-match/internal/infrastructure/repository/memory"
	matchmock "github.com/riskibarqy/live-match/internal/mocks/domain/match"
	"github.com/riskibarqy/live-match/internal/platform/lock"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/stretchr/testify/mock"
)

func TestWatchdogService_Reconcile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, time.May, 2, 21, 0, 0, 0, time.UTC)
	kickoff := now.Add(-20 * time.Minute).Unix()
	status := func(s match.Status) match.TrackedValue {
		return tracked(match.StatusValue(s), match.SourcePush, kickoff)
	}

	repo := memory.NewMatchRepository(
		match.Record{ID: "running", Status: status(match.StatusFirstHalf), MatchTime: kickoff, FirstHalfKickoff: tracked(match.IntValue(kickoff), match.SourcePush, kickoff)},
		match.Record{ID: "stuck", Status: status(match.StatusSecondHalf), MatchTime: now.Add(-5 * time.Hour).Unix(), Minute: tracked(match.IntValue(90), match.SourceComputed, kickoff)},
		match.Record{ID: "break", Status: status(match.StatusHalfTime), MatchTime: now.Add(-50 * time.Minute).Unix()},
		match.Record{ID: "done", Status: status(match.StatusFinished), Ended: true},
	)
	orchestrator := newTestOrchestrator(repo, lock.NewMemoryBackend(), &recordingPublisher{})
	orchestrator.now = func() time.Time { return now }

	svc := NewWatchdogService(repo, orchestrator, WatchdogConfig{MaxLiveDuration: 4 * time.Hour, Workers: 2}, logging.NewNop())
	svc.now = func() time.Time { return now }

	res, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Scanned != 3 || res.Finished != 1 || res.Updated != 1 || res.Idle != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	running, _ := repo.FetchState(ctx, "running")
	if running.Minute.Value.Int != 20 || running.Minute.Provenance.Source != match.SourceComputed {
		t.Fatalf("unexpected running minute %+v", running.Minute)
	}

	stuck, _ := repo.FetchState(ctx, "stuck")
	if stuck.CurrentStatus() != match.StatusFinished || stuck.Status.Provenance.Source != match.SourceWatchdog {
		t.Fatalf("expected watchdog finish, got %+v", stuck.Status)
	}
	if !stuck.Ended || !stuck.Minute.Value.IsNull() {
		t.Fatalf("expected ended match without minute, got ended=%v minute=%+v", stuck.Ended, stuck.Minute)
	}

	again, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if again.Scanned != 2 {
		t.Fatalf("finished match must leave the live set, got %+v", again)
	}
}

func TestWatchdogService_ListErrorUsingMockery(t *testing.T) {
	t.Parallel()

	repo := matchmock.NewRepository(t)
	svc := NewWatchdogService(repo, nil, WatchdogConfig{}, logging.NewNop())

	repo.
		On("ListLive", mock.Anything).
		Return(nil, errors.New("pq: too many connections")).
		Once()

	_, err := svc.Reconcile(context.Background())
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestWatchdogService_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	repo := memory.NewMatchRepository()
	svc := NewWatchdogService(repo, nil, WatchdogConfig{Interval: 5 * time.Millisecond}, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("watchdog did not stop after cancel")
	}
}

type overloadAfterOnePool struct {
	submitted int
}

func (p *overloadAfterOnePool) Submit(task func()) error {
	p.submitted++
	if p.submitted > 1 {
		return ants.ErrPoolOverload
	}
	go task()
	return nil
}

func (p *overloadAfterOnePool) Release() {}

type slowUpdater struct {
	finished atomic.Int32
}

func (u *slowUpdater) UpdateMatch(context.Context, string, []match.FieldUpdate, string) UpdateResult {
	time.Sleep(30 * time.Millisecond)
	u.finished.Add(1)
	return UpdateResult{Status: UpdateStatusSuccess}
}

func (u *slowUpdater) CalculateMinute(string, match.MinuteInput) *match.FieldUpdate {
	return nil
}

func TestWatchdogService_SubmitFailureWaitsForRunningTasks(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.May, 2, 21, 0, 0, 0, time.UTC)
	stale := now.Add(-5 * time.Hour).Unix()
	status := tracked(match.StatusValue(match.StatusSecondHalf), match.SourcePush, stale)
	repo := memory.NewMatchRepository(
		match.Record{ID: "a", Status: status, MatchTime: stale},
		match.Record{ID: "b", Status: status, MatchTime: stale},
	)
	updater := &slowUpdater{}

	svc := NewWatchdogService(repo, updater, WatchdogConfig{MaxLiveDuration: 4 * time.Hour, Workers: 1}, logging.NewNop())
	svc.now = func() time.Time { return now }
	svc.newPool = func(int) (taskPool, error) { return &overloadAfterOnePool{}, nil }

	_, err := svc.Reconcile(context.Background())
	if !errors.Is(err, ants.ErrPoolOverload) {
		t.Fatalf("expected pool overload error, got %v", err)
	}
	if got := updater.finished.Load(); got != 1 {
		t.Fatalf("submitted task must finish before reconcile returns, finished=%d", got)
	}
}
