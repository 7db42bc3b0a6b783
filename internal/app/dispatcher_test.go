package app

import (
	"context"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/riskibarqy/live-match/internal/domain/incident"
	"github.com/riskibarqy/live-match/internal/domain/match"
	"github.com/riskibarqy/live-match/internal/infrastructure/pushstream"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/riskibarqy/live-match/internal/usecase"
)

type scriptedUpdater struct {
	mu      sync.Mutex
	results []usecase.UpdateResult
	calls   int
	sources []string
}

func (u *scriptedUpdater) UpdateMatch(_ context.Context, _ string, _ []match.FieldUpdate, sourceLabel string) usecase.UpdateResult {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sources = append(u.sources, sourceLabel)
	res := u.results[min(u.calls, len(u.results)-1)]
	u.calls++
	return res
}

type countingIncidents struct {
	calls int
	items int
}

func (c *countingIncidents) ProcessIncidents(_ context.Context, _ string, items []incident.Incident, _ string) usecase.IncidentResult {
	c.calls++
	c.items += len(items)
	return usecase.IncidentResult{Added: len(items)}
}

func newTestDispatcher(updater matchUpdater, incidents incidentProcessor) *batchDispatcher {
	d := newBatchDispatcher(updater, incidents, logging.NewNop())
	d.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return d
}

func sampleBatch() pushstream.Batch {
	return pushstream.Batch{
		MatchID: "m1",
		Updates: []match.FieldUpdate{{
			Field:     match.FieldHomeScore,
			Value:     match.IntValue(1),
			Source:    match.SourcePush,
			Timestamp: 1_700_000_000,
		}},
		Incidents: []incident.Incident{{Type: incident.TypeGoal, Time: 12, Position: incident.PositionHome}},
	}
}

func TestBatchDispatcher_RetriesWhileLocked(t *testing.T) {
	t.Parallel()

	updater := &scriptedUpdater{results: []usecase.UpdateResult{
		{Status: usecase.UpdateStatusRetry},
		{Status: usecase.UpdateStatusRetry},
		{Status: usecase.UpdateStatusSuccess, FieldsUpdated: []string{"home_score"}},
	}}
	incidents := &countingIncidents{}

	newTestDispatcher(updater, incidents).Dispatch(context.Background(), sampleBatch())

	if updater.calls != 3 {
		t.Fatalf("unexpected update attempts: got=%d want=3", updater.calls)
	}
	if updater.sources[0] != pushstream.SourceLabel {
		t.Fatalf("unexpected source label %q", updater.sources[0])
	}
	if incidents.calls != 1 || incidents.items != 1 {
		t.Fatalf("unexpected incident processing calls=%d items=%d", incidents.calls, incidents.items)
	}
}

func TestBatchDispatcher_GivesUpAfterMaxTries(t *testing.T) {
	t.Parallel()

	updater := &scriptedUpdater{results: []usecase.UpdateResult{{Status: usecase.UpdateStatusRetry}}}
	incidents := &countingIncidents{}

	newTestDispatcher(updater, incidents).Dispatch(context.Background(), sampleBatch())

	if updater.calls != int(maxLockRetries) {
		t.Fatalf("unexpected update attempts: got=%d want=%d", updater.calls, maxLockRetries)
	}
	if incidents.calls != 1 {
		t.Fatalf("incidents must still be recorded when the update gives up")
	}
}

func TestBatchDispatcher_SkipsEmptyParts(t *testing.T) {
	t.Parallel()

	updater := &scriptedUpdater{results: []usecase.UpdateResult{{Status: usecase.UpdateStatusSuccess}}}
	incidents := &countingIncidents{}

	newTestDispatcher(updater, incidents).Dispatch(context.Background(), pushstream.Batch{MatchID: "m1"})

	if updater.calls != 0 || incidents.calls != 0 {
		t.Fatalf("empty batch must not reach services: updates=%d incidents=%d", updater.calls, incidents.calls)
	}
}
