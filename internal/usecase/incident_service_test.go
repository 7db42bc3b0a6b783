package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/live-match/internal/domain/incident"
	dedupcache "github.com/riskibarqy/live-match/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/live-match/internal/infrastructure/repository/memory"
	incidentmock "github.com/riskibarqy/live-match/internal/mocks/domain/incident"
	"github.com/riskibarqy/live-match/internal/platform/cache"
	"github.com/riskibarqy/live-match/internal/platform/events"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/stretchr/testify/mock"
)

func intPtr(v int) *int {
	return &v
}

func sampleIncidents() []incident.Incident {
	return []incident.Incident{
		{Type: incident.TypeGoal, Time: 12, Position: incident.PositionHome, PlayerID: "p10", HomeScore: intPtr(1), AwayScore: intPtr(0)},
		{Type: incident.TypeYellowCard, Time: 30, Position: incident.PositionAway, PlayerID: "p4"},
		{Type: incident.TypeSubstitution, Time: 60, Position: incident.PositionHome, InPlayerID: "p15", OutPlayerID: "p9"},
		{Type: incident.TypeCorner, Time: 61, Position: incident.PositionAway},
	}
}

func TestIncidentService_ProcessIncidentsIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := memory.NewIncidentRepository()
	publisher := &recordingPublisher{}
	svc := NewIncidentService(ledger, dedupcache.NewDedupCache(cache.NewStore(time.Hour)), publisher, IncidentServiceConfig{}, logging.NewNop())

	first := svc.ProcessIncidents(ctx, "m1", sampleIncidents(), "push")
	if first.Added != 4 || first.Skipped != 0 || first.Errors != 0 {
		t.Fatalf("unexpected first result %+v", first)
	}

	second := svc.ProcessIncidents(ctx, "m1", sampleIncidents(), "push")
	if second.Added != 0 || second.Skipped != 4 || second.Errors != 0 {
		t.Fatalf("unexpected second result %+v", second)
	}

	rows, err := ledger.ListByMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("list incidents: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("unexpected ledger size: got=%d want=4", len(rows))
	}
	if rows[0].Source != "push" || rows[0].MatchID != "m1" {
		t.Fatalf("expected match id and source to be stamped, got %+v", rows[0])
	}

	if got := len(publisher.named(events.IncidentAdded)); got != 4 {
		t.Fatalf("unexpected incident:added count: got=%d want=4", got)
	}
	if got := len(publisher.named(events.IncidentGoal)); got != 1 {
		t.Fatalf("unexpected incident:goal count: got=%d want=1", got)
	}
	cards := publisher.named(events.IncidentCard)
	if len(cards) != 1 || cards[0].Payload["color"] != "yellow" {
		t.Fatalf("unexpected card events %+v", cards)
	}
	subs := publisher.named(events.IncidentSubstitution)
	if len(subs) != 1 || subs[0].Payload["in_player_id"] != "p15" || subs[0].Payload["out_player_id"] != "p9" {
		t.Fatalf("unexpected substitution events %+v", subs)
	}
}

func TestIncidentService_DuplicateWithinBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := memory.NewIncidentRepository()
	svc := NewIncidentService(ledger, nil, nil, IncidentServiceConfig{}, logging.NewNop())

	goal := incident.Incident{Type: incident.TypeGoal, Time: 44, Position: incident.PositionAway}
	res := svc.ProcessIncidents(ctx, "m1", []incident.Incident{goal, goal}, "api")
	if res.Added != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIncidentService_CacheUnavailableFallsBackToInsertUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := memory.NewIncidentRepository()
	dedup := incidentmock.NewDedupCache(t)
	svc := NewIncidentService(ledger, dedup, nil, IncidentServiceConfig{}, logging.NewNop())

	dedup.
		On("Seen", mock.Anything, "m1:1:12:1").
		Return(false, errors.New("redis: connection pool timeout")).
		Once()

	res := svc.ProcessIncidents(ctx, "m1", sampleIncidents(), "push")
	if res.Added != 4 || res.Errors != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIncidentService_CacheHitSkipsLedgerUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := incidentmock.NewLedger(t)
	dedup := incidentmock.NewDedupCache(t)
	svc := NewIncidentService(ledger, dedup, nil, IncidentServiceConfig{CacheTTL: time.Hour}, logging.NewNop())

	dedup.
		On("Seen", mock.Anything, "m1:1:12:1").
		Return(true, nil).
		Once()

	res := svc.ProcessIncidents(ctx, "m1", sampleIncidents()[:1], "push")
	if res.Skipped != 1 || res.Added != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIncidentService_ConflictWarmsCacheUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := incidentmock.NewLedger(t)
	dedup := incidentmock.NewDedupCache(t)
	svc := NewIncidentService(ledger, dedup, nil, IncidentServiceConfig{CacheTTL: time.Hour}, logging.NewNop())

	dedup.
		On("Seen", mock.Anything, "m1:1:12:1").
		Return(false, nil).
		Once()
	ledger.
		On("Insert", mock.Anything, mock.MatchedBy(func(i incident.Incident) bool { return i.MatchID == "m1" && i.Type == incident.TypeGoal })).
		Return(incident.ErrDuplicate).
		Once()
	dedup.
		On("Remember", mock.Anything, "m1:1:12:1", time.Hour).
		Return(nil).
		Once()

	res := svc.ProcessIncidents(ctx, "m1", sampleIncidents()[:1], "push")
	if res.Skipped != 1 || res.Added != 0 || res.Errors != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIncidentService_StoreErrorsAreCountedUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := incidentmock.NewLedger(t)
	publisher := &recordingPublisher{}
	svc := NewIncidentService(ledger, nil, publisher, IncidentServiceConfig{}, logging.NewNop())

	items := sampleIncidents()[:2]
	ledger.
		On("Insert", mock.Anything, mock.MatchedBy(func(i incident.Incident) bool { return i.Type == incident.TypeGoal })).
		Return(errors.New("pq: could not serialize access")).
		Once()
	ledger.
		On("Insert", mock.Anything, mock.MatchedBy(func(i incident.Incident) bool { return i.Type == incident.TypeYellowCard })).
		Return(nil).
		Once()

	res := svc.ProcessIncidents(ctx, "m1", items, "push")
	if res.Errors != 1 || res.Added != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(publisher.named(events.IncidentGoal)) != 0 {
		t.Fatalf("failed insert must not publish")
	}
}

func TestIncidentService_InvalidIncidentsAreCounted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := memory.NewIncidentRepository()
	svc := NewIncidentService(ledger, nil, nil, IncidentServiceConfig{}, logging.NewNop())

	tests := []struct {
		name    string
		matchID string
		item    incident.Incident
	}{
		{name: "missing match id", matchID: "", item: incident.Incident{Type: incident.TypeGoal, Time: 1, Position: incident.PositionHome}},
		{name: "zero type", matchID: "m1", item: incident.Incident{Type: 0, Time: 1}},
		{name: "negative time", matchID: "m1", item: incident.Incident{Type: incident.TypeGoal, Time: -3}},
		{name: "unknown position", matchID: "m1", item: incident.Incident{Type: incident.TypeGoal, Time: 3, Position: 7}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := svc.ProcessIncidents(ctx, tc.matchID, []incident.Incident{tc.item}, "api")
			if res.Errors != 1 || res.Added != 0 {
				t.Fatalf("unexpected result %+v", res)
			}
		})
	}
}
