package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/riskibarqy/live-match/internal/domain/incident"
	"github.com/riskibarqy/live-match/internal/domain/match"
)

func TestBuildPersistQuery(t *testing.T) {
	changes := match.ChangeSet{
		match.FieldMinute: {
			Field:      match.FieldMinute,
			Value:      match.Null(),
			Provenance: match.Provenance{Source: match.SourceComputed, Timestamp: 1700},
		},
		match.FieldStatus: {
			Field:      match.FieldStatus,
			Value:      match.StatusValue(match.StatusFinished),
			Provenance: match.Provenance{Source: match.SourcePush, Timestamp: 1700},
		},
		match.FieldEnded: {
			Field: match.FieldEnded,
			Value: match.BoolValue(true),
		},
	}

	query, args, err := buildPersistQuery("m1", changes)
	if err != nil {
		t.Fatalf("build persist query: %v", err)
	}

	wantQuery := "UPDATE live_matches SET " +
		"status = $1, status_source = $2, status_timestamp = $3, " +
		"minute = $4, minute_source = $5, minute_timestamp = $6, " +
		"ended = $7, updated_at = NOW() WHERE match_id = $8"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}

	want := []any{"FINISHED", "push", int64(1700), nil, "computed", int64(1700), true, "m1"}
	if fmt.Sprint(args) != fmt.Sprint(want) {
		t.Fatalf("unexpected args:\nwant: %v\ngot:  %v", want, args)
	}
}

func TestBuildPersistQuery_OmitsUnchangedColumns(t *testing.T) {
	changes := match.ChangeSet{
		match.FieldHomeScore: {
			Field:      match.FieldHomeScore,
			Value:      match.IntValue(2),
			Provenance: match.Provenance{Source: match.SourceAPI},
		},
	}

	query, args, err := buildPersistQuery("m1", changes)
	if err != nil {
		t.Fatalf("build persist query: %v", err)
	}
	if strings.Contains(query, "status") || strings.Contains(query, "minute") {
		t.Fatalf("query touches unchanged columns: %s", query)
	}
	if args[2] != nil {
		t.Fatalf("expected absent timestamp to be written as NULL, got %v", args[2])
	}
}

func TestBuildInsertIncidentQuery(t *testing.T) {
	home := 1
	query, args, err := buildInsertIncidentQuery(incident.Incident{
		MatchID:   "m1",
		Type:      incident.TypeGoal,
		Time:      23,
		Position:  incident.PositionHome,
		HomeScore: &home,
	})
	if err != nil {
		t.Fatalf("build insert incident query: %v", err)
	}

	if !strings.HasPrefix(query, "INSERT INTO match_incidents (match_id, type, time, position, ") {
		t.Fatalf("unexpected insert prefix: %s", query)
	}
	if !strings.HasSuffix(query, "ON CONFLICT (match_id, type, time, position) DO NOTHING RETURNING match_id") {
		t.Fatalf("expected idempotent insert, got %s", query)
	}
	if len(args) != len(incidentColumns) {
		t.Fatalf("expected %d args, got %d", len(incidentColumns), len(args))
	}
	if args[0] != "m1" || args[1] != 1 || args[2] != 23 || args[3] != 1 {
		t.Fatalf("unexpected key args: %v", args[:4])
	}
}

func TestMatchTableModelToDomain(t *testing.T) {
	row := matchTableModel{
		MatchID:         "m1",
		Status:          sql.NullString{String: "second_half", Valid: true},
		StatusSource:    sql.NullString{String: "push", Valid: true},
		StatusTimestamp: sql.NullInt64{Int64: 1000, Valid: true},
		HomeScore:       sql.NullInt64{Int64: 2, Valid: true},
		HomeScoreSource: sql.NullString{String: "api", Valid: true},
		MatchTime:       sql.NullInt64{Int64: 500, Valid: true},
	}

	got := row.toDomain()
	if got.CurrentStatus() != match.StatusSecondHalf {
		t.Fatalf("expected normalized status, got %q", got.CurrentStatus())
	}
	if got.Status.Provenance != (match.Provenance{Source: match.SourcePush, Timestamp: 1000}) {
		t.Fatalf("unexpected status provenance %+v", got.Status.Provenance)
	}
	if !got.HomeScore.Value.Equal(match.IntValue(2)) || got.HomeScore.Provenance.HasTimestamp() {
		t.Fatalf("unexpected home score %+v", got.HomeScore)
	}
	if !got.Minute.Value.IsNull() || got.Minute.Provenance.Source != "" {
		t.Fatalf("expected null minute without provenance, got %+v", got.Minute)
	}
	if got.MatchTime != 500 {
		t.Fatalf("unexpected match time %d", got.MatchTime)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Run("matches pq unique violation", func(t *testing.T) {
		err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
		if !isUniqueViolation(err) {
			t.Fatalf("expected true for unique violation")
		}
	})

	t.Run("ignores other pq errors", func(t *testing.T) {
		if isUniqueViolation(&pq.Error{Code: "42P01"}) {
			t.Fatalf("expected false for undefined table")
		}
	})

	t.Run("ignores plain errors", func(t *testing.T) {
		if isUniqueViolation(fakeErr("duplicate key")) {
			t.Fatalf("expected false for non-pq error")
		}
	})
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("scan: %w", sql.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to be not found")
	}
	if isNotFound(fakeErr("boom")) {
		t.Fatalf("expected false for unrelated error")
	}
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
