package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/live-match/internal/domain/match"
)

const matchTable = "live_matches"

type matchTableModel struct {
	MatchID string `db:"match_id"`

	Status          sql.NullString `db:"status"`
	StatusSource    sql.NullString `db:"status_source"`
	StatusTimestamp sql.NullInt64  `db:"status_timestamp"`

	HomeScore          sql.NullInt64  `db:"home_score_display"`
	HomeScoreSource    sql.NullString `db:"home_score_display_source"`
	HomeScoreTimestamp sql.NullInt64  `db:"home_score_display_timestamp"`

	AwayScore          sql.NullInt64  `db:"away_score_display"`
	AwayScoreSource    sql.NullString `db:"away_score_display_source"`
	AwayScoreTimestamp sql.NullInt64  `db:"away_score_display_timestamp"`

	Minute          sql.NullInt64  `db:"minute"`
	MinuteSource    sql.NullString `db:"minute_source"`
	MinuteTimestamp sql.NullInt64  `db:"minute_timestamp"`

	FirstHalfKickoff          sql.NullInt64  `db:"first_half_kickoff_ts"`
	FirstHalfKickoffSource    sql.NullString `db:"first_half_kickoff_ts_source"`
	FirstHalfKickoffTimestamp sql.NullInt64  `db:"first_half_kickoff_ts_timestamp"`

	SecondHalfKickoff          sql.NullInt64  `db:"second_half_kickoff_ts"`
	SecondHalfKickoffSource    sql.NullString `db:"second_half_kickoff_ts_source"`
	SecondHalfKickoffTimestamp sql.NullInt64  `db:"second_half_kickoff_ts_timestamp"`

	OvertimeKickoff          sql.NullInt64  `db:"overtime_kickoff_ts"`
	OvertimeKickoffSource    sql.NullString `db:"overtime_kickoff_ts_source"`
	OvertimeKickoffTimestamp sql.NullInt64  `db:"overtime_kickoff_ts_timestamp"`

	ProviderUpdateTime          sql.NullInt64  `db:"provider_update_time"`
	ProviderUpdateTimeSource    sql.NullString `db:"provider_update_time_source"`
	ProviderUpdateTimeTimestamp sql.NullInt64  `db:"provider_update_time_timestamp"`

	LastEventTime          sql.NullInt64  `db:"last_event_ts"`
	LastEventTimeSource    sql.NullString `db:"last_event_ts_source"`
	LastEventTimeTimestamp sql.NullInt64  `db:"last_event_ts_timestamp"`

	Ended bool `db:"ended"`

	MatchTime     sql.NullInt64  `db:"match_time"`
	HomeTeamID    sql.NullString `db:"home_team_id"`
	AwayTeamID    sql.NullString `db:"away_team_id"`
	CompetitionID sql.NullString `db:"competition_id"`
	SeasonID      sql.NullString `db:"season_id"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (m matchTableModel) toDomain() match.Record {
	return match.Record{
		ID:                 m.MatchID,
		Status:             trackedStatus(m.Status, m.StatusSource, m.StatusTimestamp),
		HomeScore:          trackedInt(m.HomeScore, m.HomeScoreSource, m.HomeScoreTimestamp),
		AwayScore:          trackedInt(m.AwayScore, m.AwayScoreSource, m.AwayScoreTimestamp),
		Minute:             trackedInt(m.Minute, m.MinuteSource, m.MinuteTimestamp),
		FirstHalfKickoff:   trackedInt(m.FirstHalfKickoff, m.FirstHalfKickoffSource, m.FirstHalfKickoffTimestamp),
		SecondHalfKickoff:  trackedInt(m.SecondHalfKickoff, m.SecondHalfKickoffSource, m.SecondHalfKickoffTimestamp),
		OvertimeKickoff:    trackedInt(m.OvertimeKickoff, m.OvertimeKickoffSource, m.OvertimeKickoffTimestamp),
		ProviderUpdateTime: trackedInt(m.ProviderUpdateTime, m.ProviderUpdateTimeSource, m.ProviderUpdateTimeTimestamp),
		LastEventTime:      trackedInt(m.LastEventTime, m.LastEventTimeSource, m.LastEventTimeTimestamp),
		Ended:              m.Ended,
		MatchTime:          m.MatchTime.Int64,
		HomeTeamID:         m.HomeTeamID.String,
		AwayTeamID:         m.AwayTeamID.String,
		CompetitionID:      m.CompetitionID.String,
		SeasonID:           m.SeasonID.String,
		UpdatedAt:          m.UpdatedAt,
	}
}

func trackedStatus(v, source sql.NullString, ts sql.NullInt64) match.TrackedValue {
	value := match.Null()
	if v.Valid && v.String != "" {
		value = match.StatusValue(match.NormalizeStatus(v.String))
	}
	return match.TrackedValue{Value: value, Provenance: provenance(source, ts)}
}

func trackedInt(v sql.NullInt64, source sql.NullString, ts sql.NullInt64) match.TrackedValue {
	value := match.Null()
	if v.Valid {
		value = match.IntValue(v.Int64)
	}
	return match.TrackedValue{Value: value, Provenance: provenance(source, ts)}
}

func provenance(source sql.NullString, ts sql.NullInt64) match.Provenance {
	return match.Provenance{
		Source:    match.Source(source.String),
		Timestamp: ts.Int64,
	}
}

// columnValue converts a domain value into a driver argument. Null becomes SQL NULL.
func columnValue(field match.Field, v match.Value) any {
	if v.IsNull() {
		return nil
	}
	switch field {
	case match.FieldStatus:
		return v.Text
	case match.FieldEnded:
		return v.Int != 0
	default:
		return v.Int
	}
}

func sourceColumn(field match.Field) string {
	return field.String() + "_source"
}

func timestampColumn(field match.Field) string {
	return field.String() + "_timestamp"
}

func nullableTimestamp(ts int64) any {
	if ts <= 0 {
		return nil
	}
	return ts
}
