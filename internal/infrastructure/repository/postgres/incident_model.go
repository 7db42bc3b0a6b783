package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/live-match/internal/domain/incident"
)

const incidentTable = "match_incidents"

// incidentNaturalKey is the unique index backing idempotent inserts.
var incidentNaturalKey = []string{"match_id", "type", "time", "position"}

type incidentTableModel struct {
	MatchID       string         `db:"match_id"`
	Type          int            `db:"type"`
	Time          int            `db:"time"`
	Position      int            `db:"position"`
	PlayerID      sql.NullString `db:"player_id"`
	PlayerName    sql.NullString `db:"player_name"`
	Assist1ID     sql.NullString `db:"assist1_id"`
	Assist1Name   sql.NullString `db:"assist1_name"`
	Assist2ID     sql.NullString `db:"assist2_id"`
	Assist2Name   sql.NullString `db:"assist2_name"`
	InPlayerID    sql.NullString `db:"in_player_id"`
	InPlayerName  sql.NullString `db:"in_player_name"`
	OutPlayerID   sql.NullString `db:"out_player_id"`
	OutPlayerName sql.NullString `db:"out_player_name"`
	HomeScore     sql.NullInt64  `db:"home_score"`
	AwayScore     sql.NullInt64  `db:"away_score"`
	VARReason     int            `db:"var_reason"`
	VARResult     int            `db:"var_result"`
	Reason        int            `db:"reason"`
	Source        string         `db:"source"`
	CreatedAt     time.Time      `db:"created_at"`
}

func incidentToModel(item incident.Incident) incidentTableModel {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return incidentTableModel{
		MatchID:       item.MatchID,
		Type:          int(item.Type),
		Time:          item.Time,
		Position:      int(item.Position),
		PlayerID:      nullString(item.PlayerID),
		PlayerName:    nullString(item.PlayerName),
		Assist1ID:     nullString(item.Assist1ID),
		Assist1Name:   nullString(item.Assist1Name),
		Assist2ID:     nullString(item.Assist2ID),
		Assist2Name:   nullString(item.Assist2Name),
		InPlayerID:    nullString(item.InPlayerID),
		InPlayerName:  nullString(item.InPlayerName),
		OutPlayerID:   nullString(item.OutPlayerID),
		OutPlayerName: nullString(item.OutPlayerName),
		HomeScore:     nullIntPtr(item.HomeScore),
		AwayScore:     nullIntPtr(item.AwayScore),
		VARReason:     item.VARReason,
		VARResult:     item.VARResult,
		Reason:        item.Reason,
		Source:        item.Source,
		CreatedAt:     createdAt,
	}
}

func (m incidentTableModel) toDomain() incident.Incident {
	return incident.Incident{
		MatchID:       m.MatchID,
		Type:          incident.Type(m.Type),
		Time:          m.Time,
		Position:      incident.Position(m.Position),
		PlayerID:      m.PlayerID.String,
		PlayerName:    m.PlayerName.String,
		Assist1ID:     m.Assist1ID.String,
		Assist1Name:   m.Assist1Name.String,
		Assist2ID:     m.Assist2ID.String,
		Assist2Name:   m.Assist2Name.String,
		InPlayerID:    m.InPlayerID.String,
		InPlayerName:  m.InPlayerName.String,
		OutPlayerID:   m.OutPlayerID.String,
		OutPlayerName: m.OutPlayerName.String,
		HomeScore:     intPtr(m.HomeScore),
		AwayScore:     intPtr(m.AwayScore),
		VARReason:     m.VARReason,
		VARResult:     m.VARResult,
		Reason:        m.Reason,
		Source:        m.Source,
		CreatedAt:     m.CreatedAt,
	}
}
