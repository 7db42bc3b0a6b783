package pushstream

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/live-match/internal/domain/incident"
	"github.com/riskibarqy/live-match/internal/domain/match"
)

// SourceLabel tags every batch produced by the push stream.
const SourceLabel = "mqtt"

// Score array layout: [match_id, status_code, home_scores, away_scores, kickoff_ts, ...].
const (
	scoreIdxMatchID = iota
	scoreIdxStatus
	scoreIdxHome
	scoreIdxAway
	scoreIdxKickoff
	scoreMinLen = scoreIdxAway + 1
)

type liveMessage struct {
	ID         string            `json:"id"`
	Score      []any             `json:"score"`
	UpdateTime int64             `json:"update_time"`
	Incidents  []incidentPayload `json:"incidents"`
}

type incidentPayload struct {
	Type          int    `json:"type"`
	Position      int    `json:"position"`
	Time          int    `json:"time"`
	PlayerID      string `json:"player_id"`
	PlayerName    string `json:"player_name"`
	Assist1ID     string `json:"assist1_id"`
	Assist1Name   string `json:"assist1_name"`
	Assist2ID     string `json:"assist2_id"`
	Assist2Name   string `json:"assist2_name"`
	InPlayerID    string `json:"in_player_id"`
	InPlayerName  string `json:"in_player_name"`
	OutPlayerID   string `json:"out_player_id"`
	OutPlayerName string `json:"out_player_name"`
	HomeScore     *int   `json:"home_score"`
	AwayScore     *int   `json:"away_score"`
	VARReason     int    `json:"var_reason"`
	VARResult     int    `json:"var_result"`
	Reason        int    `json:"reason"`
}

// Batch is everything one live message says about one match.
type Batch struct {
	MatchID   string
	Updates   []match.FieldUpdate
	Incidents []incident.Incident
}

// Decode parses a push payload. The provider sends either one object or an array of them.
// A message that fails to translate is skipped; its error is joined into the
// returned error while the batches of its siblings are still returned.
func Decode(payload []byte, receivedAt int64) ([]Batch, error) {
	var messages []liveMessage
	if err := sonic.Unmarshal(payload, &messages); err != nil {
		var single liveMessage
		if errSingle := sonic.Unmarshal(payload, &single); errSingle != nil {
			return nil, fmt.Errorf("decode live message: %w", err)
		}
		messages = []liveMessage{single}
	}

	out := make([]Batch, 0, len(messages))
	var errs []error
	for _, msg := range messages {
		batch, err := translate(msg, receivedAt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if batch.MatchID == "" || (len(batch.Updates) == 0 && len(batch.Incidents) == 0) {
			continue
		}
		out = append(out, batch)
	}
	return out, errors.Join(errs...)
}

func translate(msg liveMessage, receivedAt int64) (Batch, error) {
	batch := Batch{MatchID: msg.ID}

	ts := receivedAt
	if msg.UpdateTime > 0 {
		ts = msg.UpdateTime
		batch.Updates = append(batch.Updates, pushUpdate(match.FieldProviderUpdateTime, match.IntValue(msg.UpdateTime), ts))
	}

	if len(msg.Score) > 0 {
		updates, matchID, err := translateScore(msg.Score, ts)
		if err != nil {
			return Batch{}, fmt.Errorf("match %s: %w", msg.ID, err)
		}
		if batch.MatchID == "" {
			batch.MatchID = matchID
		}
		batch.Updates = append(batch.Updates, updates...)
	}

	for _, p := range msg.Incidents {
		batch.Incidents = append(batch.Incidents, incident.Incident{
			MatchID:       batch.MatchID,
			Type:          incident.Type(p.Type),
			Time:          p.Time,
			Position:      incident.Position(p.Position),
			PlayerID:      p.PlayerID,
			PlayerName:    p.PlayerName,
			Assist1ID:     p.Assist1ID,
			Assist1Name:   p.Assist1Name,
			Assist2ID:     p.Assist2ID,
			Assist2Name:   p.Assist2Name,
			InPlayerID:    p.InPlayerID,
			InPlayerName:  p.InPlayerName,
			OutPlayerID:   p.OutPlayerID,
			OutPlayerName: p.OutPlayerName,
			HomeScore:     p.HomeScore,
			AwayScore:     p.AwayScore,
			VARReason:     p.VARReason,
			VARResult:     p.VARResult,
			Reason:        p.Reason,
			Source:        SourceLabel,
		})
	}
	if len(batch.Incidents) > 0 {
		batch.Updates = append(batch.Updates, pushUpdate(match.FieldLastEventTime, match.IntValue(ts), ts))
	}

	return batch, nil
}

func translateScore(score []any, ts int64) ([]match.FieldUpdate, string, error) {
	if len(score) < scoreMinLen {
		return nil, "", fmt.Errorf("score array has %d entries, want at least %d", len(score), scoreMinLen)
	}

	matchID, _ := score[scoreIdxMatchID].(string)
	code, ok := asInt(score[scoreIdxStatus])
	if !ok {
		return nil, "", fmt.Errorf("status code is not numeric: %v", score[scoreIdxStatus])
	}

	var updates []match.FieldUpdate
	status, known := match.StatusFromProviderCode(int(code))
	if known {
		updates = append(updates, pushUpdate(match.FieldStatus, match.StatusValue(status), ts))
	}
	if home, ok := regularScore(score[scoreIdxHome]); ok {
		updates = append(updates, pushUpdate(match.FieldHomeScore, match.IntValue(home), ts))
	}
	if away, ok := regularScore(score[scoreIdxAway]); ok {
		updates = append(updates, pushUpdate(match.FieldAwayScore, match.IntValue(away), ts))
	}

	if len(score) > scoreIdxKickoff && known {
		if kickoff, ok := asInt(score[scoreIdxKickoff]); ok && kickoff > 0 {
			if field, ok := kickoffField(status); ok {
				updates = append(updates, pushUpdate(field, match.IntValue(kickoff), ts))
			}
		}
	}

	return updates, matchID, nil
}

// kickoffField picks which kickoff the provider's phase timestamp anchors.
func kickoffField(status match.Status) (match.Field, bool) {
	switch status {
	case match.StatusFirstHalf:
		return match.FieldFirstHalfKickoff, true
	case match.StatusSecondHalf:
		return match.FieldSecondHalfKickoff, true
	case match.StatusOvertime:
		return match.FieldOvertimeKickoff, true
	default:
		return 0, false
	}
}

// regularScore reads the first slot of a per-team score array.
func regularScore(v any) (int64, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return 0, false
	}
	return asInt(arr[0])
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func pushUpdate(field match.Field, value match.Value, ts int64) match.FieldUpdate {
	return match.FieldUpdate{
		Field:     field,
		Value:     value,
		Source:    match.SourcePush,
		Timestamp: ts,
	}
}
