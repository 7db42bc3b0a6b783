package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/live-match/internal/domain/match"
	qb "github.com/riskibarqy/live-match/internal/platform/querybuilder"
)

var (
	matchColumns = qb.ModelColumns(matchTableModel{})

	liveStatuses = []string{
		string(match.StatusFirstHalf),
		string(match.StatusHalfTime),
		string(match.StatusSecondHalf),
		string(match.StatusOvertime),
		string(match.StatusPenaltyShootout),
		string(match.StatusInterrupted),
	}
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) FetchState(ctx context.Context, matchID string) (match.Record, error) {
	query, args, err := qb.Select(matchColumns...).
		From(matchTable).
		Where(qb.Eq("match_id", matchID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return match.Record{}, fmt.Errorf("build fetch match state query: %w", err)
	}

	var row matchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Record{}, match.ErrNotFound
		}
		return match.Record{}, fmt.Errorf("fetch match state id=%s: %w", matchID, err)
	}

	return row.toDomain(), nil
}

func (r *MatchRepository) Persist(ctx context.Context, matchID string, changes match.ChangeSet) error {
	if len(changes) == 0 {
		return nil
	}

	query, args, err := buildPersistQuery(matchID, changes)
	if err != nil {
		return fmt.Errorf("build persist match query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("persist match id=%s: %w", matchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("persist match rows affected: %w", err)
	}
	if affected == 0 {
		return match.ErrNotFound
	}
	return nil
}

func (r *MatchRepository) ListLive(ctx context.Context) ([]match.Record, error) {
	query, args, err := qb.Select(matchColumns...).
		From(matchTable).
		Where(
			qb.Eq("ended", false),
			qb.In("status", liveStatuses),
		).
		OrderBy("match_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list live matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list live matches: %w", err)
	}

	out := make([]match.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// buildPersistQuery writes the accepted columns, their provenance columns and
// updated_at in a single statement.
func buildPersistQuery(matchID string, changes match.ChangeSet) (string, []any, error) {
	update := qb.Update(matchTable)
	for _, field := range changes.Fields() {
		change := changes[field]
		update.Set(field.String(), columnValue(field, change.Value))
		if !field.Tracked() {
			continue
		}
		update.Set(sourceColumn(field), string(change.Provenance.Source))
		update.Set(timestampColumn(field), nullableTimestamp(change.Provenance.Timestamp))
	}

	return update.
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("match_id", matchID)).
		ToSQL()
}
