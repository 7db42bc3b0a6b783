package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/live-match/internal/domain/incident"
	qb "github.com/riskibarqy/live-match/internal/platform/querybuilder"
)

var incidentColumns = qb.ModelColumns(incidentTableModel{})

// IncidentRepository is the append-only incident ledger. The unique index on
// (match_id, type, time, position) makes inserts idempotent.
type IncidentRepository struct {
	db *sqlx.DB
}

func NewIncidentRepository(db *sqlx.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

func (r *IncidentRepository) Insert(ctx context.Context, item incident.Incident) error {
	query, args, err := buildInsertIncidentQuery(item)
	if err != nil {
		return fmt.Errorf("build insert incident query: %w", err)
	}

	var matchID string
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&matchID); err != nil {
		if isNotFound(err) || isUniqueViolation(err) {
			return incident.ErrDuplicate
		}
		return fmt.Errorf("insert incident key=%s: %w", item.NaturalKey(), err)
	}
	return nil
}

func (r *IncidentRepository) ListByMatch(ctx context.Context, matchID string) ([]incident.Incident, error) {
	query, args, err := qb.Select(incidentColumns...).
		From(incidentTable).
		Where(qb.Eq("match_id", matchID)).
		OrderBy("time", "type", "position").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select incidents by match query: %w", err)
	}

	var rows []incidentTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select incidents by match: %w", err)
	}

	out := make([]incident.Incident, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// buildInsertIncidentQuery returns no row when the natural key already exists.
func buildInsertIncidentQuery(item incident.Incident) (string, []any, error) {
	insert, err := qb.InsertModel(incidentTable, incidentToModel(item))
	if err != nil {
		return "", nil, err
	}
	return insert.
		OnConflictDoNothing(incidentNaturalKey...).
		Returning("match_id").
		ToSQL()
}
