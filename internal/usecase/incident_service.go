package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/live-match/internal/domain/incident"
	"github.com/riskibarqy/live-match/internal/platform/events"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

const defaultIncidentCacheTTL = 24 * time.Hour

type IncidentResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

type IncidentServiceConfig struct {
	CacheTTL time.Duration
}

// IncidentService appends incidents to the ledger exactly once per natural key.
type IncidentService struct {
	ledger    incident.Ledger
	cache     incident.DedupCache
	publisher events.Publisher
	validate  *validator.Validate
	cfg       IncidentServiceConfig
	logger    *logging.Logger
}

func NewIncidentService(
	ledger incident.Ledger,
	cache incident.DedupCache,
	publisher events.Publisher,
	cfg IncidentServiceConfig,
	logger *logging.Logger,
) *IncidentService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultIncidentCacheTTL
	}

	return &IncidentService{
		ledger:    ledger,
		cache:     cache,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
		logger:    logger.Named("incidents"),
	}
}

// ProcessIncidents stores each incident once. Failures are counted and never
// abort the rest of the batch.
func (s *IncidentService) ProcessIncidents(ctx context.Context, matchID string, items []incident.Incident, sourceLabel string) IncidentResult {
	ctx, span := startUsecaseSpan(ctx, "usecase.IncidentService.ProcessIncidents",
		attribute.String("match.id", matchID),
		attribute.Int("incident.count", len(items)),
	)
	defer span.End()

	var result IncidentResult
	matchID = strings.TrimSpace(matchID)
	useCache := s.cache != nil

	for _, item := range items {
		item.MatchID = matchID
		if item.Source == "" {
			item.Source = sourceLabel
		}
		if err := s.validate.Struct(item); err != nil {
			result.Errors++
			s.logger.WarnContext(ctx, "invalid incident", "match_id", matchID, "type", int(item.Type), "error", err)
			continue
		}

		key := item.NaturalKey()
		if useCache {
			seen, err := s.cache.Seen(ctx, key)
			switch {
			case err != nil:
				useCache = false
				s.logger.WarnContext(ctx, "incident cache unavailable, inserting without fast path", "match_id", matchID, "error", err)
			case seen:
				result.Skipped++
				continue
			}
		}

		err := s.ledger.Insert(ctx, item)
		switch {
		case errors.Is(err, incident.ErrDuplicate):
			result.Skipped++
			s.remember(ctx, key, &useCache)
		case err != nil:
			result.Errors++
			s.logger.ErrorContext(ctx, "insert incident failed", "match_id", matchID, "key", key, "error", err)
		default:
			result.Added++
			s.remember(ctx, key, &useCache)
			s.notify(ctx, item)
		}
	}

	s.logger.DebugContext(ctx, "incidents processed",
		"match_id", matchID,
		"source", sourceLabel,
		"added", result.Added,
		"skipped", result.Skipped,
		"errors", result.Errors,
	)
	return result
}

func (s *IncidentService) remember(ctx context.Context, key string, useCache *bool) {
	if !*useCache {
		return
	}
	if err := s.cache.Remember(ctx, key, s.cfg.CacheTTL); err != nil {
		*useCache = false
		s.logger.WarnContext(ctx, "remember incident key failed", "key", key, "error", err)
	}
}

func (s *IncidentService) notify(ctx context.Context, item incident.Incident) {
	if s.publisher == nil {
		return
	}

	payload := map[string]any{
		"type":      int(item.Type),
		"time":      item.Time,
		"position":  int(item.Position),
		"player_id": item.PlayerID,
	}
	if item.HomeScore != nil {
		payload["home_score"] = *item.HomeScore
	}
	if item.AwayScore != nil {
		payload["away_score"] = *item.AwayScore
	}

	s.publisher.Publish(ctx, events.Event{
		Name:    events.IncidentAdded,
		MatchID: item.MatchID,
		Source:  item.Source,
		Payload: payload,
	})

	var name events.Name
	switch item.Type.Category() {
	case incident.CategoryGoal:
		name = events.IncidentGoal
	case incident.CategoryCard:
		name = events.IncidentCard
		payload = withEntry(payload, "color", item.Type.CardColor())
	case incident.CategorySubstitution:
		name = events.IncidentSubstitution
		payload = withEntry(payload, "in_player_id", item.InPlayerID)
		payload["out_player_id"] = item.OutPlayerID
	default:
		return
	}
	s.publisher.Publish(ctx, events.Event{
		Name:    name,
		MatchID: item.MatchID,
		Source:  item.Source,
		Payload: payload,
	})
}

// withEntry copies src so events already handed to the bus are not mutated.
func withEntry(src map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(src)+2)
	for k, v := range src {
		out[k] = v
	}
	out[key] = value
	return out
}
