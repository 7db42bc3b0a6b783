package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/live-match/internal/domain/incident"
)

// IncidentRepository enforces the natural key uniqueness the postgres index provides.
type IncidentRepository struct {
	mu      sync.RWMutex
	byKey   map[string]incident.Incident
	byMatch map[string][]string
	now     func() time.Time
}

func NewIncidentRepository() *IncidentRepository {
	return &IncidentRepository{
		byKey:   make(map[string]incident.Incident),
		byMatch: make(map[string][]string),
		now:     time.Now,
	}
}

func (r *IncidentRepository) Insert(_ context.Context, item incident.Incident) error {
	key := item.NaturalKey()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[key]; exists {
		return incident.ErrDuplicate
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = r.now().UTC()
	}
	r.byKey[key] = item
	r.byMatch[item.MatchID] = append(r.byMatch[item.MatchID], key)
	return nil
}

func (r *IncidentRepository) ListByMatch(_ context.Context, matchID string) ([]incident.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.byMatch[matchID]
	out := make([]incident.Incident, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}
