package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/live-match/internal/domain/match"
)

type MatchRepository struct {
	mu      sync.RWMutex
	records map[string]match.Record
	now     func() time.Time
}

func NewMatchRepository(records ...match.Record) *MatchRepository {
	r := &MatchRepository{
		records: make(map[string]match.Record, len(records)),
		now:     time.Now,
	}
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
	return r
}

// Upsert replaces the whole record. Producers never call it; it seeds fixtures.
func (r *MatchRepository) Upsert(rec match.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
}

func (r *MatchRepository) FetchState(_ context.Context, matchID string) (match.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[matchID]
	if !ok {
		return match.Record{}, match.ErrNotFound
	}
	return rec, nil
}

func (r *MatchRepository) Persist(_ context.Context, matchID string, changes match.ChangeSet) error {
	if len(changes) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[matchID]
	if !ok {
		return match.ErrNotFound
	}
	rec = rec.Apply(changes)
	rec.UpdatedAt = r.now().UTC()
	r.records[matchID] = rec
	return nil
}

func (r *MatchRepository) ListLive(_ context.Context) ([]match.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.Ended || !rec.CurrentStatus().IsLive() {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
