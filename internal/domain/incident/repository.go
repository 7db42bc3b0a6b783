package incident

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned by a Ledger when the natural key already exists.
var ErrDuplicate = errors.New("incident already recorded")

// Ledger is the append-only incident store.
type Ledger interface {
	// Insert returns ErrDuplicate when the natural key is already present.
	Insert(ctx context.Context, item Incident) error
	ListByMatch(ctx context.Context, matchID string) ([]Incident, error)
}

// DedupCache remembers natural keys that are known to be stored.
type DedupCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string, ttl time.Duration) error
}
