package match

import (
	"context"
	"errors"
)

// ErrNotFound marks a match id with no stored record.
var ErrNotFound = errors.New("match not found")

// Repository exposes the authoritative match store.
type Repository interface {
	// FetchState returns ErrNotFound when no record exists for matchID.
	FetchState(ctx context.Context, matchID string) (Record, error)
	// Persist writes exactly the given changes plus the last-modified marker.
	Persist(ctx context.Context, matchID string, changes ChangeSet) error
	ListLive(ctx context.Context) ([]Record, error)
}
