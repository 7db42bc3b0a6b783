package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Store is an in-process key/value store with per-entry expiry.
// It backs the single-node lock backend and the in-memory incident dedup cache.
type Store struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	now        func() time.Time
}

func NewStore(defaultTTL time.Duration) *Store {
	return &Store{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (s *Store) Get(_ context.Context, key string) (string, bool) {
	if key == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return "", false
	}
	return e.value, true
}

// Set stores value under key. A ttl <= 0 uses the store default; a zero default never expires.
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) {
	if key == "" {
		return
	}

	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.expiry(ttl)}
	s.mu.Unlock()
}

// SetIfAbsent stores value only when key is missing or expired.
func (s *Store) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !e.expired(s.now()) {
		return false
	}
	s.entries[key] = entry{value: value, expiresAt: s.expiry(ttl)}
	return true
}

func (s *Store) Delete(_ context.Context, key string) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	delete(s.entries, key)
	return ok && !e.expired(s.now())
}

// CompareAndDelete removes key only while it still holds value.
func (s *Store) CompareAndDelete(_ context.Context, key, value string) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) || e.value != value {
		return false
	}
	delete(s.entries, key)
	return true
}

// Purge drops expired entries and returns how many were removed.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}
