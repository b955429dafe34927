// Package cache holds derived results keyed by logical query, each gated by
// an input fingerprint and optionally a TTL. The cache is read-mostly,
// rebuilt from persisted state on startup, and written only by the
// recalculation orchestrator.
package cache

import (
	"sync"
	"time"
)

// DefaultHistoryTTL is the secondary safety net for hash+TTL caches. The
// fingerprint already captures data changes; the TTL only catches entries
// that went stale while the application was closed.
const DefaultHistoryTTL = 7 * 24 * time.Hour

// Entry is one cached derived result.
type Entry struct {
	Key        string
	Value      any
	InputHash  string
	ComputedAt time.Time
}

// IsValid is the pure validity rule: the stored hash must match the current
// fingerprint, and for TTL-gated entries (maxAge > 0) the entry must be
// younger than maxAge. A hash mismatch is invalid regardless of age.
func IsValid(storedHash, currentHash string, computedAt, now time.Time, maxAge time.Duration) bool {
	if storedHash == "" || storedHash != currentHash {
		return false
	}
	if maxAge > 0 && now.Sub(computedAt) >= maxAge {
		return false
	}
	return true
}

// Options controls the validity check for one lookup.
type Options struct {
	// MaxAge enables the TTL tier; zero means hash-gated only.
	MaxAge time.Duration
	// Degenerate reports whether a stored value is suspect (all monetary
	// fields zero while inputs are non-empty). A degenerate value is a
	// forced miss even when the hash matches.
	Degenerate func(value any) bool
}

// Store is an in-memory cache of derived results.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// New creates an empty cache store.
func New() *Store {
	return &Store{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// SetClock overrides the store's clock. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get returns the entry for key, valid or not.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Lookup returns the entry for key if it is valid for the current input
// hash under the given options.
func (s *Store) Lookup(key, currentHash string, opts Options) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	if !IsValid(e.InputHash, currentHash, e.ComputedAt, s.now(), opts.MaxAge) {
		return Entry{}, false
	}
	if opts.Degenerate != nil && opts.Degenerate(e.Value) {
		return Entry{}, false
	}
	return e, true
}

// Put replaces the entry for key wholesale.
func (s *Store) Put(key string, value any, inputHash string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{Key: key, Value: value, InputHash: inputHash, ComputedAt: s.now()}
	s.entries[key] = e
	return e
}

// Restore installs a previously persisted entry, keeping its original
// ComputedAt. Entries already past their maxAge are dropped instead of
// trusted; rehydrated state must pass the TTL rule once before use.
func (s *Store) Restore(e Entry, maxAge time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxAge > 0 && s.now().Sub(e.ComputedAt) >= maxAge {
		return false
	}
	s.entries[e.Key] = e
	return true
}

// Invalidate removes the entry for key.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// InvalidatePrefix removes every entry whose key starts with prefix.
// History caches are keyed per time range under a shared prefix.
func (s *Store) InvalidatePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.entries, key)
		}
	}
}

// InvalidateAll empties the cache.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}

// Entries returns a snapshot of all entries, for persistence.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}
