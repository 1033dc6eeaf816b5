package session

import (
	"context"
	"sync"
	"time"
)

// Store is the arena of per-user records. Each record has its own lock, so a
// slow backend call made on behalf of one user never blocks another user.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	mu       sync.Mutex
	record   Record
	lastSeen time.Time
	evicted  bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for idle tracking.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore builds an empty arena.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: map[string]*entry{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Do runs fn with exclusive access to the record of key, creating it lazily.
// The record must not be retained after fn returns.
func (s *Store) Do(ctx context.Context, key string, fn func(rec *Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.acquire(key)
	defer e.mu.Unlock()

	e.lastSeen = s.now()
	err := fn(&e.record)
	e.lastSeen = s.now()
	return err
}

// Snapshot returns a shallow copy of the record for key. The cart and
// selection pointers are shared and must be treated as read-only.
func (s *Store) Snapshot(key string) (Record, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return Record{Key: key, Phase: PhaseIdle}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return Record{Key: key, Phase: PhaseIdle}, false
	}
	rec := e.record
	rec.Phase = rec.Phase.Normalize()
	return rec, true
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Evict drops records untouched for at least idleFor. Records that are in use
// are skipped and picked up on a later pass. It returns the number evicted.
func (s *Store) Evict(idleFor time.Duration) int {
	if idleFor <= 0 {
		return 0
	}
	cutoff := s.now().Add(-idleFor)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, e := range s.entries {
		if !e.mu.TryLock() {
			continue
		}
		if !e.lastSeen.After(cutoff) {
			e.evicted = true
			delete(s.entries, key)
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}

func (s *Store) acquire(key string) *entry {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			e = &entry{record: Record{Key: key, Phase: PhaseIdle}, lastSeen: s.now()}
			s.entries[key] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.evicted {
			return e
		}
		e.mu.Unlock()
	}
}
