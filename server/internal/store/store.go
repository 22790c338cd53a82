package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
)

// Entry is the latest reading of one tag together with the time the poller
// stored it.
type Entry struct {
	Reading   types.Reading
	UpdatedAt time.Time
}

// Store is a thread-safe cache of the latest reading per tag, keyed by tag
// name. A background goroutine (Run) periodically evicts entries that have
// not been refreshed within the configured TTL. A TTL of zero keeps entries
// forever.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the reading for r.Tag.
func (s *Store) Put(r types.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[r.Tag] = &Entry{
		Reading:   r,
		UpdatedAt: s.now(),
	}
}

// List returns all entries refreshed within the TTL, sorted by tag name.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	now := s.now()
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if !s.stale(e, now) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Reading.Tag < out[j].Reading.Tag })
	return out
}

// Count returns the total number of entries held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Evict removes entries whose UpdatedAt is older than now minus TTL and
// returns the number removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for tag, e := range s.data {
		if s.stale(e, now) {
			delete(s.data, tag)
			removed++
		}
	}
	return removed
}

// stale reports whether e has outlived the TTL at now.
func (s *Store) stale(e *Entry, now time.Time) bool {
	return s.ttl > 0 && !e.UpdatedAt.After(now.Add(-s.ttl))
}

// Run starts the background eviction loop, ticking at half the TTL (minimum
// one second). Run blocks until ctx is cancelled; with a zero TTL it only
// waits for cancellation.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale readings", "count", n)
			}
		}
	}
}
