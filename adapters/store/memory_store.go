package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/ports"
)

// Stats are simple counters for store behavior
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Deletes     int64 `json:"deletes"`
	Expirations int64 `json:"expirations"`
	Size        int   `json:"size"`
}

// MemoryStore is an in-memory expiring store
type MemoryStore[V any] struct {
	items map[string]memoryItem[V]
	mu    sync.RWMutex
	clock clock.Clock

	hits        int64
	misses      int64
	sets        int64
	deletes     int64
	expirations int64
}

type memoryItem[V any] struct {
	value     V
	expiresAt time.Time
}

func (i memoryItem[V]) expired(now time.Time) bool {
	return now.After(i.expiresAt)
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore[V any](clk clock.Clock) *MemoryStore[V] {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore[V]{
		items: make(map[string]memoryItem[V]),
		clock: clk,
	}
}

// Put stores value under key, replacing any previous entry
func (s *MemoryStore[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) error {
	expiresAt := s.clock.Now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = memoryItem[V]{value: value, expiresAt: expiresAt}
	atomic.AddInt64(&s.sets, 1)
	return nil
}

// Get returns the live value for key
func (s *MemoryStore[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	now := s.clock.Now()

	s.mu.RLock()
	item, exists := s.items[key]
	s.mu.RUnlock()

	if !exists {
		atomic.AddInt64(&s.misses, 1)
		return zero, core.ErrNotFound
	}

	if item.expired(now) {
		atomic.AddInt64(&s.misses, 1)
		s.evictIfStale(key, now)
		return zero, core.ErrNotFound
	}

	atomic.AddInt64(&s.hits, 1)
	return item.value, nil
}

// Take returns the live value for key and removes it in the same critical section
func (s *MemoryStore[V]) Take(ctx context.Context, key string) (V, error) {
	var zero V
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[key]
	if !exists {
		atomic.AddInt64(&s.misses, 1)
		return zero, core.ErrNotFound
	}
	delete(s.items, key)

	if item.expired(now) {
		atomic.AddInt64(&s.misses, 1)
		atomic.AddInt64(&s.expirations, 1)
		return zero, core.ErrNotFound
	}

	atomic.AddInt64(&s.hits, 1)
	atomic.AddInt64(&s.deletes, 1)
	return item.value, nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *MemoryStore[V]) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existed := s.items[key]; existed {
		delete(s.items, key)
		atomic.AddInt64(&s.deletes, 1)
	}
	return nil
}

// evictIfStale removes key only if the entry present now is still expired;
// a concurrent Put of a fresh value is left alone.
func (s *MemoryStore[V]) evictIfStale(key string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, exists := s.items[key]; exists && item.expired(now) {
		delete(s.items, key)
		atomic.AddInt64(&s.expirations, 1)
	}
}

// Sweep removes every expired entry and returns how many were dropped
func (s *MemoryStore[V]) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, item := range s.items {
		if item.expired(now) {
			delete(s.items, key)
			removed++
		}
	}
	atomic.AddInt64(&s.expirations, int64(removed))
	return removed
}

// Run sweeps expired entries every interval until ctx is done, logging the
// store counters after each pass
func (s *MemoryStore[V]) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep()
			stats := s.Stats()
			logger.Debug("store swept",
				"removed", removed,
				"size", stats.Size,
				"hits", stats.Hits,
				"misses", stats.Misses,
				"sets", stats.Sets,
				"deletes", stats.Deletes,
				"expirations", stats.Expirations,
			)
		}
	}
}

// Len returns the number of entries, expired ones included
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Stats returns store counters
func (s *MemoryStore[V]) Stats() Stats {
	return Stats{
		Hits:        atomic.LoadInt64(&s.hits),
		Misses:      atomic.LoadInt64(&s.misses),
		Sets:        atomic.LoadInt64(&s.sets),
		Deletes:     atomic.LoadInt64(&s.deletes),
		Expirations: atomic.LoadInt64(&s.expirations),
		Size:        s.Len(),
	}
}

var _ ports.Store[string] = (*MemoryStore[string])(nil)
