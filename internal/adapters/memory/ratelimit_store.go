package memory

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/target/congregate-api/internal/clock"
)

// RateLimitStoreOptions configures a RateLimitStore.
type RateLimitStoreOptions struct {
	// MaxIdentifiers caps tracked keys; the least recently written key is evicted first.
	MaxIdentifiers int
	// CleanupInterval is the minimum gap between expiry sweeps, run lazily on Set.
	CleanupInterval time.Duration
	Clock           clock.Clock
}

type rateLimitEntry struct {
	key       string
	attempts  []time.Time
	expiresAt time.Time
}

// RateLimitStore is a bounded in-process attempt store. Entries expire after
// their ttl and the store never holds more than MaxIdentifiers keys.
type RateLimitStore struct {
	mu          sync.Mutex
	entries     map[string]*list.Element
	order       *list.List // front = most recently written
	max         int
	interval    time.Duration
	lastCleanup time.Time
	clock       clock.Clock
}

// NewRateLimitStore constructs a RateLimitStore with defaults for zero options.
func NewRateLimitStore(opts RateLimitStoreOptions) *RateLimitStore {
	if opts.MaxIdentifiers <= 0 {
		opts.MaxIdentifiers = 10000
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	clk := clock.OrReal(opts.Clock)
	return &RateLimitStore{
		entries:     make(map[string]*list.Element),
		order:       list.New(),
		max:         opts.MaxIdentifiers,
		interval:    opts.CleanupInterval,
		lastCleanup: clk.Now(),
		clock:       clk,
	}
}

func (s *RateLimitStore) Get(_ context.Context, key string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	entry := el.Value.(*rateLimitEntry)
	if !s.clock.Now().Before(entry.expiresAt) {
		s.remove(el)
		return nil, nil
	}
	return slices.Clone(entry.attempts), nil
}

func (s *RateLimitStore) Set(_ context.Context, key string, attempts []time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now.Sub(s.lastCleanup) >= s.interval {
		s.cleanup(now)
	}

	if len(attempts) == 0 {
		if el, ok := s.entries[key]; ok {
			s.remove(el)
		}
		return nil
	}

	entry := &rateLimitEntry{key: key, attempts: slices.Clone(attempts), expiresAt: now.Add(ttl)}
	if el, ok := s.entries[key]; ok {
		el.Value = entry
		s.order.MoveToFront(el)
		return nil
	}
	s.entries[key] = s.order.PushFront(entry)
	for s.order.Len() > s.max {
		s.remove(s.order.Back())
	}
	return nil
}

func (s *RateLimitStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[key]; ok {
		s.remove(el)
	}
	return nil
}

// Ping always succeeds; the in-process store cannot be unreachable.
func (s *RateLimitStore) Ping(context.Context) error { return nil }

// Len reports the number of tracked keys.
func (s *RateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *RateLimitStore) cleanup(now time.Time) {
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*rateLimitEntry).expiresAt) {
			s.remove(el)
		}
		el = prev
	}
	s.lastCleanup = now
}

func (s *RateLimitStore) remove(el *list.Element) {
	entry := s.order.Remove(el).(*rateLimitEntry)
	delete(s.entries, entry.key)
}
