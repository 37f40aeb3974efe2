package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

type Option[T any] func(*MemoryStore[T])

// WithClock overrides the store clock for deterministic tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *MemoryStore[T]) { s.now = now }
}

// WithEvictionHook registers fn to be called for every record dropped
// because its TTL elapsed. It is never called for Take or Delete.
func WithEvictionHook[T any](fn func(key string, value T)) Option[T] {
	return func(s *MemoryStore[T]) { s.onEvict = fn }
}

// MemoryStore is a process-local Store. Expired records are invisible to
// readers immediately and reclaimed lazily or by Sweep.
type MemoryStore[T any] struct {
	mu      sync.Mutex
	items   map[string]entry[T]
	now     func() time.Time
	onEvict func(key string, value T)
	evicted atomic.Uint64
}

func NewMemoryStore[T any](opts ...Option[T]) *MemoryStore[T] {
	s := &MemoryStore[T]{
		items: make(map[string]entry[T]),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore[T]) Put(_ context.Context, key string, value T, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry[T]{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore[T]) Get(_ context.Context, key string) (T, bool, error) {
	value, ok, expired := s.lookup(key, false)
	if expired {
		s.evict(key, value)
		var zero T
		return zero, false, nil
	}
	return value, ok, nil
}

func (s *MemoryStore[T]) Take(_ context.Context, key string) (T, bool, error) {
	value, ok, expired := s.lookup(key, true)
	if expired {
		s.evict(key, value)
		var zero T
		return zero, false, nil
	}
	return value, ok, nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// lookup returns the live value for key, removing it when remove is set.
// An expired record is always removed and reported with expired=true.
func (s *MemoryStore[T]) lookup(key string, remove bool) (value T, ok, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, found := s.items[key]
	if !found {
		return value, false, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.items, key)
		return e.value, false, true
	}
	if remove {
		delete(s.items, key)
	}
	return e.value, true, false
}

// Sweep drops every expired record and returns how many were removed.
func (s *MemoryStore[T]) Sweep() int {
	now := s.now()
	expired := map[string]T{}
	s.mu.Lock()
	for key, e := range s.items {
		if !now.Before(e.expiresAt) {
			expired[key] = e.value
			delete(s.items, key)
		}
	}
	s.mu.Unlock()

	for key, value := range expired {
		s.evict(key, value)
	}
	return len(expired)
}

func (s *MemoryStore[T]) evict(key string, value T) {
	s.evicted.Inc()
	if s.onEvict != nil {
		s.onEvict(key, value)
	}
}

func (s *MemoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Evicted returns the number of records dropped by expiry so far.
func (s *MemoryStore[T]) Evicted() uint64 {
	return s.evicted.Load()
}

