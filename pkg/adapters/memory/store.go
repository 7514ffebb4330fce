package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
)

type item struct {
	value    []byte
	deadline time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.deadline.IsZero() && !now.Before(i.deadline)
}

// Store implements ports.KVStore in memory, with lazy TTL expiry.
// Safe for concurrent use.
type Store struct {
	data map[string]item
	mu   sync.Mutex
	now  func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces the time source used for expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		data: make(map[string]item),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup must be called with mu held.
func (s *Store) lookup(key string) (item, bool) {
	it, ok := s.data[key]
	if !ok {
		return item{}, false
	}
	if it.expired(s.now()) {
		delete(s.data, key)
		return item{}, false
	}
	return it, true
}

func (s *Store) put(key string, value []byte, ttl time.Duration) {
	it := item{value: bytes.Clone(value)}
	if ttl > 0 {
		it.deadline = s.now().Add(ttl)
	}
	s.data[key] = it
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, value, ttl)
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.lookup(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return bytes.Clone(it.value), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.put(key, value, ttl)
	return true, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(key)
	return ok, nil
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.lookup(key)
	if !ok || !bytes.Equal(it.value, value) {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

func (s *Store) CompareAndExpire(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.lookup(key)
	if !ok || !bytes.Equal(it.value, value) {
		return false, nil
	}
	s.put(key, it.value, ttl)
	return true, nil
}

// Len returns the number of unexpired keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for k, it := range s.data {
		if it.expired(now) {
			delete(s.data, k)
			continue
		}
		n++
	}
	return n
}
