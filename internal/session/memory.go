package session

import (
	"context"
	"time"

	"expensia/internal/cache"
)

const defaultMemorySessions = 10000

// MemoryStore keeps sessions in an LRU cache. Records are stored encoded so
// callers never share a User value with the store.
type MemoryStore struct {
	lru *cache.LRUCache[[]byte]
}

// NewMemoryStore creates a store holding at most maxSessions records. When a
// cache manager is given the store is registered for periodic expiry.
func NewMemoryStore(maxSessions int, ttl time.Duration, manager *cache.Manager) *MemoryStore {
	if maxSessions <= 0 {
		maxSessions = defaultMemorySessions
	}
	s := &MemoryStore{lru: cache.NewLRUCache[[]byte](maxSessions, ttl)}
	if manager != nil {
		manager.Register("sessions", s.lru)
	}
	return s
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := s.lru.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec, err := decodeRecord(data)
	if err != nil {
		s.lru.Delete(id)
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Save(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	s.lru.SetWithTTL(id, data, ttl)
	return nil
}

func (s *MemoryStore) Replace(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if !s.lru.Replace(id, data, ttl) {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.lru.Delete(id)
	return nil
}

// Len returns the number of cached sessions, expired ones included until the
// next cleanup.
func (s *MemoryStore) Len() int { return s.lru.Size() }

func (s *MemoryStore) Close() error { return nil }
