package session

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps records in a go-cache with sliding expiry. The mutex makes the
// version check and write of Update atomic.
type MemoryStore struct {
	mu     sync.Mutex
	cache  *cache.Cache
	ttl    time.Duration
	closed bool
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{cache: cache.New(ttl, ttl/2), ttl: ttl}
}

func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, exists := s.cache.Get(rec.ID); exists {
		return ErrAlreadyExists
	}

	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Version = 1

	s.cache.Set(rec.ID, rec.Clone(), s.ttl)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	v, exists := s.cache.Get(id)
	if !exists {
		return nil, nil
	}
	rec := v.(*Record)
	// refresh expiry on read
	s.cache.Set(id, rec, s.ttl)
	return rec.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	v, exists := s.cache.Get(rec.ID)
	if !exists {
		return ErrNotFound
	}
	if v.(*Record).Version != rec.Version {
		return ErrVersionConflict
	}

	rec.Version++
	rec.UpdatedAt = time.Now()
	s.cache.Set(rec.ID, rec.Clone(), s.ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cache.Flush()
	return nil
}
