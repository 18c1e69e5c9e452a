package property

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store for tests and single-process deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Property
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]*Property)}
}

func (s *MemoryStore) Create(_ context.Context, p *Property) (*Property, error) {
	if p == nil || p.ID == uuid.Nil || p.UserID == uuid.Nil {
		return nil, ErrInvalidProperty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.items[p.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context, userID uuid.UUID) ([]*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Property
	for _, p := range s.items {
		if p.UserID == userID && p.DeletedAt == nil {
			cp := *p
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *Property) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok || p.UserID != userID || p.DeletedAt != nil {
		return ErrPropertyNotFound
	}
	p.DeletedAt = &at
	return nil
}

func (s *MemoryStore) CountActive(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.items {
		if p.UserID == userID && p.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}
