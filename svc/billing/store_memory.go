package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	subs  map[uuid.UUID]*Subscription
	clock Clock
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock
	}
	return &MemoryStore{
		subs:  make(map[uuid.UUID]*Subscription),
		clock: clock,
	}
}

func (m *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (m *MemoryStore) GetByExternalSubscriptionID(_ context.Context, subscriptionID string) (*Subscription, error) {
	return m.find(func(s *Subscription) bool {
		return subscriptionID != "" && s.ExternalSubscriptionID == subscriptionID
	})
}

func (m *MemoryStore) GetByExternalCustomerID(_ context.Context, customerID string) (*Subscription, error) {
	return m.find(func(s *Subscription) bool {
		return customerID != "" && s.ExternalCustomerID == customerID
	})
}

func (m *MemoryStore) find(match func(*Subscription) bool) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subs {
		if match(sub) {
			return sub.Clone(), nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (m *MemoryStore) Create(_ context.Context, sub *Subscription) (*Subscription, error) {
	if sub == nil || sub.UserID == uuid.Nil {
		return nil, ErrInvalidSubscription
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.subs[sub.UserID]; exists {
		return nil, ErrSubscriptionExists
	}
	stored := sub.Clone()
	now := nextUpdatedAt(m.clock.Now(), time.Time{})
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.subs[sub.UserID] = stored
	return stored.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, userID uuid.UUID, patch Patch, expectedUpdatedAt *time.Time) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	if expectedUpdatedAt != nil && !cur.UpdatedAt.Equal(*expectedUpdatedAt) {
		return nil, &ConflictError{UserID: userID, Expected: *expectedUpdatedAt, Actual: cur.UpdatedAt}
	}
	next := patch.Apply(cur)
	next.UpdatedAt = nextUpdatedAt(m.clock.Now(), cur.UpdatedAt)
	m.subs[userID] = next
	return next.Clone(), nil
}
