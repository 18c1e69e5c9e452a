package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists one Subscription per user.
// Get-style methods return ErrSubscriptionNotFound for a missing record and
// wrap ErrStoreUnavailable for infrastructure failures.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	GetByExternalSubscriptionID(ctx context.Context, subscriptionID string) (*Subscription, error)
	GetByExternalCustomerID(ctx context.Context, customerID string) (*Subscription, error)
	Create(ctx context.Context, sub *Subscription) (*Subscription, error)
	// Update applies patch. When expectedUpdatedAt is non-nil and differs from the
	// stored value, it returns a *ConflictError and writes nothing.
	Update(ctx context.Context, userID uuid.UUID, patch Patch, expectedUpdatedAt *time.Time) (*Subscription, error)
}

// nextUpdatedAt returns a timestamp strictly after prev at microsecond
// precision, which is what Postgres stores.
func nextUpdatedAt(now, prev time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}
