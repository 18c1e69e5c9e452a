package property

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Property is a real-estate asset tracked by an account.
type Property struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	Name               string     `json:"name"`
	Address            string     `json:"address,omitempty"`
	PurchasePriceCents int64      `json:"purchase_price_cents"`
	CreatedAt          time.Time  `json:"created_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

// Store persists properties. Deleted properties stay in storage but are
// excluded from List and CountActive.
type Store interface {
	Create(ctx context.Context, p *Property) (*Property, error)
	List(ctx context.Context, userID uuid.UUID) ([]*Property, error)
	Delete(ctx context.Context, userID, id uuid.UUID, at time.Time) error
	CountActive(ctx context.Context, userID uuid.UUID) (int64, error)
}
