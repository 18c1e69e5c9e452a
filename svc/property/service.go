package property

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/propfin/pkg/logger"
	"github.com/dmitrymomot/propfin/svc/billing"
)

// LimitGuard decides whether a user may create another unit of a resource.
type LimitGuard interface {
	EnforceLimit(ctx context.Context, userID uuid.UUID, resource billing.Resource) error
}

// CreateInput holds the fields a user supplies for a new property.
type CreateInput struct {
	Name               string
	Address            string
	PurchasePriceCents int64
}

// Service manages properties under the account's plan limits.
type Service struct {
	store Store
	guard LimitGuard
	clock billing.Clock
	log   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithClock(c billing.Clock) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(store Store, guard LimitGuard, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		guard: guard,
		clock: billing.SystemClock,
		log:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a property after the limit check passes. The check and the
// insert are not atomic, so concurrent creates may overshoot the limit by
// the number of racing requests.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*Property, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.PurchasePriceCents < 0 {
		return nil, ErrInvalidProperty
	}
	if err := s.guard.EnforceLimit(ctx, userID, billing.ResourceProperties); err != nil {
		return nil, err
	}

	p, err := s.store.Create(ctx, &Property{
		ID:                 uuid.New(),
		UserID:             userID,
		Name:               name,
		Address:            strings.TrimSpace(in.Address),
		PurchasePriceCents: in.PurchasePriceCents,
		CreatedAt:          s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "property created", logger.UserID(userID), slog.String("property_id", p.ID.String()))
	return p, nil
}

// List returns the user's active properties, oldest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Property, error) {
	return s.store.List(ctx, userID)
}

// Delete soft-deletes a property. Deletion frees plan capacity and is
// allowed in every subscription status.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Delete(ctx, userID, id, s.clock.Now().UTC())
}
