package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/propfin/pkg/logger"
)

// Resource identifies a plan-gated resource.
type Resource string

const ResourceProperties Resource = "properties"

// CounterFunc returns the live usage of a resource for a user.
type CounterFunc func(ctx context.Context, userID uuid.UUID) (int64, error)

// Usage is the result of a limit check.
type Usage struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
	Allowed bool  `json:"allowed"`
}

// Enforcer compares live usage with the plan limit stored on the subscription.
// It only advises: the guarded mutation is performed by the caller, so two
// concurrent creates can both pass a check at limit-1.
type Enforcer struct {
	store    Store
	clock    Clock
	counters map[Resource]CounterFunc
	metrics  *Metrics
	log      *slog.Logger
}

// EnforcerOption configures an Enforcer.
type EnforcerOption func(*Enforcer)

// WithCounter registers the usage counter for a resource.
// Registering the same resource twice panics.
func WithCounter(resource Resource, fn CounterFunc) EnforcerOption {
	return func(e *Enforcer) {
		if fn == nil {
			return
		}
		if _, exists := e.counters[resource]; exists {
			panic("billing: counter for resource " + string(resource) + " already registered")
		}
		e.counters[resource] = fn
	}
}

func WithEnforcerClock(c Clock) EnforcerOption {
	return func(e *Enforcer) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithEnforcerMetrics(m *Metrics) EnforcerOption {
	return func(e *Enforcer) { e.metrics = m }
}

func WithEnforcerLogger(l *slog.Logger) EnforcerOption {
	return func(e *Enforcer) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEnforcer creates a limit enforcer over store.
func NewEnforcer(store Store, opts ...EnforcerOption) *Enforcer {
	e := &Enforcer{
		store:    store,
		clock:    SystemClock,
		counters: make(map[Resource]CounterFunc),
		log:      discardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Count returns the live usage of resource.
func (e *Enforcer) Count(ctx context.Context, userID uuid.UUID, resource Resource) (int64, error) {
	counter, ok := e.counters[resource]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	n, err := counter(ctx, userID)
	if err != nil {
		return 0, errors.Join(ErrFailedToCountResource, err)
	}
	return n, nil
}

// LimitOf returns the subscription limit for resource.
func LimitOf(sub *Subscription, resource Resource) (int64, error) {
	switch resource {
	case ResourceProperties:
		return int64(sub.PropertyLimit), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
}

// CheckLimit reports current usage against the plan limit.
func (e *Enforcer) CheckLimit(ctx context.Context, userID uuid.UUID, resource Resource) (Usage, error) {
	sub, err := e.store.Get(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	return e.check(ctx, sub, resource)
}

func (e *Enforcer) check(ctx context.Context, sub *Subscription, resource Resource) (Usage, error) {
	limit, err := LimitOf(sub, resource)
	if err != nil {
		return Usage{}, err
	}
	current, err := e.Count(ctx, sub.UserID, resource)
	if err != nil {
		return Usage{}, err
	}
	u := Usage{Current: current, Limit: limit, Allowed: current < limit}
	e.metrics.limitChecked(resource, u.Allowed)
	return u, nil
}

// EnforceLimit returns nil when the user may create one more unit of resource.
// Otherwise it returns a *MutationBlockedError or *LimitExceededError naming
// the limiting factor. A missing subscription is reported as ErrSubscriptionNotFound.
func (e *Enforcer) EnforceLimit(ctx context.Context, userID uuid.UUID, resource Resource) error {
	sub, err := e.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	state := EvaluateTrial(sub, e.clock.Now())
	if !state.CanMutate {
		e.log.InfoContext(ctx, "mutation blocked by subscription status",
			logger.UserID(userID), logger.Status(string(sub.Status)))
		return &MutationBlockedError{Status: sub.Status, Reason: state.Reason}
	}

	u, err := e.check(ctx, sub, resource)
	if err != nil {
		return err
	}
	if !u.Allowed {
		return &LimitExceededError{Resource: resource, Current: u.Current, Limit: u.Limit}
	}
	return nil
}
