package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/propfin/svc/billing"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.RedirectSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.RedirectSession), args.Error(1)
}

func (m *mockProcessor) CreatePortalSession(ctx context.Context, req billing.PortalRequest) (*billing.RedirectSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.RedirectSession), args.Error(1)
}

func (m *mockProcessor) GetSubscription(ctx context.Context, subscriptionID string) (*billing.ProcessorSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProcessorSubscription), args.Error(1)
}

func (m *mockProcessor) PreviewPlanChange(ctx context.Context, req billing.PlanChangeRequest) (*billing.ProrationPreview, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProrationPreview), args.Error(1)
}

func (m *mockProcessor) ChangePlan(ctx context.Context, req billing.PlanChangeRequest) (*billing.ProcessorSubscription, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProcessorSubscription), args.Error(1)
}

func (m *mockProcessor) CancelSubscription(ctx context.Context, subscriptionID string) (*billing.ProcessorSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProcessorSubscription), args.Error(1)
}

func (m *mockProcessor) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Event), args.Error(1)
}

func testCatalog(t *testing.T) *billing.Catalog {
	t.Helper()
	c, err := billing.DefaultCatalog()
	require.NoError(t, err)
	return c
}

func at(d time.Duration) time.Time { return baseTime.Add(d) }

func tptr(t time.Time) *time.Time { return &t }

// seed inserts a subscription on plan with the catalog limit and returns the stored record.
func seed(t *testing.T, store billing.Store, catalog *billing.Catalog, plan billing.Plan, status billing.Status, mutate ...func(*billing.Subscription)) *billing.Subscription {
	t.Helper()
	limit, err := catalog.LimitFor(plan)
	require.NoError(t, err)

	sub := &billing.Subscription{
		UserID:        uuid.New(),
		Plan:          plan,
		PropertyLimit: limit,
		Status:        status,
	}
	if status == billing.StatusTrial {
		sub.TrialEndsAt = tptr(at(10 * 24 * time.Hour))
	}
	for _, fn := range mutate {
		fn(sub)
	}
	stored, err := store.Create(context.Background(), sub)
	require.NoError(t, err)
	return stored
}

func linked(subID, customerID string, periodEnd time.Time) func(*billing.Subscription) {
	return func(s *billing.Subscription) {
		s.ExternalSubscriptionID = subID
		s.ExternalCustomerID = customerID
		s.CurrentPeriodEnd = &periodEnd
	}
}

// counterOf returns a property counter that reports n for every user.
func counterOf(n int64) billing.CounterFunc {
	return func(context.Context, uuid.UUID) (int64, error) { return n, nil }
}

func mustGet(t *testing.T, store billing.Store, userID uuid.UUID) *billing.Subscription {
	t.Helper()
	sub, err := store.Get(context.Background(), userID)
	require.NoError(t, err)
	return sub
}
