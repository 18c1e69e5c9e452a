package billing_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/propfin/svc/billing"
)

type orchestratorFixture struct {
	store     *billing.MemoryStore
	processor *mockProcessor
	catalog   *billing.Catalog
	registry  *prometheus.Registry
	usage     int64
	o         *billing.Orchestrator
}

func newOrchestratorFixture(t *testing.T, usage int64) *orchestratorFixture {
	t.Helper()
	clock := billing.FixedClock(baseTime)
	f := &orchestratorFixture{
		store:     billing.NewMemoryStore(clock),
		processor: &mockProcessor{},
		catalog:   testCatalog(t),
		registry:  prometheus.NewRegistry(),
		usage:     usage,
	}
	enforcer := billing.NewEnforcer(f.store,
		billing.WithEnforcerClock(clock),
		billing.WithCounter(billing.ResourceProperties, func(context.Context, uuid.UUID) (int64, error) {
			return f.usage, nil
		}))
	f.o = billing.NewOrchestrator(f.catalog, f.store, f.processor, enforcer,
		billing.WithClock(clock),
		billing.WithMetrics(billing.NewMetrics(f.registry)),
		billing.WithTrial(14, billing.PlanStarter),
		billing.WithRedirectURLs("https://app/ok", "https://app/cancel", "https://app/billing"),
	)
	t.Cleanup(func() { f.processor.AssertExpectations(t) })
	return f
}

func TestProvision(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 0)
	userID := uuid.New()

	sub, err := f.o.Provision(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusTrial, sub.Status)
	assert.Equal(t, billing.PlanStarter, sub.Plan)
	assert.Equal(t, 5, sub.PropertyLimit)
	require.NotNil(t, sub.TrialEndsAt)
	assert.Equal(t, baseTime.AddDate(0, 0, 14), *sub.TrialEndsAt)

	again, err := f.o.Provision(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, sub, again)
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("carries the remaining trial", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusTrial)

		f.processor.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req billing.CheckoutRequest) bool {
			return req.UserID == sub.UserID &&
				req.PriceID == "price_pro_yearly" &&
				req.CustomerEmail == "owner@example.com" &&
				req.SuccessURL == "https://app/ok" &&
				req.CancelURL == "https://app/cancel" &&
				req.TrialEnd != nil && req.TrialEnd.Equal(*sub.TrialEndsAt)
		})).Return(&billing.RedirectSession{ID: "cs_1", URL: "https://checkout/cs_1"}, nil)

		session, err := f.o.Checkout(ctx, billing.CheckoutInput{
			UserID: sub.UserID,
			Email:  "owner@example.com",
			Plan:   billing.PlanPro,
			Yearly: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://checkout/cs_1", session.URL)
	})

	t.Run("expiring trial is not carried", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusTrial, func(s *billing.Subscription) {
			s.TrialEndsAt = tptr(at(12 * time.Hour))
		})

		f.processor.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req billing.CheckoutRequest) bool {
			return req.TrialEnd == nil && req.SuccessURL == "https://custom/ok"
		})).Return(&billing.RedirectSession{ID: "cs_1", URL: "https://checkout/cs_1"}, nil)

		_, err := f.o.Checkout(ctx, billing.CheckoutInput{UserID: sub.UserID, Plan: billing.PlanStarter, SuccessURL: "https://custom/ok"})
		require.NoError(t, err)
	})

	t.Run("existing subscription must use a plan change", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusActive, linked("sub_1", "cus_1", at(time.Hour)))

		_, err := f.o.Checkout(ctx, billing.CheckoutInput{UserID: sub.UserID, Plan: billing.PlanBusiness})
		assert.ErrorIs(t, err, billing.ErrAlreadySubscribed)
	})

	t.Run("below the current plan", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusTrial)

		_, err := f.o.Checkout(ctx, billing.CheckoutInput{UserID: sub.UserID, Plan: billing.PlanStarter})
		assert.ErrorIs(t, err, billing.ErrCheckoutBelowCurrent)
	})

	t.Run("canceled account may pick any plan and reuses the customer", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanBusiness, billing.StatusCanceled, linked("sub_old", "cus_1", at(-time.Hour)))

		f.processor.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req billing.CheckoutRequest) bool {
			return req.CustomerID == "cus_1" && req.PriceID == "price_starter_monthly"
		})).Return(&billing.RedirectSession{ID: "cs_2", URL: "https://checkout/cs_2"}, nil)

		_, err := f.o.Checkout(ctx, billing.CheckoutInput{UserID: sub.UserID, Plan: billing.PlanStarter})
		require.NoError(t, err)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		_, err := f.o.Checkout(ctx, billing.CheckoutInput{UserID: uuid.New(), Plan: "GOLD"})
		assert.ErrorIs(t, err, billing.ErrPlanNotFound)
	})
}

func TestPortal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("requires a processor customer", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusTrial)
		_, err := f.o.Portal(ctx, sub.UserID, "")
		assert.ErrorIs(t, err, billing.ErrNoCustomer)
	})

	t.Run("opens the portal", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusActive, linked("sub_1", "cus_1", at(time.Hour)))
		f.processor.On("CreatePortalSession", mock.Anything, billing.PortalRequest{CustomerID: "cus_1", ReturnURL: "https://app/billing"}).
			Return(&billing.RedirectSession{ID: "bps_1", URL: "https://portal/bps_1"}, nil)

		s, err := f.o.Portal(ctx, sub.UserID, "")
		require.NoError(t, err)
		assert.Equal(t, "https://portal/bps_1", s.URL)
	})
}

func TestPreviewChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	periodEnd := at(20 * 24 * time.Hour)

	t.Run("upgrade is quoted for now", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))

		quote := &billing.ProrationPreview{ImmediateCharge: 1250, NextInvoiceAmount: 4900, Currency: "usd", EffectiveDate: baseTime}
		f.processor.On("PreviewPlanChange", mock.Anything, billing.PlanChangeRequest{
			SubscriptionID: "sub_1",
			PriceID:        "price_pro_monthly",
			Timing:         billing.ChangeImmediately,
		}).Return(quote, nil)

		preview, err := f.o.PreviewChange(ctx, sub.UserID, billing.PlanPro, false)
		require.NoError(t, err)
		assert.Equal(t, billing.DirectionUpgrade, preview.Direction)
		assert.EqualValues(t, 1250, preview.ImmediateCharge)
		assert.Equal(t, billing.PlanPro, preview.Target)

		assert.Equal(t, billing.PlanStarter, mustGet(t, f.store, sub.UserID).Plan, "preview must not write")
	})

	t.Run("downgrade is quoted for the period end", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanBusiness, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))

		f.processor.On("PreviewPlanChange", mock.Anything, mock.MatchedBy(func(req billing.PlanChangeRequest) bool {
			return req.Timing == billing.ChangeAtPeriodEnd
		})).Return(&billing.ProrationPreview{NextInvoiceAmount: 900, Currency: "usd", EffectiveDate: periodEnd}, nil)

		preview, err := f.o.PreviewChange(ctx, sub.UserID, billing.PlanStarter, false)
		require.NoError(t, err)
		assert.Equal(t, billing.DirectionDowngrade, preview.Direction)
		assert.Equal(t, periodEnd, preview.EffectiveDate)
	})

	t.Run("same plan", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))
		_, err := f.o.PreviewChange(ctx, sub.UserID, billing.PlanPro, false)
		assert.ErrorIs(t, err, billing.ErrSamePlan)
	})

	t.Run("trial without processor subscription", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusTrial)
		_, err := f.o.PreviewChange(ctx, sub.UserID, billing.PlanPro, false)
		assert.ErrorIs(t, err, billing.ErrNoActiveSubscription)
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusCanceled, linked("sub_1", "cus_1", periodEnd))
		_, err := f.o.PreviewChange(ctx, sub.UserID, billing.PlanPro, false)
		assert.ErrorIs(t, err, billing.ErrSubscriptionCanceled)
	})
}

func TestApplyChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	periodEnd := at(20 * 24 * time.Hour)

	t.Run("downgrade blocked by usage", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 40)
		sub := seed(t, f.store, f.catalog, billing.PlanBusiness, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))

		_, err := f.o.ApplyChange(ctx, sub.UserID, billing.PlanStarter, false)
		require.ErrorIs(t, err, billing.ErrDowngradeBlocked)

		var de *billing.DowngradeBlockedError
		require.ErrorAs(t, err, &de)
		assert.EqualValues(t, 40, de.Current)
		assert.EqualValues(t, 5, de.Limit)
		assert.Contains(t, err.Error(), "40 properties in use, plan allows 5")

		f.processor.AssertNotCalled(t, "ChangePlan", mock.Anything, mock.Anything)
		got := mustGet(t, f.store, sub.UserID)
		assert.Equal(t, billing.PlanBusiness, got.Plan)
		assert.Nil(t, got.ScheduledPlan)

		expected := `
# HELP billing_plan_changes_total Plan change requests by direction and result.
# TYPE billing_plan_changes_total counter
billing_plan_changes_total{direction="downgrade",result="error"} 1
`
		assert.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "billing_plan_changes_total"))
	})

	t.Run("downgrade within usage is scheduled", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 4)
		sub := seed(t, f.store, f.catalog, billing.PlanBusiness, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))

		remote := remoteSub("sub_1", "price_starter_monthly", billing.StatusActive, periodEnd)
		f.processor.On("ChangePlan", mock.Anything, billing.PlanChangeRequest{
			SubscriptionID: "sub_1",
			PriceID:        "price_starter_monthly",
			Timing:         billing.ChangeAtPeriodEnd,
		}).Return(&remote, nil)

		res, err := f.o.ApplyChange(ctx, sub.UserID, billing.PlanStarter, false)
		require.NoError(t, err)
		assert.Equal(t, billing.DirectionDowngrade, res.Direction)
		assert.Equal(t, billing.PlanBusiness, res.Plan)
		require.NotNil(t, res.ScheduledPlan)
		assert.Equal(t, billing.PlanStarter, *res.ScheduledPlan)
		assert.Equal(t, periodEnd, *res.ScheduledPlanDate)

		got := mustGet(t, f.store, sub.UserID)
		assert.Equal(t, billing.PlanBusiness, got.Plan)
		assert.Equal(t, 50, got.PropertyLimit)
		assert.Equal(t, billing.PlanStarter, *got.ScheduledPlan)
	})

	t.Run("usage equal to the target limit is allowed", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 20)
		sub := seed(t, f.store, f.catalog, billing.PlanBusiness, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))

		remote := remoteSub("sub_1", "price_pro_monthly", billing.StatusActive, periodEnd)
		f.processor.On("ChangePlan", mock.Anything, mock.Anything).Return(&remote, nil)

		_, err := f.o.ApplyChange(ctx, sub.UserID, billing.PlanPro, false)
		require.NoError(t, err)
	})

	t.Run("upgrade applies at once", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 5)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))

		remote := remoteSub("sub_1", "price_business_yearly", billing.StatusActive, periodEnd)
		f.processor.On("ChangePlan", mock.Anything, billing.PlanChangeRequest{
			SubscriptionID: "sub_1",
			PriceID:        "price_business_yearly",
			Timing:         billing.ChangeImmediately,
		}).Return(&remote, nil)

		res, err := f.o.ApplyChange(ctx, sub.UserID, billing.PlanBusiness, true)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanBusiness, res.Plan)
		assert.False(t, res.Pending)

		got := mustGet(t, f.store, sub.UserID)
		assert.Equal(t, billing.PlanBusiness, got.Plan)
		assert.Equal(t, 50, got.PropertyLimit)
	})

	t.Run("upgrade drops a pending downgrade", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 1)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusActive, linked("sub_1", "cus_1", periodEnd), func(s *billing.Subscription) {
			plan := billing.PlanStarter
			s.ScheduledPlan = &plan
			s.ScheduledPlanDate = &periodEnd
		})

		remote := remoteSub("sub_1", "price_business_monthly", billing.StatusActive, periodEnd)
		f.processor.On("ChangePlan", mock.Anything, mock.Anything).Return(&remote, nil)

		_, err := f.o.ApplyChange(ctx, sub.UserID, billing.PlanBusiness, false)
		require.NoError(t, err)
		assert.Nil(t, mustGet(t, f.store, sub.UserID).ScheduledPlan)
	})

	t.Run("re-selecting the current plan cancels the scheduled downgrade", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 1)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusActive, linked("sub_1", "cus_1", periodEnd), func(s *billing.Subscription) {
			plan := billing.PlanStarter
			s.ScheduledPlan = &plan
			s.ScheduledPlanDate = &periodEnd
		})

		remote := remoteSub("sub_1", "price_pro_monthly", billing.StatusActive, periodEnd)
		f.processor.On("ChangePlan", mock.Anything, billing.PlanChangeRequest{
			SubscriptionID: "sub_1",
			PriceID:        "price_pro_monthly",
			Timing:         billing.ChangeAtPeriodEnd,
		}).Return(&remote, nil)

		res, err := f.o.ApplyChange(ctx, sub.UserID, billing.PlanPro, false)
		require.NoError(t, err)
		assert.Equal(t, billing.DirectionCancelDowngrade, res.Direction)
		assert.Nil(t, res.ScheduledPlan)
		assert.Nil(t, mustGet(t, f.store, sub.UserID).ScheduledPlan)
	})

	t.Run("cancellation delivered during an upgrade wins", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 1)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))

		remote := remoteSub("sub_1", "price_pro_monthly", billing.StatusActive, periodEnd)
		f.processor.On("ChangePlan", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				canceled := billing.StatusCanceled
				_, err := f.store.Update(ctx, sub.UserID, billing.Patch{Status: &canceled}, nil)
				require.NoError(t, err)
			}).
			Return(&remote, nil)

		_, err := f.o.ApplyChange(ctx, sub.UserID, billing.PlanPro, false)
		require.ErrorIs(t, err, billing.ErrSubscriptionCanceled)

		got := mustGet(t, f.store, sub.UserID)
		assert.Equal(t, billing.StatusCanceled, got.Status)
		assert.Equal(t, billing.PlanStarter, got.Plan)
		assert.Equal(t, 5, got.PropertyLimit)
	})

	t.Run("upgrade already applied by a webhook is not reapplied", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 1)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))

		remote := remoteSub("sub_1", "price_pro_monthly", billing.StatusActive, periodEnd)
		f.processor.On("ChangePlan", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				pro, err := f.catalog.Assign(billing.PlanPro)
				require.NoError(t, err)
				_, err = f.store.Update(ctx, sub.UserID, billing.Patch{Plan: &pro}, nil)
				require.NoError(t, err)
			}).
			Return(&remote, nil)

		res, err := f.o.ApplyChange(ctx, sub.UserID, billing.PlanPro, false)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanPro, res.Plan)
		assert.Equal(t, billing.DirectionCancelDowngrade, res.Direction)
		assert.Equal(t, 20, mustGet(t, f.store, sub.UserID).PropertyLimit)
	})

	t.Run("processor failure leaves the record untouched", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 1)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusActive, linked("sub_1", "cus_1", periodEnd))

		f.processor.On("ChangePlan", mock.Anything, mock.Anything).
			Return(nil, errors.Join(billing.ErrProcessorUnavailable, errors.New("timeout")))

		_, err := f.o.ApplyChange(ctx, sub.UserID, billing.PlanPro, false)
		assert.True(t, billing.IsTransient(err))
		assert.Equal(t, billing.PlanStarter, mustGet(t, f.store, sub.UserID).Plan)
	})
}

func TestCancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("cancels at the processor and locally", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusActive, linked("sub_1", "cus_1", at(time.Hour)))

		remote := remoteSub("sub_1", "price_pro_monthly", billing.StatusCanceled, at(time.Hour))
		f.processor.On("CancelSubscription", mock.Anything, "sub_1").Return(&remote, nil).Once()

		status, err := f.o.Cancel(ctx, sub.UserID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, status)

		got := mustGet(t, f.store, sub.UserID)
		assert.Equal(t, billing.StatusCanceled, got.Status)
		assert.Equal(t, 20, got.PropertyLimit)

		// A second cancel does not call the processor again.
		status, err = f.o.Cancel(ctx, sub.UserID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, status)
	})

	t.Run("local-only trial", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusTrial)

		status, err := f.o.Cancel(ctx, sub.UserID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, status)
		assert.Nil(t, mustGet(t, f.store, sub.UserID).TrialEndsAt)
	})

	t.Run("subscription already gone at the processor", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusActive, linked("sub_gone", "cus_1", at(time.Hour)))

		f.processor.On("CancelSubscription", mock.Anything, "sub_gone").
			Return(nil, errors.Join(billing.ErrProcessorSubscriptionNotFound, errors.New("resource_missing")))

		status, err := f.o.Cancel(ctx, sub.UserID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, status)
		assert.Equal(t, billing.StatusCanceled, mustGet(t, f.store, sub.UserID).Status)
	})

	t.Run("soft cancel of an account whose processor subscription is gone", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusActive, linked("sub_gone", "cus_1", at(time.Hour)))

		f.processor.On("CancelSubscription", mock.Anything, "sub_gone").
			Return(nil, errors.Join(billing.ErrProcessorSubscriptionNotFound, errors.New("resource_missing")))

		require.NoError(t, f.o.SoftCancel(ctx, sub.UserID))
		assert.Equal(t, billing.StatusCanceled, mustGet(t, f.store, sub.UserID).Status)
	})

	t.Run("soft cancel surfaces processor outages", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusActive, linked("sub_1", "cus_1", at(time.Hour)))

		f.processor.On("CancelSubscription", mock.Anything, "sub_1").
			Return(nil, errors.Join(billing.ErrProcessorUnavailable, errors.New("timeout")))

		assert.ErrorIs(t, f.o.SoftCancel(ctx, sub.UserID), billing.ErrProcessorUnavailable)
		assert.Equal(t, billing.StatusActive, mustGet(t, f.store, sub.UserID).Status)
	})

	t.Run("soft cancel tolerates a missing record", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		assert.NoError(t, f.o.SoftCancel(ctx, uuid.New()))
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("trial with room", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 3)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusTrial)

		ov, err := f.o.Status(ctx, sub.UserID)
		require.NoError(t, err)
		assert.True(t, ov.CanCreateProperties)
		require.NotNil(t, ov.Trial.DaysRemaining)
		assert.Equal(t, 10, *ov.Trial.DaysRemaining)
		assert.Equal(t, billing.Usage{Current: 3, Limit: 5, Allowed: true}, ov.Usage)
	})

	t.Run("at the limit", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 5)
		sub := seed(t, f.store, f.catalog, billing.PlanStarter, billing.StatusActive)

		ov, err := f.o.Status(ctx, sub.UserID)
		require.NoError(t, err)
		assert.False(t, ov.CanCreateProperties)
		assert.True(t, ov.Trial.CanMutate)
	})

	t.Run("past due with room", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		sub := seed(t, f.store, f.catalog, billing.PlanPro, billing.StatusPastDue)

		ov, err := f.o.Status(ctx, sub.UserID)
		require.NoError(t, err)
		assert.False(t, ov.CanCreateProperties)
		assert.Equal(t, billing.BlockPastDue, ov.Trial.Reason)
	})

	t.Run("missing subscription", func(t *testing.T) {
		t.Parallel()
		f := newOrchestratorFixture(t, 0)
		_, err := f.o.Status(ctx, uuid.New())
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})
}
