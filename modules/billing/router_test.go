package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/propfin/core"
	billingmod "github.com/dmitrymomot/propfin/modules/billing"
	"github.com/dmitrymomot/propfin/pkg/ratelimiter"
	"github.com/dmitrymomot/propfin/svc/auth"
	"github.com/dmitrymomot/propfin/svc/billing"
)

type mockOrchestrator struct{ mock.Mock }

func (m *mockOrchestrator) Provision(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error) {
	args := m.Called(ctx, userID)
	sub, _ := args.Get(0).(*billing.Subscription)
	return sub, args.Error(1)
}

func (m *mockOrchestrator) Checkout(ctx context.Context, in billing.CheckoutInput) (*billing.RedirectSession, error) {
	args := m.Called(ctx, in)
	s, _ := args.Get(0).(*billing.RedirectSession)
	return s, args.Error(1)
}

func (m *mockOrchestrator) Portal(ctx context.Context, userID uuid.UUID, returnURL string) (*billing.RedirectSession, error) {
	args := m.Called(ctx, userID, returnURL)
	s, _ := args.Get(0).(*billing.RedirectSession)
	return s, args.Error(1)
}

func (m *mockOrchestrator) PreviewChange(ctx context.Context, userID uuid.UUID, target billing.Plan, yearly bool) (*billing.ChangePreview, error) {
	args := m.Called(ctx, userID, target, yearly)
	p, _ := args.Get(0).(*billing.ChangePreview)
	return p, args.Error(1)
}

func (m *mockOrchestrator) ApplyChange(ctx context.Context, userID uuid.UUID, target billing.Plan, yearly bool) (*billing.ChangeResult, error) {
	args := m.Called(ctx, userID, target, yearly)
	r, _ := args.Get(0).(*billing.ChangeResult)
	return r, args.Error(1)
}

func (m *mockOrchestrator) Cancel(ctx context.Context, userID uuid.UUID) (billing.Status, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(billing.Status), args.Error(1)
}

func (m *mockOrchestrator) SoftCancel(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockOrchestrator) Status(ctx context.Context, userID uuid.UUID) (*billing.Overview, error) {
	args := m.Called(ctx, userID)
	o, _ := args.Get(0).(*billing.Overview)
	return o, args.Error(1)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Verify(payload []byte, signature string) (*billing.Event, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(*billing.Event)
	return ev, args.Error(1)
}

func (m *mockDispatcher) Dispatch(ctx context.Context, ev *billing.Event) billing.Result {
	return m.Called(ctx, ev).Get(0).(billing.Result)
}

type envelope struct {
	Data  json.RawMessage   `json:"data"`
	Error *core.ErrorDetail `json:"error"`
}

const internalToken = "s3cret"

func newRouter(orch *mockOrchestrator, disp *mockDispatcher) http.Handler {
	errs := core.NewErrorHandler(nil, billingmod.MapError)
	return billingmod.Router(billingmod.RouterOptions{
		Billing:      billingmod.NewService(orch, errs),
		Webhook:      billingmod.NewWebhookService(disp, nil),
		Provisioning: billingmod.NewProvisioningService(orch, internalToken, errs),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func asUser(id uuid.UUID) map[string]string {
	return map[string]string{
		auth.HeaderUserID:    id.String(),
		auth.HeaderUserEmail: "owner@example.com",
	}
}

func TestBillingRoutesRequireIdentity(t *testing.T) {
	t.Parallel()

	orch := &mockOrchestrator{}
	h := newRouter(orch, &mockDispatcher{})

	rec, env := do(t, h, http.MethodGet, "/billing/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthorized", env.Error.Code)
	orch.AssertNotCalled(t, "Status", mock.Anything, mock.Anything)
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("returns the redirect url", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		orch.On("Checkout", mock.Anything, billing.CheckoutInput{
			UserID: userID,
			Email:  "owner@example.com",
			Plan:   billing.PlanPro,
			Yearly: true,
		}).Return(&billing.RedirectSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil)

		rec, env := do(t, newRouter(orch, nil), http.MethodPost, "/billing/checkout",
			`{"plan":"PRO","yearly":true}`, asUser(userID))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"url":"https://checkout.example/cs_1"}`, string(env.Data))
		orch.AssertExpectations(t)
	})

	t.Run("unknown plan fails validation", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		rec, env := do(t, newRouter(orch, nil), http.MethodPost, "/billing/checkout",
			`{"plan":"ENTERPRISE"}`, asUser(userID))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
		assert.Contains(t, env.Error.Details, "plan")
		orch.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything)
	})

	t.Run("already subscribed", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		orch.On("Checkout", mock.Anything, mock.Anything).Return(nil, billing.ErrAlreadySubscribed)

		rec, env := do(t, newRouter(orch, nil), http.MethodPost, "/billing/checkout",
			`{"plan":"BUSINESS"}`, asUser(userID))
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "already_subscribed", env.Error.Code)
	})

	t.Run("processor failure", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		orch.On("Checkout", mock.Anything, mock.Anything).
			Return(nil, errors.Join(billing.ErrProcessorUnavailable, errors.New("timeout")))

		rec, env := do(t, newRouter(orch, nil), http.MethodPost, "/billing/checkout",
			`{"plan":"PRO"}`, asUser(userID))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		require.NotNil(t, env.Error)
		assert.NotContains(t, env.Error.Message, "timeout")
	})
}

func TestPortal(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	orch := &mockOrchestrator{}
	orch.On("Portal", mock.Anything, userID, "https://app.example/billing").
		Return(&billing.RedirectSession{URL: "https://portal.example/p_1"}, nil)

	rec, env := do(t, newRouter(orch, nil), http.MethodPost, "/billing/portal",
		`{"return_url":"https://app.example/billing"}`, asUser(userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://portal.example/p_1"}`, string(env.Data))
}

func TestChangePlan(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("upgrade", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		orch.On("ApplyChange", mock.Anything, userID, billing.PlanBusiness, false).
			Return(&billing.ChangeResult{Plan: billing.PlanBusiness, Direction: billing.DirectionUpgrade}, nil)

		rec, env := do(t, newRouter(orch, nil), http.MethodPost, "/billing/plan",
			`{"plan":"BUSINESS"}`, asUser(userID))
		require.Equal(t, http.StatusOK, rec.Code)
		var res billing.ChangeResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, billing.PlanBusiness, res.Plan)
	})

	t.Run("pending local write is accepted", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		orch.On("ApplyChange", mock.Anything, userID, billing.PlanPro, false).
			Return(&billing.ChangeResult{Plan: billing.PlanPro, Direction: billing.DirectionUpgrade, Pending: true}, nil)

		rec, _ := do(t, newRouter(orch, nil), http.MethodPost, "/billing/plan", `{"plan":"PRO"}`, asUser(userID))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("downgrade blocked by usage", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		orch.On("ApplyChange", mock.Anything, userID, billing.PlanStarter, false).
			Return(nil, &billing.DowngradeBlockedError{
				Resource: billing.ResourceProperties,
				Target:   billing.PlanStarter,
				Current:  12,
				Limit:    5,
			})

		rec, env := do(t, newRouter(orch, nil), http.MethodPost, "/billing/plan", `{"plan":"STARTER"}`, asUser(userID))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "downgrade_blocked", env.Error.Code)
		assert.EqualValues(t, 12, env.Error.Details["current"])
		assert.EqualValues(t, 5, env.Error.Details["limit"])
		assert.Equal(t, "STARTER", env.Error.Details["target_plan"])
	})

	t.Run("same plan", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		orch.On("ApplyChange", mock.Anything, userID, billing.PlanPro, true).Return(nil, billing.ErrSamePlan)

		rec, env := do(t, newRouter(orch, nil), http.MethodPost, "/billing/plan",
			`{"plan":"PRO","yearly":true}`, asUser(userID))
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "same_plan", env.Error.Code)
	})

	t.Run("preview", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		orch.On("PreviewChange", mock.Anything, userID, billing.PlanBusiness, false).
			Return(&billing.ChangePreview{Target: billing.PlanBusiness, Direction: billing.DirectionUpgrade}, nil)

		rec, env := do(t, newRouter(orch, nil), http.MethodPost, "/billing/plan/preview",
			`{"plan":"BUSINESS"}`, asUser(userID))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), `"direction":"upgrade"`)
	})
}

func TestCancelAndStatus(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	orch := &mockOrchestrator{}
	orch.On("Cancel", mock.Anything, userID).Return(billing.StatusCanceled, nil)
	orch.On("Status", mock.Anything, userID).Return(&billing.Overview{
		Subscription: &billing.Subscription{UserID: userID, Plan: billing.PlanStarter, Status: billing.StatusTrial},
		Usage:        billing.Usage{Current: 5, Limit: 5},
	}, nil)
	h := newRouter(orch, nil)

	rec, env := do(t, h, http.MethodPost, "/billing/cancel", "", asUser(userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"CANCELED"}`, string(env.Data))

	rec, env = do(t, h, http.MethodGet, "/billing/status", "", asUser(userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"can_create_properties":false`)
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	payload := `{"id":"evt_1"}`

	t.Run("bad signature is rejected before dispatch", func(t *testing.T) {
		t.Parallel()
		disp := &mockDispatcher{}
		disp.On("Verify", []byte(payload), "t=1,v1=bad").Return(nil, billing.ErrInvalidSignature)

		rec, env := do(t, newRouter(&mockOrchestrator{}, disp), http.MethodPost, "/billing/webhook", payload,
			map[string]string{billingmod.SignatureHeader: "t=1,v1=bad"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_signature", env.Error.Code)
		disp.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	})

	t.Run("acknowledged without identity headers", func(t *testing.T) {
		t.Parallel()
		ev := &billing.Event{ID: "evt_1", Type: "customer.created", Payload: billing.Unsupported{}}
		disp := &mockDispatcher{}
		disp.On("Verify", []byte(payload), "sig").Return(ev, nil)
		disp.On("Dispatch", mock.Anything, ev).
			Return(billing.Result{EventID: "evt_1", EventType: "customer.created", Outcome: billing.OutcomeIgnored})

		rec, env := do(t, newRouter(&mockOrchestrator{}, disp), http.MethodPost, "/billing/webhook", payload,
			map[string]string{billingmod.SignatureHeader: "sig"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), `"outcome":"ignored"`)
	})

	t.Run("transient failure asks for redelivery", func(t *testing.T) {
		t.Parallel()
		ev := &billing.Event{ID: "evt_2", Type: "invoice.payment_failed"}
		disp := &mockDispatcher{}
		disp.On("Verify", mock.Anything, "sig").Return(ev, nil)
		disp.On("Dispatch", mock.Anything, ev).
			Return(billing.Result{EventID: "evt_2", Outcome: billing.OutcomeRetry, Err: billing.ErrStoreUnavailable})

		rec, _ := do(t, newRouter(&mockOrchestrator{}, disp), http.MethodPost, "/billing/webhook", payload,
			map[string]string{billingmod.SignatureHeader: "sig"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("oversized payload", func(t *testing.T) {
		t.Parallel()
		disp := &mockDispatcher{}
		big := `{"pad":"` + strings.Repeat("x", billingmod.MaxWebhookBody) + `"}`

		rec, _ := do(t, newRouter(&mockOrchestrator{}, disp), http.MethodPost, "/billing/webhook", big,
			map[string]string{billingmod.SignatureHeader: "sig"})
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		disp.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})
}

func TestProvisioning(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	bearer := map[string]string{"Authorization": "Bearer " + internalToken}

	t.Run("requires the internal token", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		rec, _ := do(t, newRouter(orch, nil), http.MethodPost,
			"/internal/accounts/"+userID.String()+"/subscription", "",
			map[string]string{"Authorization": "Bearer wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		orch.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
	})

	t.Run("provisions a trial", func(t *testing.T) {
		t.Parallel()
		trialEnds := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
		orch := &mockOrchestrator{}
		orch.On("Provision", mock.Anything, userID).Return(&billing.Subscription{
			UserID:        userID,
			Plan:          billing.PlanStarter,
			Status:        billing.StatusTrial,
			PropertyLimit: 5,
			TrialEndsAt:   &trialEnds,
		}, nil)

		rec, env := do(t, newRouter(orch, nil), http.MethodPost,
			"/internal/accounts/"+userID.String()+"/subscription", "", bearer)
		require.Equal(t, http.StatusCreated, rec.Code)
		var sub billing.Subscription
		require.NoError(t, json.Unmarshal(env.Data, &sub))
		assert.Equal(t, billing.StatusTrial, sub.Status)
		assert.Equal(t, 5, sub.PropertyLimit)
	})

	t.Run("soft cancel", func(t *testing.T) {
		t.Parallel()
		orch := &mockOrchestrator{}
		orch.On("SoftCancel", mock.Anything, userID).Return(nil)

		rec, _ := do(t, newRouter(orch, nil), http.MethodDelete,
			"/internal/accounts/"+userID.String()+"/subscription", "", bearer)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		orch.AssertExpectations(t)
	})

	t.Run("malformed user id", func(t *testing.T) {
		t.Parallel()
		rec, env := do(t, newRouter(&mockOrchestrator{}, nil), http.MethodDelete,
			"/internal/accounts/not-a-uuid/subscription", "", bearer)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
	})
}

func TestProcessorRoutesAreThrottledPerAccount(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(store.Close)
	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Minute})
	require.NoError(t, err)

	alice, bob := uuid.New(), uuid.New()
	orch := &mockOrchestrator{}
	orch.On("Cancel", mock.Anything, mock.Anything).Return(billing.StatusCanceled, nil)
	orch.On("Status", mock.Anything, alice).Return(&billing.Overview{}, nil)
	h := billingmod.Router(billingmod.RouterOptions{
		Billing: billingmod.NewService(orch, nil, billingmod.WithLimiter(limiter)),
	})

	rec, _ := do(t, h, http.MethodPost, "/billing/cancel", "", asUser(alice))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/billing/cancel", "", asUser(alice))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "rate_limited", env.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = do(t, h, http.MethodPost, "/billing/cancel", "", asUser(bob))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/billing/status", "", asUser(alice))
	assert.Equal(t, http.StatusOK, rec.Code, "status reads are not throttled")
}
