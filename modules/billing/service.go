package billing

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrymomot/propfin/core"
	"github.com/dmitrymomot/propfin/pkg/ratelimiter"
	"github.com/dmitrymomot/propfin/svc/auth"
	"github.com/dmitrymomot/propfin/svc/billing"
)

// Orchestrator is the part of the billing engine the HTTP layer drives.
type Orchestrator interface {
	Provision(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error)
	Checkout(ctx context.Context, in billing.CheckoutInput) (*billing.RedirectSession, error)
	Portal(ctx context.Context, userID uuid.UUID, returnURL string) (*billing.RedirectSession, error)
	PreviewChange(ctx context.Context, userID uuid.UUID, target billing.Plan, yearly bool) (*billing.ChangePreview, error)
	ApplyChange(ctx context.Context, userID uuid.UUID, target billing.Plan, yearly bool) (*billing.ChangeResult, error)
	Cancel(ctx context.Context, userID uuid.UUID) (billing.Status, error)
	SoftCancel(ctx context.Context, userID uuid.UUID) error
	Status(ctx context.Context, userID uuid.UUID) (*billing.Overview, error)
}

type checkoutRequest struct {
	Plan       string `json:"plan" validate:"required,oneof=STARTER PRO BUSINESS"`
	Yearly     bool   `json:"yearly"`
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

type portalRequest struct {
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
}

type planChangeRequest struct {
	Plan   string `json:"plan" validate:"required,oneof=STARTER PRO BUSINESS"`
	Yearly bool   `json:"yearly"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

type cancelResponse struct {
	Status billing.Status `json:"status"`
}

// Service serves the account owner's billing API. Every route requires
// an authenticated caller.
type Service struct {
	orchestrator Orchestrator
	validate     *validator.Validate
	errorHandler core.ErrorHandler
	limiter      ratelimiter.Limiter
}

type ServiceOption func(*Service)

// WithLimiter throttles the routes that call the payment processor, per account.
func WithLimiter(l ratelimiter.Limiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// NewService creates the billing API. A nil errorHandler falls back to the
// default JSON handler with MapError.
func NewService(orchestrator Orchestrator, errorHandler core.ErrorHandler, opts ...ServiceOption) *Service {
	if errorHandler == nil {
		errorHandler = core.NewErrorHandler(nil, MapError)
	}
	s := &Service{
		orchestrator: orchestrator,
		validate:     core.NewValidator(),
		errorHandler: errorHandler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Middleware)

	withBody := []core.WrapOption{core.WithBinders(core.BindJSON(s.validate)), core.WithErrorHandler(s.errorHandler)}
	noBody := []core.WrapOption{core.WithErrorHandler(s.errorHandler)}

	r.Get("/status", core.Wrap(s.status, noBody...))

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimiter.Middleware(s.limiter, accountKey, ratelimiter.WithDeniedHandler(s.throttled)))
		}
		r.Post("/checkout", core.Wrap(s.checkout, withBody...))
		r.Post("/portal", core.Wrap(s.portal, withBody...))
		r.Post("/plan", core.Wrap(s.changePlan, withBody...))
		r.Post("/plan/preview", core.Wrap(s.previewPlan, withBody...))
		r.Post("/cancel", core.Wrap(s.cancel, noBody...))
	})

	return r
}

func accountKey(r *http.Request) string {
	return "billing:" + auth.UserID(r.Context()).String()
}

func (s *Service) throttled(w http.ResponseWriter, r *http.Request, _ *ratelimiter.Result, err error) {
	if err != nil {
		s.errorHandler(w, r, err)
		return
	}
	core.WriteError(w, errRateLimited)
}

func (s *Service) checkout(r *http.Request, req checkoutRequest) core.Response {
	id, _ := auth.FromContext(r.Context())
	plan, err := billing.ParsePlan(req.Plan)
	if err != nil {
		return core.Error(err)
	}
	session, err := s.orchestrator.Checkout(r.Context(), billing.CheckoutInput{
		UserID:     id.UserID,
		Email:      id.Email,
		Plan:       plan,
		Yearly:     req.Yearly,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return core.Error(err)
	}
	return core.OK(redirectResponse{URL: session.URL})
}

func (s *Service) portal(r *http.Request, req portalRequest) core.Response {
	session, err := s.orchestrator.Portal(r.Context(), auth.UserID(r.Context()), req.ReturnURL)
	if err != nil {
		return core.Error(err)
	}
	return core.OK(redirectResponse{URL: session.URL})
}

func (s *Service) changePlan(r *http.Request, req planChangeRequest) core.Response {
	plan, err := billing.ParsePlan(req.Plan)
	if err != nil {
		return core.Error(err)
	}
	res, err := s.orchestrator.ApplyChange(r.Context(), auth.UserID(r.Context()), plan, req.Yearly)
	if err != nil {
		return core.Error(err)
	}
	if res.Pending {
		return core.JSON(http.StatusAccepted, res)
	}
	return core.OK(res)
}

func (s *Service) previewPlan(r *http.Request, req planChangeRequest) core.Response {
	plan, err := billing.ParsePlan(req.Plan)
	if err != nil {
		return core.Error(err)
	}
	preview, err := s.orchestrator.PreviewChange(r.Context(), auth.UserID(r.Context()), plan, req.Yearly)
	if err != nil {
		return core.Error(err)
	}
	return core.OK(preview)
}

func (s *Service) cancel(r *http.Request, _ struct{}) core.Response {
	status, err := s.orchestrator.Cancel(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		return core.Error(err)
	}
	return core.OK(cancelResponse{Status: status})
}

func (s *Service) status(r *http.Request, _ struct{}) core.Response {
	overview, err := s.orchestrator.Status(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		return core.Error(err)
	}
	return core.OK(overview)
}
