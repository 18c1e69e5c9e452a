package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/propfin/pkg/logger"
)

// Direction names the kind of plan change.
type Direction string

const (
	DirectionUpgrade         Direction = "upgrade"
	DirectionDowngrade       Direction = "downgrade"
	DirectionCancelDowngrade Direction = "cancel_downgrade"
)

// ChangePreview is a read-only proration quote.
type ChangePreview struct {
	ProrationPreview
	Target    Plan      `json:"target_plan"`
	Direction Direction `json:"direction"`
}

// ChangeResult describes an accepted plan change. Plan is the live plan
// after the request; downgrades keep it and report the schedule instead.
// Pending is set when the processor accepted the change but the local
// record could not be written; the next webhook reconciles it.
type ChangeResult struct {
	Plan              Plan       `json:"plan"`
	Direction         Direction  `json:"direction"`
	ScheduledPlan     *Plan      `json:"scheduled_plan,omitempty"`
	ScheduledPlanDate *time.Time `json:"scheduled_plan_date,omitempty"`
	Pending           bool       `json:"pending"`
}

// CheckoutInput is a request to start a hosted checkout.
type CheckoutInput struct {
	UserID     uuid.UUID
	Email      string
	Plan       Plan
	Yearly     bool
	SuccessURL string
	CancelURL  string
}

// Overview is the usage/status snapshot shown to the account owner.
type Overview struct {
	Subscription        *Subscription `json:"subscription"`
	Trial               TrialState    `json:"trial"`
	Usage               Usage         `json:"usage"`
	CanCreateProperties bool          `json:"can_create_properties"`
}

// Orchestrator handles user-initiated billing actions. Processor calls always
// come first; local state is written only after the processor accepted them.
type Orchestrator struct {
	catalog   *Catalog
	store     Store
	processor Processor
	enforcer  *Enforcer
	updater   updater
	clock     Clock
	metrics   *Metrics
	log       *slog.Logger

	trialDays       int
	trialPlan       Plan
	successURL      string
	cancelURL       string
	portalReturnURL string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

func WithClock(c Clock) OrchestratorOption {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTrial sets the trial granted at provisioning.
func WithTrial(days int, plan Plan) OrchestratorOption {
	return func(o *Orchestrator) {
		o.trialDays = days
		o.trialPlan = plan
	}
}

// WithConflictRetries sets how many times a conflicting write is re-read and retried.
func WithConflictRetries(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.updater.retries = max(n, 0) }
}

// WithRedirectURLs sets the default processor redirect targets.
func WithRedirectURLs(success, cancel, portalReturn string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.successURL = success
		o.cancelURL = cancel
		o.portalReturnURL = portalReturn
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(catalog *Catalog, store Store, processor Processor, enforcer *Enforcer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		catalog:   catalog,
		store:     store,
		processor: processor,
		enforcer:  enforcer,
		updater:   updater{store: store, retries: 1},
		clock:     SystemClock,
		log:       discardLogger(),
		trialDays: 14,
		trialPlan: PlanStarter,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Provision creates the TRIAL record for a new account. Calling it again
// returns the existing record.
func (o *Orchestrator) Provision(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	assignment, err := o.catalog.Assign(o.trialPlan)
	if err != nil {
		return nil, err
	}
	trialEnds := o.clock.Now().AddDate(0, 0, o.trialDays)
	sub, err := o.store.Create(ctx, &Subscription{
		UserID:        userID,
		Plan:          assignment.Plan,
		PropertyLimit: assignment.PropertyLimit,
		Status:        StatusTrial,
		TrialEndsAt:   &trialEnds,
	})
	if errors.Is(err, ErrSubscriptionExists) {
		return o.store.Get(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	o.log.InfoContext(ctx, "subscription provisioned",
		logger.UserID(userID), logger.Plan(string(sub.Plan)))
	return sub, nil
}

// Checkout starts a hosted checkout. The plan must be at or above the
// current one unless the subscription is canceled.
func (o *Orchestrator) Checkout(ctx context.Context, in CheckoutInput) (*RedirectSession, error) {
	priceID, err := o.catalog.PriceIDFor(in.Plan, in.Yearly)
	if err != nil {
		return nil, err
	}
	sub, err := o.store.Get(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if sub.Status != StatusCanceled && sub.ExternalSubscriptionID != "" {
		return nil, ErrAlreadySubscribed
	}
	if sub.Status != StatusCanceled {
		diff, err := o.catalog.Compare(sub.Plan, in.Plan)
		if err != nil {
			return nil, err
		}
		if diff < 0 {
			return nil, ErrCheckoutBelowCurrent
		}
	}

	req := CheckoutRequest{
		UserID:        in.UserID,
		CustomerID:    sub.ExternalCustomerID,
		CustomerEmail: in.Email,
		Plan:          in.Plan,
		PriceID:       priceID,
		SuccessURL:    firstNonEmpty(in.SuccessURL, o.successURL),
		CancelURL:     firstNonEmpty(in.CancelURL, o.cancelURL),
	}
	// Carry the unused part of a local trial over to the processor.
	if sub.Status == StatusTrial && sub.TrialEndsAt != nil && sub.TrialEndsAt.Sub(o.clock.Now()) > 48*time.Hour {
		req.TrialEnd = sub.TrialEndsAt
	}

	session, err := o.processor.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, err
	}
	o.log.InfoContext(ctx, "checkout session created",
		logger.UserID(in.UserID), logger.Plan(string(in.Plan)))
	return session, nil
}

// Portal opens the processor's hosted billing portal. No local state changes.
func (o *Orchestrator) Portal(ctx context.Context, userID uuid.UUID, returnURL string) (*RedirectSession, error) {
	sub, err := o.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.ExternalCustomerID == "" {
		return nil, ErrNoCustomer
	}
	return o.processor.CreatePortalSession(ctx, PortalRequest{
		CustomerID: sub.ExternalCustomerID,
		ReturnURL:  firstNonEmpty(returnURL, o.portalReturnURL),
	})
}

// PreviewChange quotes the proration for moving to target. Nothing is written.
func (o *Orchestrator) PreviewChange(ctx context.Context, userID uuid.UUID, target Plan, yearly bool) (*ChangePreview, error) {
	priceID, sub, direction, err := o.prepareChange(ctx, userID, target, yearly)
	if err != nil {
		return nil, err
	}
	timing := ChangeImmediately
	if direction == DirectionDowngrade {
		timing = ChangeAtPeriodEnd
	}
	quote, err := o.processor.PreviewPlanChange(ctx, PlanChangeRequest{
		SubscriptionID: sub.ExternalSubscriptionID,
		PriceID:        priceID,
		Timing:         timing,
	})
	if err != nil {
		return nil, err
	}
	return &ChangePreview{ProrationPreview: *quote, Target: target, Direction: direction}, nil
}

// ApplyChange moves the subscription to target. Upgrades take effect now;
// downgrades are checked against live usage and scheduled for the period end.
func (o *Orchestrator) ApplyChange(ctx context.Context, userID uuid.UUID, target Plan, yearly bool) (res *ChangeResult, err error) {
	priceID, sub, direction, err := o.prepareChange(ctx, userID, target, yearly)
	if err != nil {
		return nil, err
	}
	defer func() { o.metrics.planChanged(direction, err) }()

	log := o.log.With(logger.UserID(userID), logger.Plan(string(target)), slog.String("direction", string(direction)))

	if direction == DirectionDowngrade {
		limit, err := o.catalog.LimitFor(target)
		if err != nil {
			return nil, err
		}
		current, err := o.enforcer.Count(ctx, userID, ResourceProperties)
		if err != nil {
			return nil, err
		}
		if current > int64(limit) {
			return nil, &DowngradeBlockedError{
				Resource: ResourceProperties,
				Target:   target,
				Current:  current,
				Limit:    int64(limit),
			}
		}
	}

	timing := ChangeImmediately
	if direction != DirectionUpgrade {
		timing = ChangeAtPeriodEnd
	}
	remote, err := o.processor.ChangePlan(ctx, PlanChangeRequest{
		SubscriptionID: sub.ExternalSubscriptionID,
		PriceID:        priceID,
		Timing:         timing,
	})
	if err != nil {
		return nil, err
	}

	applied := direction
	decide := func(_ context.Context, cur *Subscription) (Patch, bool, error) {
		// A subscription.deleted delivered meanwhile wins over the change.
		if cur.Status == StatusCanceled {
			return Patch{}, false, ErrSubscriptionCanceled
		}
		diff, err := o.catalog.Compare(cur.Plan, target)
		if err != nil {
			return Patch{}, false, err
		}
		switch {
		case diff > 0:
			assignment, err := o.catalog.Assign(target)
			if err != nil {
				return Patch{}, false, err
			}
			applied = DirectionUpgrade
			return Patch{
				Plan:              &assignment,
				ScheduledPlan:     Clear[Plan](),
				ScheduledPlanDate: Clear[time.Time](),
			}, true, nil
		case diff < 0:
			effective := remote.CurrentPeriodEnd
			if effective.IsZero() && cur.CurrentPeriodEnd != nil {
				effective = *cur.CurrentPeriodEnd
			}
			applied = DirectionDowngrade
			return Patch{
				ScheduledPlan:     Set(target),
				ScheduledPlanDate: Set(effective),
			}, true, nil
		default:
			applied = DirectionCancelDowngrade
			return Patch{
				ScheduledPlan:     Clear[Plan](),
				ScheduledPlanDate: Clear[time.Time](),
			}, true, nil
		}
	}

	_, after, werr := o.updater.apply(ctx, o.loadUser(userID), decide)
	if errors.Is(werr, ErrSubscriptionCanceled) {
		log.WarnContext(ctx, "plan change dropped, subscription was canceled meanwhile")
		return nil, werr
	}
	if werr != nil {
		log.ErrorContext(ctx, "plan change accepted by processor but not persisted, awaiting webhook", logger.Error(werr))
		return o.pendingResult(sub, target, direction, remote), nil
	}

	log.InfoContext(ctx, "plan change applied")
	return &ChangeResult{
		Plan:              after.Plan,
		Direction:         applied,
		ScheduledPlan:     after.ScheduledPlan,
		ScheduledPlanDate: after.ScheduledPlanDate,
	}, nil
}

func (o *Orchestrator) pendingResult(sub *Subscription, target Plan, direction Direction, remote *ProcessorSubscription) *ChangeResult {
	res := &ChangeResult{Plan: sub.Plan, Direction: direction, Pending: true}
	switch direction {
	case DirectionUpgrade:
		res.Plan = target
	case DirectionDowngrade:
		res.ScheduledPlan = ptr(target)
		res.ScheduledPlanDate = ptr(remote.CurrentPeriodEnd)
	}
	return res
}

// prepareChange validates a plan change request and classifies its direction.
func (o *Orchestrator) prepareChange(ctx context.Context, userID uuid.UUID, target Plan, yearly bool) (string, *Subscription, Direction, error) {
	priceID, err := o.catalog.PriceIDFor(target, yearly)
	if err != nil {
		return "", nil, "", err
	}
	sub, err := o.store.Get(ctx, userID)
	if err != nil {
		return "", nil, "", err
	}
	switch {
	case sub.Status == StatusCanceled:
		return "", nil, "", ErrSubscriptionCanceled
	case sub.ExternalSubscriptionID == "":
		return "", nil, "", ErrNoActiveSubscription
	}

	diff, err := o.catalog.Compare(sub.Plan, target)
	if err != nil {
		return "", nil, "", err
	}
	switch {
	case diff > 0:
		return priceID, sub, DirectionUpgrade, nil
	case diff < 0:
		return priceID, sub, DirectionDowngrade, nil
	case sub.ScheduledPlan != nil:
		return priceID, sub, DirectionCancelDowngrade, nil
	default:
		return "", nil, "", ErrSamePlan
	}
}

// Cancel ends the subscription immediately at the processor and locally.
// Canceling an already canceled subscription returns its status unchanged.
func (o *Orchestrator) Cancel(ctx context.Context, userID uuid.UUID) (Status, error) {
	sub, err := o.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub.Status == StatusCanceled {
		return sub.Status, nil
	}

	if sub.ExternalSubscriptionID != "" {
		_, err := o.processor.CancelSubscription(ctx, sub.ExternalSubscriptionID)
		switch {
		case errors.Is(err, ErrProcessorSubscriptionNotFound):
			o.log.WarnContext(ctx, "processor subscription already gone, canceling locally",
				logger.UserID(userID), logger.Error(err))
		case err != nil:
			return "", err
		}
	}

	_, after, err := o.updater.apply(ctx, o.loadUser(userID), func(ctx context.Context, cur *Subscription) (Patch, bool, error) {
		status, ok := nextStatus(ctx, cur.Status, triggerCancel, StatusCanceled)
		if !ok {
			return Patch{}, false, nil
		}
		return Patch{
			Status:            &status,
			CancelAtPeriodEnd: ptr(false),
			ScheduledPlan:     Clear[Plan](),
			ScheduledPlanDate: Clear[time.Time](),
		}, true, nil
	})
	if err != nil {
		// The processor already canceled; subscription.deleted will settle the record.
		o.log.ErrorContext(ctx, "cancellation not persisted, awaiting webhook",
			logger.UserID(userID), logger.Error(err))
		return StatusCanceled, nil
	}
	o.log.InfoContext(ctx, "subscription canceled", logger.UserID(userID))
	return after.Status, nil
}

// SoftCancel is used on account deletion. A missing local record is not an error.
func (o *Orchestrator) SoftCancel(ctx context.Context, userID uuid.UUID) error {
	_, err := o.Cancel(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil
	}
	return err
}

// Status loads the subscription and live property usage concurrently.
func (o *Orchestrator) Status(ctx context.Context, userID uuid.UUID) (*Overview, error) {
	var (
		sub     *Subscription
		current int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sub, err = o.store.Get(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		current, err = o.enforcer.Count(gctx, userID, ResourceProperties)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	trial := EvaluateTrial(sub, o.clock.Now())
	usage := Usage{Current: current, Limit: int64(sub.PropertyLimit)}
	usage.Allowed = usage.Current < usage.Limit
	return &Overview{
		Subscription:        sub,
		Trial:               trial,
		Usage:               usage,
		CanCreateProperties: trial.CanMutate && usage.Allowed,
	}, nil
}

func (o *Orchestrator) loadUser(userID uuid.UUID) loadFunc {
	return func(ctx context.Context) (*Subscription, error) {
		return o.store.Get(ctx, userID)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
