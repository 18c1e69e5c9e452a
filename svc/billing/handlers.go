package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/propfin/pkg/logger"
)

// Change describes the effect of one handled event.
// Before and After are nil when the event touched no record.
type Change struct {
	Before *Subscription
	After  *Subscription
}

// Applied reports whether the record was written.
func (c Change) Applied() bool {
	return c.Before != nil && c.After != nil && !c.After.UpdatedAt.Equal(c.Before.UpdatedAt)
}

// StatusChanged reports whether the write moved the record to a new status.
func (c Change) StatusChanged() bool {
	return c.Applied() && c.Before.Status != c.After.Status
}

// EventHandlers apply webhook events to the subscription store. Each handler
// writes absolute values taken from the payload or from the processor, so
// applying the same event twice converges on the same record.
type EventHandlers struct {
	store     Store
	processor Processor
	catalog   *Catalog
	updater   updater
	log       *slog.Logger
}

// NewEventHandlers wires handlers to their collaborators.
// conflictRetries is the number of re-reads after an optimistic-concurrency conflict.
func NewEventHandlers(store Store, processor Processor, catalog *Catalog, conflictRetries int, log *slog.Logger) *EventHandlers {
	if log == nil {
		log = discardLogger()
	}
	return &EventHandlers{
		store:     store,
		processor: processor,
		catalog:   catalog,
		updater:   updater{store: store, retries: max(conflictRetries, 0)},
		log:       log,
	}
}

// Handle routes a payload to its handler. Unsupported payloads are no-ops.
func (h *EventHandlers) Handle(ctx context.Context, p Payload) (Change, error) {
	switch p := p.(type) {
	case CheckoutCompleted:
		return h.checkoutCompleted(ctx, p)
	case SubscriptionUpdated:
		return h.subscriptionUpdated(ctx, p.Subscription)
	case SubscriptionDeleted:
		return h.subscriptionDeleted(ctx, p.Subscription)
	case InvoicePaymentFailed:
		return h.paymentFailed(ctx, p)
	case InvoicePaymentSucceeded:
		return h.paymentSucceeded(ctx, p)
	default:
		// Unsupported and anything without a handler is acknowledged as-is.
		return Change{}, nil
	}
}

func (h *EventHandlers) checkoutCompleted(ctx context.Context, p CheckoutCompleted) (Change, error) {
	if p.SubscriptionID == "" {
		return Change{}, fmt.Errorf("%w: checkout session %s", ErrMissingEventReference, p.SessionID)
	}

	ps, err := h.processor.GetSubscription(ctx, p.SubscriptionID)
	if err != nil {
		return Change{}, err
	}
	if ps.Status == StatusCanceled {
		h.log.InfoContext(ctx, "checkout references a canceled subscription, skipping",
			logger.SubscriptionID(ps.ID))
		return Change{}, nil
	}

	plan, ok := h.catalog.PlanForPrice(ps.PriceID)
	if !ok {
		return Change{}, fmt.Errorf("%w: %s", ErrUnknownPrice, ps.PriceID)
	}
	assignment, err := h.catalog.Assign(plan)
	if err != nil {
		return Change{}, err
	}

	userID := p.UserID
	if userID == uuid.Nil {
		userID = ps.UserID
	}
	customerID := p.CustomerID
	if customerID == "" {
		customerID = ps.CustomerID
	}
	load := func(ctx context.Context) (*Subscription, error) {
		if userID != uuid.Nil {
			return h.store.Get(ctx, userID)
		}
		return h.store.GetByExternalCustomerID(ctx, customerID)
	}

	target := StatusActive
	if ps.Status == StatusTrial {
		target = StatusTrial
	}

	return h.run(ctx, load, func(ctx context.Context, cur *Subscription) (Patch, bool, error) {
		// Already linked to this subscription: the checkout was processed.
		if cur.ExternalSubscriptionID == ps.ID {
			return Patch{}, false, nil
		}
		status, allowed := nextStatus(ctx, cur.Status, triggerCheckout, target)
		if !allowed {
			return Patch{}, false, nil
		}
		patch := Patch{
			ExternalCustomerID:     ptr(customerID),
			ExternalSubscriptionID: ptr(ps.ID),
			Plan:                   &assignment,
			Status:                 &status,
			CurrentPeriodEnd:       Set(ps.CurrentPeriodEnd),
			CancelAtPeriodEnd:      ptr(ps.CancelAtPeriodEnd),
			ScheduledPlan:          Clear[Plan](),
			ScheduledPlanDate:      Clear[time.Time](),
		}
		if status == StatusTrial {
			patch.TrialEndsAt = Set(trialEnd(ps, cur))
		}
		return patch, true, nil
	})
}

func (h *EventHandlers) subscriptionUpdated(ctx context.Context, ps ProcessorSubscription) (Change, error) {
	return h.run(ctx, h.byExternalID(ps.ID), func(ctx context.Context, cur *Subscription) (Patch, bool, error) {
		if cur.Status == StatusCanceled {
			return Patch{}, false, nil
		}
		// An earlier billing period than the stored one is a stale delivery.
		if cur.CurrentPeriodEnd != nil && ps.CurrentPeriodEnd.Before(*cur.CurrentPeriodEnd) {
			h.log.InfoContext(ctx, "stale subscription update ignored",
				logger.SubscriptionID(ps.ID), logger.UserID(cur.UserID))
			return Patch{}, false, nil
		}

		status, allowed := nextStatus(ctx, cur.Status, triggerSync, ps.Status)
		if !allowed {
			status = cur.Status
		}
		patch := Patch{
			Status:            &status,
			CurrentPeriodEnd:  Set(ps.CurrentPeriodEnd),
			CancelAtPeriodEnd: ptr(ps.CancelAtPeriodEnd),
		}
		if status == StatusTrial {
			patch.TrialEndsAt = Set(trialEnd(&ps, cur))
		}
		if err := h.syncPlan(ctx, cur, ps, &patch); err != nil {
			return Patch{}, false, err
		}
		return patch, true, nil
	})
}

// syncPlan reconciles the local plan with the price on the processor:
// upgrades apply at once, downgrades wait for the period rollover and a
// scheduled downgrade is realized once the period has passed its date.
func (h *EventHandlers) syncPlan(ctx context.Context, cur *Subscription, ps ProcessorSubscription, patch *Patch) error {
	remotePlan, known := h.catalog.PlanForPrice(ps.PriceID)
	if !known && ps.PriceID != "" {
		h.log.WarnContext(ctx, "subscription update references an unknown price, plan left unchanged",
			logger.SubscriptionID(ps.ID), slog.String("price_id", ps.PriceID))
	}

	rolledOver := cur.ScheduledPlanDate != nil && ps.CurrentPeriodEnd.After(*cur.ScheduledPlanDate)
	if cur.ScheduledPlan != nil && rolledOver {
		plan := *cur.ScheduledPlan
		if known {
			plan = remotePlan
		}
		return h.assignPlan(plan, patch)
	}
	if !known {
		return nil
	}

	if remotePlan == cur.Plan {
		// Price reverted at the processor, the pending downgrade no longer applies.
		if cur.ScheduledPlan != nil {
			patch.ScheduledPlan = Clear[Plan]()
			patch.ScheduledPlanDate = Clear[time.Time]()
		}
		return nil
	}

	diff, err := h.catalog.Compare(cur.Plan, remotePlan)
	if err != nil {
		return err
	}
	switch {
	case diff > 0:
		return h.assignPlan(remotePlan, patch)
	case cur.ScheduledPlan != nil && *cur.ScheduledPlan == remotePlan:
		return nil
	case cur.CurrentPeriodEnd != nil && ps.CurrentPeriodEnd.After(*cur.CurrentPeriodEnd):
		return h.assignPlan(remotePlan, patch)
	default:
		patch.ScheduledPlan = Set(remotePlan)
		patch.ScheduledPlanDate = Set(ps.CurrentPeriodEnd)
		return nil
	}
}

func (h *EventHandlers) assignPlan(plan Plan, patch *Patch) error {
	assignment, err := h.catalog.Assign(plan)
	if err != nil {
		return err
	}
	patch.Plan = &assignment
	patch.ScheduledPlan = Clear[Plan]()
	patch.ScheduledPlanDate = Clear[time.Time]()
	return nil
}

func (h *EventHandlers) subscriptionDeleted(ctx context.Context, ps ProcessorSubscription) (Change, error) {
	return h.run(ctx, h.byExternalID(ps.ID), func(ctx context.Context, cur *Subscription) (Patch, bool, error) {
		status, allowed := nextStatus(ctx, cur.Status, triggerDeleted, StatusCanceled)
		if !allowed {
			return Patch{}, false, nil
		}
		return Patch{
			Status:            &status,
			CancelAtPeriodEnd: ptr(false),
			ScheduledPlan:     Clear[Plan](),
			ScheduledPlanDate: Clear[time.Time](),
		}, true, nil
	})
}

func (h *EventHandlers) paymentFailed(ctx context.Context, p InvoicePaymentFailed) (Change, error) {
	if p.SubscriptionID == "" {
		return Change{}, nil
	}
	return h.run(ctx, h.byExternalID(p.SubscriptionID), func(ctx context.Context, cur *Subscription) (Patch, bool, error) {
		status, allowed := nextStatus(ctx, cur.Status, triggerPaymentFailed, StatusPastDue)
		if !allowed {
			return Patch{}, false, nil
		}
		return Patch{Status: &status}, true, nil
	})
}

func (h *EventHandlers) paymentSucceeded(ctx context.Context, p InvoicePaymentSucceeded) (Change, error) {
	if p.SubscriptionID == "" {
		return Change{}, nil
	}
	return h.run(ctx, h.byExternalID(p.SubscriptionID), func(ctx context.Context, cur *Subscription) (Patch, bool, error) {
		if cur.Status != StatusPastDue {
			return Patch{}, false, nil
		}
		status, allowed := nextStatus(ctx, cur.Status, triggerPaymentRecovered, StatusActive)
		if !allowed {
			return Patch{}, false, nil
		}
		return Patch{Status: &status}, true, nil
	})
}

func (h *EventHandlers) byExternalID(subscriptionID string) loadFunc {
	return func(ctx context.Context) (*Subscription, error) {
		if subscriptionID == "" {
			return nil, ErrMissingEventReference
		}
		return h.store.GetByExternalSubscriptionID(ctx, subscriptionID)
	}
}

func (h *EventHandlers) run(ctx context.Context, load loadFunc, decide decideFunc) (Change, error) {
	before, after, err := h.updater.apply(ctx, load, decide)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return Change{}, err
		}
		return Change{Before: before}, err
	}
	return Change{Before: before, After: after}, nil
}

// trialEnd picks the processor trial end, falling back to the stored one and
// then to the period end so a TRIAL record always carries a date.
func trialEnd(ps *ProcessorSubscription, cur *Subscription) time.Time {
	switch {
	case ps.TrialEnd != nil:
		return *ps.TrialEnd
	case cur.TrialEndsAt != nil:
		return *cur.TrialEndsAt
	default:
		return ps.CurrentPeriodEnd
	}
}
