package billing

import (
	"context"

	"github.com/dmitrymomot/propfin/pkg/statemachine"
)

type trigger string

func (t trigger) Name() string { return string(t) }

const (
	triggerCheckout         trigger = "checkout_completed"
	triggerSync             trigger = "subscription_updated"
	triggerDeleted          trigger = "subscription_deleted"
	triggerPaymentFailed    trigger = "payment_failed"
	triggerPaymentRecovered trigger = "payment_succeeded"
	triggerCancel           trigger = "cancel"
)

// statusTransitions lists every allowed status change. CANCELED has outgoing
// edges only for checkout (re-provisioning) and idempotent cancellation.
// The requested target status travels as the Fire data and is matched by guard.
var statusTransitions = statemachine.MustNew(statemachine.WithTransitions(buildStatusTransitions()))

func buildStatusTransitions() []statemachine.TransitionDef {
	edges := []struct {
		on   trigger
		from []Status
		to   []Status
	}{
		{triggerCheckout, []Status{StatusTrial, StatusCanceled}, []Status{StatusActive, StatusTrial}},
		{triggerCheckout, []Status{StatusActive, StatusPastDue}, []Status{StatusActive}},
		{triggerSync, []Status{StatusTrial}, []Status{StatusTrial, StatusActive, StatusPastDue, StatusCanceled}},
		{triggerSync, []Status{StatusActive, StatusPastDue}, []Status{StatusActive, StatusPastDue, StatusCanceled}},
		{triggerDeleted, []Status{StatusTrial, StatusActive, StatusPastDue, StatusCanceled}, []Status{StatusCanceled}},
		{triggerPaymentFailed, []Status{StatusTrial, StatusActive, StatusPastDue}, []Status{StatusPastDue}},
		{triggerPaymentRecovered, []Status{StatusPastDue}, []Status{StatusActive}},
		{triggerCancel, []Status{StatusTrial, StatusActive, StatusPastDue, StatusCanceled}, []Status{StatusCanceled}},
	}

	var defs []statemachine.TransitionDef
	for _, e := range edges {
		for _, from := range e.from {
			for _, to := range e.to {
				defs = append(defs, statemachine.TransitionDef{
					From:   from,
					To:     to,
					Event:  e.on,
					Guards: []statemachine.Guard{targetIs(to)},
				})
			}
		}
	}
	return defs
}

func targetIs(want Status) statemachine.Guard {
	return func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		target, ok := data.(Status)
		return ok && target == want
	}
}

// nextStatus resolves the status a record moves to. ok is false when the
// transition is not allowed from the current status.
func nextStatus(ctx context.Context, from Status, on trigger, target Status) (Status, bool) {
	st, err := statusTransitions.Fire(ctx, from, on, target)
	if err != nil {
		return from, false
	}
	return st.(Status), true
}
