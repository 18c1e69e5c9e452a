package billing

import (
	"time"

	"github.com/google/uuid"
)

// Status is the local lifecycle state of a subscription.
type Status string

const (
	StatusTrial    Status = "TRIAL"
	StatusActive   Status = "ACTIVE"
	StatusPastDue  Status = "PAST_DUE"
	StatusCanceled Status = "CANCELED"
)

func (s Status) Name() string { return string(s) }

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// Subscription is the single billing record owned by a user.
type Subscription struct {
	UserID                 uuid.UUID  `json:"user_id"`
	ExternalCustomerID     string     `json:"external_customer_id,omitempty"`
	ExternalSubscriptionID string     `json:"external_subscription_id,omitempty"`
	Plan                   Plan       `json:"plan"`
	Status                 Status     `json:"status"`
	PropertyLimit          int        `json:"property_limit"`
	TrialEndsAt            *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
	ScheduledPlan          *Plan      `json:"scheduled_plan,omitempty"`
	ScheduledPlanDate      *time.Time `json:"scheduled_plan_date,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so callers can never alias store state.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.TrialEndsAt = cloneTime(s.TrialEndsAt)
	c.CurrentPeriodEnd = cloneTime(s.CurrentPeriodEnd)
	c.ScheduledPlanDate = cloneTime(s.ScheduledPlanDate)
	if s.ScheduledPlan != nil {
		p := *s.ScheduledPlan
		c.ScheduledPlan = &p
	}
	return &c
}

// Optional is a patch field that can be left untouched, set, or cleared.
type Optional[T any] struct {
	set   bool
	value *T
}

// Set assigns v.
func Set[T any](v T) Optional[T] { return Optional[T]{set: true, value: &v} }

// Clear assigns null.
func Clear[T any]() Optional[T] { return Optional[T]{set: true} }

// SetPtr assigns v, or null when v is nil.
func SetPtr[T any](v *T) Optional[T] {
	if v == nil {
		return Clear[T]()
	}
	return Set(*v)
}

func (o Optional[T]) IsSet() bool { return o.set }

func (o Optional[T]) apply(dst **T) {
	if !o.set {
		return
	}
	if o.value == nil {
		*dst = nil
		return
	}
	v := *o.value
	*dst = &v
}

// Patch holds absolute target values for a subscription update.
// Zero-value fields are left untouched.
type Patch struct {
	ExternalCustomerID     *string
	ExternalSubscriptionID *string
	Plan                   *PlanAssignment
	Status                 *Status
	TrialEndsAt            Optional[time.Time]
	CurrentPeriodEnd       Optional[time.Time]
	CancelAtPeriodEnd      *bool
	ScheduledPlan          Optional[Plan]
	ScheduledPlanDate      Optional[time.Time]
}

// Apply writes the patch onto a copy of s and returns it.
// Leaving TRIAL clears the trial end date.
func (p Patch) Apply(s *Subscription) *Subscription {
	next := s.Clone()
	if p.ExternalCustomerID != nil {
		next.ExternalCustomerID = *p.ExternalCustomerID
	}
	if p.ExternalSubscriptionID != nil {
		next.ExternalSubscriptionID = *p.ExternalSubscriptionID
	}
	if p.Plan != nil {
		next.Plan = p.Plan.Plan
		next.PropertyLimit = p.Plan.PropertyLimit
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.CancelAtPeriodEnd != nil {
		next.CancelAtPeriodEnd = *p.CancelAtPeriodEnd
	}
	p.TrialEndsAt.apply(&next.TrialEndsAt)
	p.CurrentPeriodEnd.apply(&next.CurrentPeriodEnd)
	p.ScheduledPlan.apply(&next.ScheduledPlan)
	p.ScheduledPlanDate.apply(&next.ScheduledPlanDate)
	if next.Status != StatusTrial {
		next.TrialEndsAt = nil
	}
	return next
}

// Changes reports whether applying the patch would alter s.
func (p Patch) Changes(s *Subscription) bool {
	next := p.Apply(s)
	return !sameState(s, next)
}

func sameState(a, b *Subscription) bool {
	return a.ExternalCustomerID == b.ExternalCustomerID &&
		a.ExternalSubscriptionID == b.ExternalSubscriptionID &&
		a.Plan == b.Plan &&
		a.Status == b.Status &&
		a.PropertyLimit == b.PropertyLimit &&
		a.CancelAtPeriodEnd == b.CancelAtPeriodEnd &&
		equalTime(a.TrialEndsAt, b.TrialEndsAt) &&
		equalTime(a.CurrentPeriodEnd, b.CurrentPeriodEnd) &&
		equalTime(a.ScheduledPlanDate, b.ScheduledPlanDate) &&
		equalPlan(a.ScheduledPlan, b.ScheduledPlan)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalPlan(a, b *Plan) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func ptr[T any](v T) *T { return &v }
