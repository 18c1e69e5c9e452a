package billing

import (
	"math"
	"time"
)

// BlockReason names why an account cannot mutate data.
type BlockReason string

const (
	BlockNone         BlockReason = ""
	BlockTrialExpired BlockReason = "trial_expired"
	BlockPastDue      BlockReason = "past_due"
	BlockCanceled     BlockReason = "canceled"
)

// TrialState is the derived view of a subscription at a point in time.
type TrialState struct {
	// DaysRemaining is nil unless the subscription is in TRIAL.
	DaysRemaining *int        `json:"trial_days_remaining,omitempty"`
	CanMutate     bool        `json:"can_mutate"`
	Reason        BlockReason `json:"reason,omitempty"`
}

// EvaluateTrial computes remaining trial days and mutation eligibility.
// A trial past its end date is read-only until the processor webhook
// converts or cancels it.
func EvaluateTrial(sub *Subscription, now time.Time) TrialState {
	if sub == nil {
		return TrialState{Reason: BlockCanceled}
	}

	var state TrialState
	if sub.Status == StatusTrial && sub.TrialEndsAt != nil {
		days := int(math.Ceil(sub.TrialEndsAt.Sub(now).Hours() / 24))
		state.DaysRemaining = &days
	}

	switch sub.Status {
	case StatusActive:
		state.CanMutate = true
	case StatusTrial:
		state.CanMutate = state.DaysRemaining == nil || *state.DaysRemaining >= 0
		if !state.CanMutate {
			state.Reason = BlockTrialExpired
		}
	case StatusPastDue:
		state.Reason = BlockPastDue
	default:
		state.Reason = BlockCanceled
	}
	return state
}
