package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPlanNotFound          = errors.New("billing plan not found")
	ErrPriceNotFound         = errors.New("billing price not found for plan")
	ErrInvalidCatalog        = errors.New("invalid billing plan catalog")
	ErrFailedToLoadCatalog   = errors.New("failed to load billing plan catalog")
	ErrUnknownResource       = errors.New("unknown billing resource")
	ErrFailedToCountResource = errors.New("failed to count resource usage")

	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrSubscriptionExists    = errors.New("subscription already exists")
	ErrConflict              = errors.New("subscription was modified concurrently")
	ErrConcurrentUpdate      = errors.New("subscription update retries exhausted")
	ErrStoreUnavailable      = errors.New("subscription store unavailable")
	ErrInvalidSubscription   = errors.New("invalid subscription state")
	ErrSubscriptionCanceled  = errors.New("subscription is canceled")
	ErrNoActiveSubscription  = errors.New("no processor subscription, start a checkout first")
	ErrAlreadySubscribed     = errors.New("subscription already active, use a plan change instead")
	ErrCheckoutBelowCurrent  = errors.New("checkout plan must be at or above the current plan")
	ErrSamePlan              = errors.New("subscription is already on this plan")
	ErrNoCustomer            = errors.New("no processor customer for this account")
	ErrLimitExceeded         = errors.New("resource limit exceeded")
	ErrDowngradeBlocked      = errors.New("downgrade blocked, reduce usage first")
	ErrMutationBlocked       = errors.New("account is read-only")
	ErrInvalidSignature      = errors.New("webhook signature verification failed")
	ErrUnknownPrice          = errors.New("webhook references an unknown price")
	ErrMissingEventReference = errors.New("webhook event is missing a subscription reference")

	ErrProcessorUnavailable          = errors.New("payment processor request failed")
	ErrProcessorSubscriptionNotFound = errors.New("payment processor has no such subscription")
	ErrMissingAPIKey                 = errors.New("payment processor API key is required")
	ErrMissingWebhookSecret          = errors.New("payment processor webhook secret is required")
	ErrNoCheckoutURL                 = errors.New("no checkout URL returned from processor")
	ErrNoPortalURL                   = errors.New("no portal URL returned from processor")
)

// ConflictError is returned by Store.Update when the stored updated_at
// no longer matches the expected value.
type ConflictError struct {
	UserID   uuid.UUID
	Expected time.Time
	Actual   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("subscription %s: expected updated_at %s, found %s",
		e.UserID, e.Expected.Format(time.RFC3339Nano), e.Actual.Format(time.RFC3339Nano))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// LimitExceededError reports the usage that blocked a guarded mutation.
type LimitExceededError struct {
	Resource Resource
	Current  int64
	Limit    int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit reached: %d of %d used, upgrade your plan to add more",
		e.Resource, e.Current, e.Limit)
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// DowngradeBlockedError names the current usage and the target plan limit.
type DowngradeBlockedError struct {
	Resource Resource
	Target   Plan
	Current  int64
	Limit    int64
}

func (e *DowngradeBlockedError) Error() string {
	return fmt.Sprintf("downgrade to %s blocked: %d %s in use, plan allows %d, reduce usage first",
		e.Target, e.Current, e.Resource, e.Limit)
}

func (e *DowngradeBlockedError) Is(target error) bool { return target == ErrDowngradeBlocked }

// MutationBlockedError is returned when the subscription status forbids writes.
type MutationBlockedError struct {
	Status Status
	Reason BlockReason
}

func (e *MutationBlockedError) Error() string {
	switch e.Reason {
	case BlockTrialExpired:
		return "your trial has ended, choose a plan to continue editing"
	case BlockPastDue:
		return "your last payment failed, update your payment method to continue editing"
	case BlockCanceled:
		return "your subscription is canceled, resubscribe to continue editing"
	default:
		return fmt.Sprintf("account is read-only (status %s)", e.Status)
	}
}

func (e *MutationBlockedError) Is(target error) bool { return target == ErrMutationBlocked }

// IsTransient reports whether err should be retried by the caller.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProcessorUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConcurrentUpdate) ||
		errors.Is(err, ErrFailedToCountResource)
}
