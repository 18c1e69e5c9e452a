package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/propfin/core"
	"github.com/dmitrymomot/propfin/svc/billing"
)

var (
	errUnknownPlan        = core.NewHTTPError(http.StatusBadRequest, "unknown_plan", "")
	errInvalidSignature   = core.NewHTTPError(http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	errLimitExceeded      = core.NewHTTPError(http.StatusForbidden, "limit_exceeded", "")
	errMutationBlocked    = core.NewHTTPError(http.StatusForbidden, "mutation_blocked", "")
	errNoSubscription     = core.NewHTTPError(http.StatusNotFound, "subscription_not_found", "no subscription for this account")
	errDowngradeBlocked   = core.NewHTTPError(http.StatusUnprocessableEntity, "downgrade_blocked", "")
	errProcessorFailed    = core.NewHTTPError(http.StatusBadGateway, "processor_unavailable", "payment processor is unavailable, try again later")
	errBillingUnavailable = core.NewHTTPError(http.StatusServiceUnavailable, "billing_unavailable", "billing is temporarily unavailable, try again later")
	errRateLimited        = core.NewHTTPError(http.StatusTooManyRequests, "rate_limited", "too many billing requests, slow down")
)

// conflicts are 409s whose message is the domain error text.
var conflicts = []struct {
	err  error
	code string
}{
	{billing.ErrAlreadySubscribed, "already_subscribed"},
	{billing.ErrSamePlan, "same_plan"},
	{billing.ErrSubscriptionCanceled, "subscription_canceled"},
	{billing.ErrCheckoutBelowCurrent, "checkout_below_current"},
	{billing.ErrNoActiveSubscription, "no_active_subscription"},
	{billing.ErrProcessorSubscriptionNotFound, "no_active_subscription"},
	{billing.ErrNoCustomer, "no_customer"},
	{billing.ErrConflict, "concurrent_update"},
}

// MapError translates billing engine errors into HTTP errors.
func MapError(err error) (core.HTTPError, bool) {
	var (
		limitErr     *billing.LimitExceededError
		blockedErr   *billing.MutationBlockedError
		downgradeErr *billing.DowngradeBlockedError
	)
	switch {
	case errors.As(err, &limitErr):
		return errLimitExceeded.WithMessage(limitErr.Error()).WithDetails(map[string]any{
			"resource": string(limitErr.Resource),
			"current":  limitErr.Current,
			"limit":    limitErr.Limit,
		}), true
	case errors.As(err, &blockedErr):
		return errMutationBlocked.WithMessage(blockedErr.Error()).WithDetails(map[string]any{
			"status": string(blockedErr.Status),
			"reason": string(blockedErr.Reason),
		}), true
	case errors.As(err, &downgradeErr):
		return errDowngradeBlocked.WithMessage(downgradeErr.Error()).WithDetails(map[string]any{
			"resource":    string(downgradeErr.Resource),
			"current":     downgradeErr.Current,
			"limit":       downgradeErr.Limit,
			"target_plan": string(downgradeErr.Target),
		}), true
	case errors.Is(err, billing.ErrPlanNotFound), errors.Is(err, billing.ErrPriceNotFound):
		return errUnknownPlan.WithMessage(err.Error()), true
	case errors.Is(err, billing.ErrInvalidSignature):
		return errInvalidSignature, true
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return errNoSubscription, true
	case errors.Is(err, billing.ErrProcessorUnavailable),
		errors.Is(err, billing.ErrNoCheckoutURL),
		errors.Is(err, billing.ErrNoPortalURL):
		return errProcessorFailed, true
	case errors.Is(err, billing.ErrStoreUnavailable),
		errors.Is(err, billing.ErrConcurrentUpdate),
		errors.Is(err, billing.ErrFailedToCountResource):
		return errBillingUnavailable, true
	}
	for _, c := range conflicts {
		if errors.Is(err, c.err) {
			return core.NewHTTPError(http.StatusConflict, c.code, c.err.Error()), true
		}
	}
	return core.HTTPError{}, false
}
