// Package billing mounts the billing engine on HTTP.
//
// Routes:
//
//	POST   /billing/webhook                           processor deliveries, signature-verified
//	POST   /billing/checkout                          start a hosted checkout
//	POST   /billing/portal                            open the hosted billing portal
//	POST   /billing/plan                              upgrade now or schedule a downgrade
//	POST   /billing/plan/preview                      proration quote
//	POST   /billing/cancel                            cancel immediately
//	GET    /billing/status                            subscription, trial and usage snapshot
//	POST   /internal/accounts/{userID}/subscription   provision the TRIAL record
//	DELETE /internal/accounts/{userID}/subscription   soft cancel on account deletion
//
// The /billing routes other than the webhook expect the gateway identity
// headers handled by svc/auth. MapError translates engine errors and should
// be registered with the application's core.ErrorHandler.
package billing
